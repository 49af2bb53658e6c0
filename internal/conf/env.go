// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns explicitly validated environment bindings. Every
// other key is still reachable through BIRDCLEF_<SECTION>_<KEY>.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "BIRDCLEF_DEBUG", validateEnvBool},
		{"main.jobs", "BIRDCLEF_JOBS", validateEnvNonNegativeInt},
		{"train.traindir", "BIRDCLEF_TRAIN_DIR", nil},
		{"train.validdir", "BIRDCLEF_VALID_DIR", nil},
		{"train.checkpointdir", "BIRDCLEF_CHECKPOINT_DIR", nil},
		{"train.seed", "BIRDCLEF_SEED", validateEnvInt},
		{"train.backbone", "BIRDCLEF_BACKBONE", validateEnvBackbone},
		{"train.modelpath", "BIRDCLEF_MODEL_PATH", validateEnvPath},
		{"train.logging", "BIRDCLEF_LOGGING", validateEnvBool},
		{"tracking.mqtt.password", "BIRDCLEF_MQTT_PASSWORD", nil},
		{"tracking.datastore.mysql.password", "BIRDCLEF_MYSQL_PASSWORD", nil},
		{"sentry.dsn", "BIRDCLEF_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds the explicit variables and validates values that are set
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvInt(value string) error {
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func validateEnvBackbone(value string) error {
	switch value {
	case BackboneMel, BackboneTFLite:
		return nil
	}
	return fmt.Errorf("must be %q or %q", BackboneMel, BackboneTFLite)
}

func validateEnvPath(value string) error {
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("path contains a NUL byte")
	}
	if _, err := os.Stat(value); os.IsNotExist(err) {
		return fmt.Errorf("warning: file does not exist: %s", value)
	}
	return nil
}

// configureEnvironmentVariables enables BIRDCLEF_ prefixed overrides for all keys
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return bindEnvVars()
}
