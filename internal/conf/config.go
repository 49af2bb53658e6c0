// config.go: settings struct for birdclef-go and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdclef-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains process wide settings.
type MainSettings struct {
	Name string // node name reported to tracking sinks
	Jobs int    // worker count for feature extraction, 0 = physical cores
}

// TrainSettings contains settings for the train and evaluate commands.
type TrainSettings struct {
	TrainDir       string  // species folder root with training clips
	ValidDir       string  // optional separate validation species folder root
	CheckpointDir  string  // where model_<epoch>.ckpt files are written
	Fold           int     // validation fold index when ValidDir is empty
	NumFold        int     // number of folds the training clips are split into
	NumClasses     int     // classifier width, 0 = number of discovered species
	Epochs         int     // training epochs
	TrainBatchSize int     // mini-batch size for training
	ValidBatchSize int     // mini-batch size for validation
	SampleRate     int     // target sample rate in Hz
	HopLength      int     // STFT hop in samples
	MaxTime        float64 // clip length fed to the backbone in seconds
	NMels          int     // mel bands
	NFFT           int     // FFT size
	Seed           int64   // seed for init, shuffling and dropout
	Logging        bool    // enable external tracking sinks
	LoggingFreq    int     // batches between train metric logs
	ValidFreq      int     // steps between mid-epoch validations
	LearningRate   float64 // initial Adam learning rate
	MinLR          float64 // cosine annealing floor
	TMax           int     // cosine annealing half period in scheduler steps
	Hidden         int     // hidden units of the classifier head
	Dropout        float64 // dropout applied to the hidden layer while training
	PadN           int     // padding rows for padded cmAP
	Backbone       string  // "mel" or "tflite"
	ModelPath      string  // tflite embedding model path
	UseXNNPACK     bool    // use the XNNPACK delegate for tflite
	Threads        int     // tflite interpreter threads, 0 = auto
	CacheSize      int     // maximum cached feature vectors, 0 = unlimited
}

// ChunkSettings contains settings for the chunk command.
type ChunkSettings struct {
	LabelsCSV    string  // strong labels CSV, relative to the dataset root
	ChunksCSV    string  // chunk CSV written and read, relative to the dataset root
	OutputDir    string  // chunk output directory, relative to the dataset root
	Duration     float64 // chunk duration in seconds
	Count        int     // windows generated per short event
	OnlySlide    bool    // slide windows over every event regardless of length
	SlideStep    float64 // sliding window step in seconds, 0 = Duration
	SaveCSV      bool    // write the chunk CSV before exporting
	DeleteLength float64 // delete chunks of exactly this many seconds after export, 0 = skip
}

// SpeciesSettings contains settings for the species command.
type SpeciesSettings struct {
	Mode        string // "metadata" or "filename"
	MetadataCSV string // metadata CSV name inside the folder
	TaxonomyCSV string // eBird taxonomy CSV path
	Extension   string // file extension considered in filename mode
}

// SplitSettings contains settings for the split command.
type SplitSettings struct {
	Fraction  float64 // share of files moved to the validation folder
	Seed      int64   // shuffle seed
	Extension string  // file extension considered
}

// MQTTSettings contains MQTT tracking sink settings.
type MQTTSettings struct {
	Enabled  bool   // publish metrics over MQTT
	Broker   string // broker URL, e.g. tcp://localhost:1883
	ClientID string // client id, generated when empty
	Username string
	Password string
	Topic    string // topic prefix, metrics go to <topic>/<run>/metrics
	Retain   bool   // retain run status messages
}

// SQLiteSettings contains SQLite datastore settings.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings contains MySQL datastore settings.
type MySQLSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// DatastoreSettings selects and configures the run store.
type DatastoreSettings struct {
	Enabled bool           // record runs, metrics and checkpoints
	Type    string         // "sqlite" or "mysql"
	SQLite  SQLiteSettings // sqlite settings
	MySQL   MySQLSettings  // mysql settings
}

// TrackingSettings contains experiment tracking sinks.
type TrackingSettings struct {
	MQTT      MQTTSettings
	Datastore DatastoreSettings
}

// ObservabilitySettings controls Prometheus metrics.
type ObservabilitySettings struct {
	Enabled bool   // register training and data-prep metrics
	Listen  string // address for the /metrics endpoint, empty = do not serve
}

// SentrySettings controls error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the complete configuration
type Settings struct {
	Debug bool // true to enable debug logging

	Main          MainSettings
	Logging       logger.LoggingConfig
	Train         TrainSettings
	Chunk         ChunkSettings
	Species       SpeciesSettings
	Split         SplitSettings
	Tracking      TrackingSettings
	Observability ObservabilitySettings
	Sentry        SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings and reads the config file.
// BIRDCLEF_CONFIG points at an explicit file, otherwise the default paths are searched.
func initViper() error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if explicit := os.Getenv(EnvConfigFile); explicit != "" {
		viper.SetConfigFile(explicit)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", explicit, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first writable default path.
// Failure to write is not fatal, defaults stay in effect.
func createDefaultConfig(configPaths []string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	for _, dir := range configPaths {
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		if err := os.WriteFile(configPath, data, 0o644); err != nil {
			continue
		}
		GetLogger().Info("created default config file", logger.String("path", configPath))
		return viper.ReadInConfig()
	}

	GetLogger().Warn("could not write default config file, using built-in defaults")
	return nil
}

// GetSettings returns the settings loaded by the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically. Comments are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := MoveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}

	return nil
}
