// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "birdclef-go")
	viper.SetDefault("main.jobs", 4)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/birdclef.log")
	viper.SetDefault("logging.file_output.level", "debug")

	viper.SetDefault("train.traindir", "train_audio")
	viper.SetDefault("train.validdir", "")
	viper.SetDefault("train.checkpointdir", "checkpoints")
	viper.SetDefault("train.fold", 0)
	viper.SetDefault("train.numfold", 5)
	viper.SetDefault("train.numclasses", 264)
	viper.SetDefault("train.epochs", 10)
	viper.SetDefault("train.trainbatchsize", 128)
	viper.SetDefault("train.validbatchsize", 128)
	viper.SetDefault("train.samplerate", 32000)
	viper.SetDefault("train.hoplength", 512)
	viper.SetDefault("train.maxtime", 5.0)
	viper.SetDefault("train.nmels", 224)
	viper.SetDefault("train.nfft", 1024)
	viper.SetDefault("train.seed", 0)
	viper.SetDefault("train.logging", true)
	viper.SetDefault("train.loggingfreq", 20)
	viper.SetDefault("train.validfreq", 2000)
	viper.SetDefault("train.learningrate", 1e-4)
	viper.SetDefault("train.minlr", 1e-5)
	viper.SetDefault("train.tmax", 10)
	viper.SetDefault("train.hidden", 512)
	viper.SetDefault("train.dropout", 0.2)
	viper.SetDefault("train.padn", 5)
	viper.SetDefault("train.backbone", BackboneMel)
	viper.SetDefault("train.modelpath", "")
	viper.SetDefault("train.usexnnpack", false)
	viper.SetDefault("train.threads", 0)
	viper.SetDefault("train.cachesize", 0)

	viper.SetDefault("chunk.labelscsv", DefaultStrongLabelsCSV)
	viper.SetDefault("chunk.chunkscsv", DefaultChunksCSV)
	viper.SetDefault("chunk.outputdir", DefaultChunkOutputDir)
	viper.SetDefault("chunk.duration", 5.0)
	viper.SetDefault("chunk.count", 5)
	viper.SetDefault("chunk.onlyslide", false)
	viper.SetDefault("chunk.slidestep", 0.0)
	viper.SetDefault("chunk.savecsv", true)
	viper.SetDefault("chunk.deletelength", 0.0)

	viper.SetDefault("species.mode", SpeciesModeMetadata)
	viper.SetDefault("species.metadatacsv", DefaultMetadataCSV)
	viper.SetDefault("species.taxonomycsv", DefaultTaxonomyCSV)
	viper.SetDefault("species.extension", "mp3")

	viper.SetDefault("split.fraction", 0.2)
	viper.SetDefault("split.seed", 0)
	viper.SetDefault("split.extension", "wav")

	viper.SetDefault("tracking.mqtt.enabled", false)
	viper.SetDefault("tracking.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("tracking.mqtt.clientid", "")
	viper.SetDefault("tracking.mqtt.username", "")
	viper.SetDefault("tracking.mqtt.password", "")
	viper.SetDefault("tracking.mqtt.topic", "birdclef")
	viper.SetDefault("tracking.mqtt.retain", false)

	viper.SetDefault("tracking.datastore.enabled", true)
	viper.SetDefault("tracking.datastore.type", DatastoreSQLite)
	viper.SetDefault("tracking.datastore.sqlite.path", "birdclef.db")
	viper.SetDefault("tracking.datastore.mysql.host", "localhost")
	viper.SetDefault("tracking.datastore.mysql.port", 3306)
	viper.SetDefault("tracking.datastore.mysql.username", "birdclef")
	viper.SetDefault("tracking.datastore.mysql.password", "")
	viper.SetDefault("tracking.datastore.mysql.database", "birdclef")

	viper.SetDefault("observability.enabled", true)
	viper.SetDefault("observability.listen", "")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
