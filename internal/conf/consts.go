// conf/consts.go hard coded constants
package conf

const (
	// EnvPrefix prefixes every environment variable override
	EnvPrefix = "BIRDCLEF"
	// EnvConfigFile names an explicit config file, bypassing the search paths
	EnvConfigFile = "BIRDCLEF_CONFIG"

	BitDepth    = 16 // bit depth of exported chunks
	NumChannels = 1  // exported chunks are mono

	DefaultStrongLabelsCSV = "132PeruXC_Strong_Labels.csv"
	DefaultChunksCSV       = "132PeruXC_TweetyNet_Chunks.csv"
	DefaultChunkOutputDir  = "132PeruXC_train_chunks"
	DefaultMetadataCSV     = "metadata.csv"
	DefaultTaxonomyCSV     = "eBird_Taxonomy_v2021.csv"

	BackboneMel    = "mel"
	BackboneTFLite = "tflite"

	DatastoreSQLite = "sqlite"
	DatastoreMySQL  = "mysql"

	SpeciesModeMetadata = "metadata"
	SpeciesModeFilename = "filename"
)
