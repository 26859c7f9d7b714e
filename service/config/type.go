package config

const (
	StreamModeName     = "stream"
	EvaluateModeName   = "evaluate"
	CheckpointModeName = "checkpoint"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetOutputFolder() string
	GetLogFile() string
	GetLogLevel() string
	GetResultsLogFile() string

	// Data loader
	GetVideoFolder() string
	GetFrameExtension() string
	GetResizeHeight() int
	GetResizeWidth() int
	GetSeed() uint64
	GetLoaderMaxWorkers() int
	GetPrefetchSize() int
	GetShuffleSize() int

	// Streaming
	GetBatchSize() int
	GetTimeSteps() int
	GetNumPred() int
	GetMaxBatches() int

	// Evaluation
	GetGeneratedFolder() string
	GetGroundTruthFolder() string
	GetEvaluatorMaxWorkers() int
	GetDiffMaskFolder() string

	// Checkpoints
	GetCheckpointDir() string
	GetCheckpointPath() string
	GetCheckpointUpload() bool

	GetStorageParameters() StorageParameters
	GetMetricsPort() int
}

type StorageParameters struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}
