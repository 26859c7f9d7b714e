package config

import (
	"github.com/caarlos0/env/v11"
	"golang.org/x/xerrors"
)

// Settings holds every tunable of the tool. Values come from the
// environment and can be overridden by command line flags.
type Settings struct {
	ModeMaxShutdownTime int    `env:"MODE_MAX_SHUTDOWN_TIME" envDefault:"5"`
	OutputFolder        string `env:"OUTPUT_FOLDER"          envDefault:"./output"`
	LogFile             string `env:"LOG_FILE"               envDefault:"./output/framepred.log"`
	LogLevel            string `env:"LOG_LEVEL"              envDefault:"info"`
	ResultsLogFile      string `env:"RESULTS_LOG_FILE"       envDefault:"./output/results.log"`

	VideoFolder      string `env:"VIDEO_FOLDER"       envDefault:"./frames"`
	FrameExtension   string `env:"FRAME_EXTENSION"    envDefault:".jpg"`
	ResizeHeight     int    `env:"RESIZE_HEIGHT"      envDefault:"256"`
	ResizeWidth      int    `env:"RESIZE_WIDTH"       envDefault:"256"`
	Seed             uint64 `env:"SEED"               envDefault:"2017"`
	LoaderMaxWorkers int    `env:"LOADER_MAX_WORKERS" envDefault:"4"`
	PrefetchSize     int    `env:"PREFETCH_SIZE"      envDefault:"1000"`
	ShuffleSize      int    `env:"SHUFFLE_SIZE"       envDefault:"1000"`

	BatchSize  int `env:"BATCH_SIZE"  envDefault:"4"`
	TimeSteps  int `env:"TIME_STEPS"  envDefault:"4"`
	NumPred    int `env:"NUM_PRED"    envDefault:"1"`
	MaxBatches int `env:"MAX_BATCHES" envDefault:"0"`

	GeneratedFolder     string `env:"GENERATED_FOLDER"      envDefault:""`
	GroundTruthFolder   string `env:"GROUND_TRUTH_FOLDER"   envDefault:""`
	EvaluatorMaxWorkers int    `env:"EVALUATOR_MAX_WORKERS" envDefault:"3"`
	DiffMaskFolder      string `env:"DIFF_MASK_FOLDER"      envDefault:""`

	CheckpointDir    string `env:"CHECKPOINT_DIR"    envDefault:"./checkpoints"`
	CheckpointPath   string `env:"CHECKPOINT_PATH"   envDefault:""`
	CheckpointUpload bool   `env:"CHECKPOINT_UPLOAD" envDefault:"false"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"   envDefault:"localhost:9000"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"checkpoints"`

	MetricsPort int `env:"METRICS_PORT" envDefault:"0"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	s := Settings{}
	if err := env.Parse(&s); err != nil {
		return s, xerrors.Errorf("parsing settings from environment: %w", err)
	}
	return s, nil
}

type settingsService struct {
	s Settings
}

func New(s Settings) IService {
	return &settingsService{s: s}
}

func NewEnv() (IService, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

func (svc *settingsService) GetModeMaxShutdownTime() int {
	return svc.s.ModeMaxShutdownTime
}

func (svc *settingsService) GetOutputFolder() string {
	return svc.s.OutputFolder
}

func (svc *settingsService) GetLogFile() string {
	return svc.s.LogFile
}

func (svc *settingsService) GetLogLevel() string {
	return svc.s.LogLevel
}

func (svc *settingsService) GetResultsLogFile() string {
	return svc.s.ResultsLogFile
}

func (svc *settingsService) GetVideoFolder() string {
	return svc.s.VideoFolder
}

func (svc *settingsService) GetFrameExtension() string {
	return svc.s.FrameExtension
}

func (svc *settingsService) GetResizeHeight() int {
	return svc.s.ResizeHeight
}

func (svc *settingsService) GetResizeWidth() int {
	return svc.s.ResizeWidth
}

func (svc *settingsService) GetSeed() uint64 {
	return svc.s.Seed
}

func (svc *settingsService) GetLoaderMaxWorkers() int {
	return atLeastOne(svc.s.LoaderMaxWorkers)
}

func (svc *settingsService) GetPrefetchSize() int {
	return svc.s.PrefetchSize
}

func (svc *settingsService) GetShuffleSize() int {
	return svc.s.ShuffleSize
}

func (svc *settingsService) GetBatchSize() int {
	return atLeastOne(svc.s.BatchSize)
}

func (svc *settingsService) GetTimeSteps() int {
	return atLeastOne(svc.s.TimeSteps)
}

func (svc *settingsService) GetNumPred() int {
	return atLeastOne(svc.s.NumPred)
}

func (svc *settingsService) GetMaxBatches() int {
	return svc.s.MaxBatches
}

func (svc *settingsService) GetGeneratedFolder() string {
	return svc.s.GeneratedFolder
}

func (svc *settingsService) GetGroundTruthFolder() string {
	return svc.s.GroundTruthFolder
}

func (svc *settingsService) GetEvaluatorMaxWorkers() int {
	return atLeastOne(svc.s.EvaluatorMaxWorkers)
}

func (svc *settingsService) GetDiffMaskFolder() string {
	return svc.s.DiffMaskFolder
}

func (svc *settingsService) GetCheckpointDir() string {
	return svc.s.CheckpointDir
}

func (svc *settingsService) GetCheckpointPath() string {
	return svc.s.CheckpointPath
}

func (svc *settingsService) GetCheckpointUpload() bool {
	return svc.s.CheckpointUpload
}

func (svc *settingsService) GetStorageParameters() StorageParameters {
	return StorageParameters{
		Endpoint:  svc.s.MinIOEndpoint,
		AccessKey: svc.s.MinIOAccessKey,
		SecretKey: svc.s.MinIOSecretKey,
		UseSSL:    svc.s.MinIOUseSSL,
		Bucket:    svc.s.MinIOBucket,
	}
}

func (svc *settingsService) GetMetricsPort() int {
	return svc.s.MetricsPort
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
