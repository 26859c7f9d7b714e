package config

import (
	"path/filepath"
)

// NewHardCoded returns small fixed settings rooted at folder. Tests and
// local experiments use it instead of the environment.
func NewHardCoded(folder string) IService {
	return New(HardCodedSettings(folder))
}

func HardCodedSettings(folder string) Settings {
	return Settings{
		ModeMaxShutdownTime: 1,
		OutputFolder:        filepath.Join(folder, "output"),
		LogFile:             "",
		LogLevel:            "debug",
		ResultsLogFile:      filepath.Join(folder, "output", "results.log"),

		VideoFolder:      filepath.Join(folder, "frames"),
		FrameExtension:   ".jpg",
		ResizeHeight:     16,
		ResizeWidth:      16,
		Seed:             2017,
		LoaderMaxWorkers: 2,
		PrefetchSize:     8,
		ShuffleSize:      4,

		BatchSize:  2,
		TimeSteps:  2,
		NumPred:    1,
		MaxBatches: 3,

		GeneratedFolder:     filepath.Join(folder, "generated"),
		GroundTruthFolder:   filepath.Join(folder, "frames"),
		EvaluatorMaxWorkers: 2,
		DiffMaskFolder:      "",

		CheckpointDir:    filepath.Join(folder, "checkpoints"),
		CheckpointPath:   "",
		CheckpointUpload: false,

		MinIOBucket: "checkpoints",
	}
}
