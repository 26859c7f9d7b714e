package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 256, s.ResizeHeight)
	assert.Equal(t, 256, s.ResizeWidth)
	assert.Equal(t, uint64(2017), s.Seed)
	assert.Equal(t, 1000, s.PrefetchSize)
	assert.Equal(t, 1000, s.ShuffleSize)
	assert.Equal(t, ".jpg", s.FrameExtension)
	assert.Equal(t, 1, s.NumPred)
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("RESIZE_HEIGHT", "128")
	t.Setenv("SEED", "7")
	t.Setenv("CHECKPOINT_UPLOAD", "true")
	t.Setenv("MINIO_BUCKET", "models")

	svc, err := NewEnv()
	require.NoError(t, err)

	assert.Equal(t, 128, svc.GetResizeHeight())
	assert.Equal(t, uint64(7), svc.GetSeed())
	assert.True(t, svc.GetCheckpointUpload())
	assert.Equal(t, "models", svc.GetStorageParameters().Bucket)
}

func TestLoadSettingsInvalid(t *testing.T) {
	t.Setenv("BATCH_SIZE", "many")

	_, err := NewEnv()
	require.Error(t, err)
}

func TestWorkerCountsAreClamped(t *testing.T) {
	s := HardCodedSettings(t.TempDir())
	s.LoaderMaxWorkers = 0
	s.EvaluatorMaxWorkers = -3
	s.BatchSize = 0

	svc := New(s)
	assert.Equal(t, 1, svc.GetLoaderMaxWorkers())
	assert.Equal(t, 1, svc.GetEvaluatorMaxWorkers())
	assert.Equal(t, 1, svc.GetBatchSize())
}
