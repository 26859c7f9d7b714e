package mode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/pipeline"
	"github.com/khaledhikmat/framepred-go/service/checkpoint"
	"github.com/khaledhikmat/framepred-go/service/config"
	"github.com/khaledhikmat/framepred-go/service/data"
	"github.com/khaledhikmat/framepred-go/service/storage"
	"github.com/khaledhikmat/framepred-go/tensor"
)

func testServices(t *testing.T, mutate func(s *config.Settings)) (pipeline.ServicesFactory, *storage.Fake, string) {
	t.Helper()
	folder := t.TempDir()
	s := config.HardCodedSettings(folder)
	s.FrameExtension = ".png"
	if mutate != nil {
		mutate(&s)
	}
	cfgSvc := config.New(s)
	fake := storage.NewFake()
	return pipeline.ServicesFactory{
		CfgSvc:     cfgSvc,
		DataSvc:    data.NewFilesDB(cfgSvc),
		StorageSvc: fake,
	}, fake, folder
}

func writeFrames(t *testing.T, dir, video string, n int, shade float64) {
	t.Helper()
	writeFramesAs(t, dir, video, n, shade, ".png")
}

func writeFramesAs(t *testing.T, dir, video string, n int, shade float64, ext string) {
	t.Helper()
	videoDir := filepath.Join(dir, video)
	require.NoError(t, os.MkdirAll(videoDir, 0755))

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(shade, shade, shade, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()
	for i := 0; i < n; i++ {
		require.True(t, gocv.IMWrite(filepath.Join(videoDir, fmt.Sprintf("%06d%s", i, ext)), img))
	}
}

func TestStreamStopsAtMaxBatches(t *testing.T) {
	svcs, _, folder := testServices(t, nil)
	writeFrames(t, filepath.Join(folder, "frames"), "01", 6, 100)
	writeFrames(t, filepath.Join(folder, "frames"), "02", 5, 200)

	require.NoError(t, Stream(context.Background(), svcs))

	raw, err := os.ReadFile(filepath.Join(folder, "output", "stream-stats.json"))
	require.NoError(t, err)
	stats := []model.StreamStats{}
	require.NoError(t, json.Unmarshal(raw, &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Batches)
	assert.Equal(t, 6, stats[0].Clips)
	assert.Equal(t, []int{2, 16, 16, 9}, stats[0].Shape)
	assert.NotEmpty(t, stats[0].RunID)

	assert.FileExists(t, filepath.Join(folder, "output", "loader-stats.json"))
}

func TestStreamWithoutVideos(t *testing.T) {
	svcs, _, folder := testServices(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "frames"), 0755))

	require.Error(t, Stream(context.Background(), svcs))
}

func TestEvaluate(t *testing.T) {
	svcs, _, folder := testServices(t, nil)
	writeFrames(t, filepath.Join(folder, "frames"), "01", 3, 100)
	writeFrames(t, filepath.Join(folder, "generated"), "01", 3, 100)
	writeFrames(t, filepath.Join(folder, "frames"), "02", 2, 100)
	writeFrames(t, filepath.Join(folder, "generated"), "02", 2, 120)

	require.NoError(t, Evaluate(context.Background(), svcs))

	summaries, err := svcs.DataSvc.RetrieveVideoSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "01", summaries[0].Video)
	assert.Equal(t, 3, summaries[0].IdenticalFrames)

	// a constant offset of 20 grey levels
	assert.Equal(t, "02", summaries[1].Video)
	assert.Equal(t, 2, summaries[1].Frames)
	assert.InDelta(t, 22.11, summaries[1].MeanPSNR, 0.01)

	assert.FileExists(t, svcs.CfgSvc.GetResultsLogFile())
}

func TestEvaluateAcrossFormats(t *testing.T) {
	svcs, _, folder := testServices(t, nil)
	writeFramesAs(t, filepath.Join(folder, "frames"), "01", 3, 100, ".jpg")
	writeFramesAs(t, filepath.Join(folder, "generated"), "01", 3, 120, ".png")

	require.NoError(t, Evaluate(context.Background(), svcs))

	summaries, err := svcs.DataSvc.RetrieveVideoSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "01", summaries[0].Video)
	assert.Equal(t, 3, summaries[0].Frames)
}

func TestEvaluateWithoutPairs(t *testing.T) {
	svcs, _, folder := testServices(t, nil)
	writeFrames(t, filepath.Join(folder, "frames"), "01", 2, 100)
	writeFrames(t, filepath.Join(folder, "generated"), "03", 2, 100)

	require.Error(t, Evaluate(context.Background(), svcs))
}

func TestCheckpointUploadsLatest(t *testing.T) {
	svcs, fake, folder := testServices(t, func(s *config.Settings) {
		s.CheckpointUpload = true
	})

	w, err := tensor.FromData([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	saver := checkpoint.NewSaver(nil, 2, "run-1")
	ctx := context.Background()
	_, err = saver.Save(ctx, map[string]tensor.Tensor{"w": w}, filepath.Join(folder, "checkpoints"), 10)
	require.NoError(t, err)
	latest, err := saver.Save(ctx, map[string]tensor.Tensor{"w": w}, filepath.Join(folder, "checkpoints"), 20)
	require.NoError(t, err)

	require.NoError(t, Checkpoint(ctx, svcs))
	assert.Equal(t, []string{latest}, fake.Files())
}

func TestCheckpointMissing(t *testing.T) {
	svcs, fake, _ := testServices(t, nil)

	require.Error(t, Checkpoint(context.Background(), svcs))
	assert.Empty(t, fake.Files())
}
