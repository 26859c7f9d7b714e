package data

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/framepred-go/model"
	"github.com/khaledhikmat/framepred-go/service/config"
)

func TestFilesDBAppendsSummaries(t *testing.T) {
	cfgSvc := config.NewHardCoded(t.TempDir())
	svc := NewFilesDB(cfgSvc)

	summaries, err := svc.RetrieveVideoSummaries()
	require.NoError(t, err)
	assert.Empty(t, summaries)

	require.NoError(t, svc.NewVideoSummary(model.VideoSummary{Video: "01", Frames: 10, MeanPSNR: 31.5}))
	require.NoError(t, svc.NewVideoSummary(model.VideoSummary{Video: "02", Frames: 4, MeanPSNR: 28}))

	summaries, err = svc.RetrieveVideoSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "01", summaries[0].Video)
	assert.Equal(t, 31.5, summaries[0].MeanPSNR)
	assert.NotZero(t, summaries[1].Timestamp)
}

func TestFilesDBErrors(t *testing.T) {
	cfgSvc := config.NewHardCoded(t.TempDir())
	svc := NewFilesDB(cfgSvc)

	require.NoError(t, svc.NewError(model.GenError("data_loader",
		errors.New("corrupt jpeg"),
		map[string]interface{}{"video": "01"},
		"error loading clip from %s", "01")))
	require.NoError(t, svc.NewError(errors.New("plain")))
	require.NoError(t, svc.NewError(model.GenError("evaluator", nil, nil, "no inner error")))

	records, err := svc.RetrieveErrors()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "data_loader", records[0].Processor)
	assert.Equal(t, "corrupt jpeg", records[0].Inner)
	assert.Equal(t, "error loading clip from 01", records[0].Message)
	assert.Equal(t, "01", records[0].Misc["video"])

	assert.Equal(t, "N/A", records[1].Processor)
	assert.Equal(t, "plain", records[1].Message)

	assert.Empty(t, records[2].Inner)
}

func TestFilesDBCorruptFile(t *testing.T) {
	cfgSvc := config.NewHardCoded(t.TempDir())
	svc := NewFilesDB(cfgSvc)

	require.NoError(t, os.MkdirAll(cfgSvc.GetOutputFolder(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgSvc.GetOutputFolder(), "video-summaries.json"), []byte("{"), 0644))

	_, err := svc.RetrieveVideoSummaries()
	require.Error(t, err)
	require.Error(t, svc.NewVideoSummary(model.VideoSummary{}))
}
