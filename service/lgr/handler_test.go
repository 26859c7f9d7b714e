package lgr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mdobak/go-xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/framepred-go/model"
)

func TestHandlerWritesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	logger := slog.New(NewHandler(&console, &file, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("clip loaded", slog.Int("frames", 5))

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "clip loaded")
	assert.Contains(t, console.String(), "frames=5")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "clip loaded", entry["msg"])
	assert.Equal(t, float64(5), entry["frames"])
}

func TestHandlerExpandsErrorStack(t *testing.T) {
	var file bytes.Buffer
	logger := slog.New(NewHandler(&bytes.Buffer{}, &file, slog.LevelInfo))

	logger.Error("load failed", slog.Any("error", xerrors.New("bad frame")))

	var entry struct {
		Error struct {
			Msg   string       `json:"msg"`
			Trace []stackFrame `json:"trace"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "bad frame", entry.Error.Msg)
	assert.NotEmpty(t, entry.Error.Trace)
}

func TestHandlerExpandsStageErrorStack(t *testing.T) {
	var file bytes.Buffer
	logger := slog.New(NewHandler(&bytes.Buffer{}, &file, slog.LevelInfo))

	stageErr := model.GenError("data_loader",
		fmt.Errorf("corrupt frame"),
		map[string]interface{}{"video": "01"},
		"error loading clip from video %s",
		"01")
	var e interface{} = stageErr
	logger.Warn("pipeline error", slog.Any("error", e))

	var entry struct {
		Error struct {
			Msg   string       `json:"msg"`
			Trace []stackFrame `json:"trace"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "data_loader: error loading clip from video 01: corrupt frame", entry.Error.Msg)
	require.NotEmpty(t, entry.Error.Trace)
	assert.Equal(t, "lgr.TestHandlerExpandsStageErrorStack", entry.Error.Trace[0].Func)
	assert.NotEmpty(t, stageErr.StackTrace)
}

func TestHandlerPlainErrorHasNoTrace(t *testing.T) {
	var file bytes.Buffer
	logger := slog.New(NewHandler(&bytes.Buffer{}, &file, slog.LevelInfo))

	logger.Error("load failed", slog.Any("error", fmt.Errorf("plain")))
	assert.Contains(t, file.String(), `"msg":"plain"`)
	assert.NotContains(t, file.String(), `"trace"`)
}

func TestHandlerAddsTraceAndRun(t *testing.T) {
	var file bytes.Buffer
	logger := slog.New(NewHandler(&bytes.Buffer{}, &file, slog.LevelInfo))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = WithRun(ctx, "run-1")

	logger.With(slog.String("mode", "stream")).InfoContext(ctx, "batch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", entry["trace_id"])
	assert.Equal(t, "0102030405060708", entry["span_id"])
	assert.Equal(t, "run-1", entry["run"])
	assert.Equal(t, "stream", entry["mode"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
