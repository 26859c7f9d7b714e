package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/framepred-go/service/storage"
	"github.com/khaledhikmat/framepred-go/tensor"
)

func params() map[string]tensor.Tensor {
	w := tensor.New(3, 3, 3, 8)
	for i := range w.Data {
		w.Data[i] = float32(i) * 0.5
	}
	b := tensor.New(8)
	b.Data[7] = -1
	return map[string]tensor.Tensor{
		"generator/conv1/weights": w,
		"generator/conv1/bias":    b,
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	logdir := filepath.Join(t.TempDir(), "does", "not", "exist")

	saver := NewSaver(nil, 0, "run-1")
	path, err := saver.Save(ctx, params(), logdir, 100)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logdir, "model.ckpt-100"), path)

	latest, err := Latest(logdir)
	require.NoError(t, err)
	assert.Equal(t, path, latest)

	restored, meta, err := Load(ctx, latest)
	require.NoError(t, err)
	assert.Equal(t, int64(100), meta.Step)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, []string{"generator/conv1/bias", "generator/conv1/weights"}, meta.Names)

	want := params()
	require.Len(t, restored, len(want))
	for name, w := range want {
		got, ok := restored[name]
		require.True(t, ok, name)
		assert.Equal(t, w.Shape, got.Shape)
		assert.Equal(t, w.Data, got.Data)
	}
}

func TestSaveKeepsNewest(t *testing.T) {
	ctx := context.Background()
	logdir := t.TempDir()

	saver := NewSaver(nil, 2, "")
	for step := int64(1); step <= 4; step++ {
		_, err := saver.Save(ctx, params(), logdir, step)
		require.NoError(t, err)
	}

	_, err := os.Stat(filepath.Join(logdir, "model.ckpt-1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(logdir, "model.ckpt-2"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(logdir, "model.ckpt-4"))
	assert.NoError(t, err)

	idx, err := readIndex(logdir)
	require.NoError(t, err)
	assert.Equal(t, "model.ckpt-4", idx.Latest)
	assert.Equal(t, []string{"model.ckpt-3", "model.ckpt-4"}, idx.All)
}

func TestSaveUploads(t *testing.T) {
	store := storage.NewFake()
	saver := NewSaver(store, 0, "")

	path, err := saver.Save(context.Background(), params(), t.TempDir(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, store.Files())
}

func TestLatestWithoutCheckpoint(t *testing.T) {
	_, err := Latest(t.TempDir())
	require.Error(t, err)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt-1")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0644))

	_, _, err := Load(context.Background(), path)
	require.Error(t, err)
}
