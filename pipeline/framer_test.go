package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/framepred-go/tensor"
)

func TestLoadFrame(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "000000.png")

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(51, 102, 204, 0), 10, 8, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(fn, img))

	frame, err := LoadFrame(fn, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 3}, frame.Shape)

	// BGR storage order
	want := []float32{51/127.5 - 1, 102/127.5 - 1, 204/127.5 - 1}
	for i, v := range frame.Data {
		assert.InDelta(t, want[i%3], v, 1e-5)
	}

	_, err = LoadFrame(filepath.Join(t.TempDir(), "missing.png"), 4, 5)
	require.Error(t, err)
}

func TestWriteMask(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "mask.png")

	mask, err := tensor.FromData([]float32{0, 0.5, 1, 2, -1, 0.2}, 2, 3, 1)
	require.NoError(t, err)
	require.NoError(t, WriteMask(fn, mask))

	img := gocv.IMRead(fn, gocv.IMReadGrayScale)
	defer img.Close()
	require.False(t, img.Empty())
	assert.Equal(t, 2, img.Rows())
	assert.Equal(t, 3, img.Cols())
	assert.Equal(t, uint8(0), img.GetUCharAt(0, 0))
	assert.Equal(t, uint8(128), img.GetUCharAt(0, 1))
	assert.Equal(t, uint8(255), img.GetUCharAt(0, 2))
	assert.Equal(t, uint8(255), img.GetUCharAt(1, 0))
	assert.Equal(t, uint8(0), img.GetUCharAt(1, 1))
	assert.Equal(t, uint8(51), img.GetUCharAt(1, 2))

	require.Error(t, WriteMask(fn, tensor.New(2, 3, 3)))
}
