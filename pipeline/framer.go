package pipeline

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/framepred-go/service/metrics"
	"github.com/khaledhikmat/framepred-go/tensor"
)

// LoadFrame reads an image file, resizes it to width x height and maps
// pixel values from [0, 255] to [-1, 1]. Channels stay in BGR order.
func LoadFrame(filename string, height, width int) (tensor.Tensor, error) {
	started := time.Now()

	img := gocv.IMRead(filename, gocv.IMReadColor)
	defer img.Close() // Crucial to close the image to avoid memory leaks
	if img.Empty() {
		return tensor.Tensor{}, fmt.Errorf("could not decode frame %s", filename)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(img, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear); err != nil {
		return tensor.Tensor{}, fmt.Errorf("resizing frame %s: %w", filename, err)
	}

	frame, err := matToTensor(resized)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("reading frame %s: %w", filename, err)
	}

	metrics.FramesLoadedTotal.Inc()
	metrics.FrameLoadDuration.Observe(time.Since(started).Seconds())
	return frame, nil
}

// matToTensor converts an 8 bit Mat into float32 values in [-1, 1]
func matToTensor(m gocv.Mat) (tensor.Tensor, error) {
	if m.Type() != gocv.MatTypeCV8UC3 {
		return tensor.Tensor{}, fmt.Errorf("unexpected mat type %v", m.Type())
	}

	pixels := m.ToBytes()
	out := make([]float32, len(pixels))
	for i, b := range pixels {
		out[i] = float32(b)/127.5 - 1.0
	}
	return tensor.FromData(out, m.Rows(), m.Cols(), m.Channels())
}

// WriteMask stores a single channel [0, 1] mask as an 8 bit image.
func WriteMask(filename string, mask tensor.Tensor) error {
	if mask.Rank() != 3 || mask.Shape[2] != 1 {
		return fmt.Errorf("mask must be HW1, got shape %v", mask.Shape)
	}

	pixels := make([]byte, mask.Len())
	for i, v := range mask.Data {
		switch {
		case v <= 0:
			pixels[i] = 0
		case v >= 1:
			pixels[i] = 255
		default:
			pixels[i] = byte(v*255 + 0.5)
		}
	}

	img, err := gocv.NewMatFromBytes(mask.Shape[0], mask.Shape[1], gocv.MatTypeCV8UC1, pixels)
	if err != nil {
		return fmt.Errorf("building mask image: %w", err)
	}
	defer img.Close()

	if ok := gocv.IMWrite(filename, img); !ok {
		return fmt.Errorf("could not write mask %s", filename)
	}
	return nil
}
