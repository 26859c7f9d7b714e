// Package quality computes image similarity scores between generated and
// ground-truth frames. All tensors are NHWC float32.
package quality

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/khaledhikmat/framepred-go/tensor"
)

// Grayscale weights, applied to channels 0, 1 and 2 in storage order.
var grayWeights = [3]float32{0.2989, 0.5870, 0.1140}

// Log10 is the base 10 logarithm in float32.
func Log10(x float32) float32 {
	return math32.Log10(x)
}

// PSNRError returns the mean peak signal to noise ratio over the batch.
// Frames are expected in [-1, 1] and are rescaled to [0, 1] first.
func PSNRError(gen, gt tensor.Tensor) (float32, error) {
	errs, err := PerFramePSNR(gen, gt)
	if err != nil {
		return 0, err
	}
	return mean(errs), nil
}

// PerFramePSNR returns the PSNR of every frame of the batch.
func PerFramePSNR(gen, gt tensor.Tensor) ([]float32, error) {
	n, h, w, c, err := checkPair(gen, gt)
	if err != nil {
		return nil, err
	}

	numPixels := float32(h * w * c)
	stride := h * w * c
	errs := make([]float32, n)
	for f := 0; f < n; f++ {
		var sum float32
		for i := f * stride; i < (f+1)*stride; i++ {
			d := (gt.Data[i]+1)/2 - (gen.Data[i]+1)/2
			sum += d * d
		}
		errs[f] = 10 * Log10(1/((1/numPixels)*sum))
	}
	return errs, nil
}

// SharpDiffError returns the mean sharpness difference over the batch. The
// gradients are one pixel forward differences, zero padded on the right and
// bottom edges.
func SharpDiffError(gen, gt tensor.Tensor, channels int) (float32, error) {
	errs, err := PerFrameSharpDiff(gen, gt, channels)
	if err != nil {
		return 0, err
	}
	return mean(errs), nil
}

// PerFrameSharpDiff returns the sharpness difference of every frame of the batch.
func PerFrameSharpDiff(gen, gt tensor.Tensor, channels int) ([]float32, error) {
	n, h, w, c, err := checkPair(gen, gt)
	if err != nil {
		return nil, err
	}
	if c != channels {
		return nil, fmt.Errorf("frames have %d channels, expected %d", c, channels)
	}

	numPixels := float32(h * w * c)
	stride := h * w * c
	errs := make([]float32, n)
	for f := 0; f < n; f++ {
		genFrame := gen.Data[f*stride : (f+1)*stride]
		gtFrame := gt.Data[f*stride : (f+1)*stride]

		var sum float32
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					genGrad := gradient(genFrame, h, w, c, y, x, ch)
					gtGrad := gradient(gtFrame, h, w, c, y, x, ch)
					sum += math32.Abs(gtGrad - genGrad)
				}
			}
		}
		errs[f] = 10 * Log10(1/((1/numPixels)*sum))
	}
	return errs, nil
}

// gradient is |dx| + |dy| where dx = in[y,x+1] - in[y,x] and
// dy = in[y,x] - in[y+1,x].
func gradient(frame []float32, h, w, c, y, x, ch int) float32 {
	at := func(yy, xx int) float32 {
		if yy >= h || xx >= w {
			return 0
		}
		return frame[(yy*w+xx)*c+ch]
	}

	v := at(y, x)
	dx := at(y, x+1) - v
	dy := v - at(y+1, x)
	return math32.Abs(dx) + math32.Abs(dy)
}

// DiffMask returns |gray(gen) - gray(gt)| after normalising both from
// [minValue, maxValue] to [0, 1]. The result has a single channel.
func DiffMask(gen, gt tensor.Tensor, minValue, maxValue float32) (tensor.Tensor, error) {
	n, h, w, c, err := checkPair(gen, gt)
	if err != nil {
		return tensor.Tensor{}, err
	}
	if c != 3 {
		return tensor.Tensor{}, fmt.Errorf("diff mask needs 3 channel frames, got %d", c)
	}
	delta := maxValue - minValue
	if delta == 0 {
		return tensor.Tensor{}, fmt.Errorf("empty value range [%v, %v]", minValue, maxValue)
	}

	gray := func(px []float32) float32 {
		var g float32
		for i := 0; i < 3; i++ {
			g += grayWeights[i] * ((px[i] - minValue) / delta)
		}
		return g
	}

	out := tensor.New(n, h, w, 1)
	for p := 0; p < n*h*w; p++ {
		out.Data[p] = math32.Abs(gray(gen.Data[p*3:p*3+3]) - gray(gt.Data[p*3:p*3+3]))
	}
	return out, nil
}

func checkPair(gen, gt tensor.Tensor) (n, h, w, c int, err error) {
	n, h, w, c, err = gen.Dims4()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("generated frames: %w", err)
	}
	if err := gt.Validate(); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("ground truth frames: %w", err)
	}
	if !gen.SameShape(gt) {
		return 0, 0, 0, 0, fmt.Errorf("generated shape %v does not match ground truth shape %v", gen.Shape, gt.Shape)
	}
	if n == 0 || h == 0 || w == 0 || c == 0 {
		return 0, 0, 0, 0, fmt.Errorf("empty frames of shape %v", gen.Shape)
	}
	return n, h, w, c, nil
}

func mean(values []float32) float32 {
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}
