package tensor

import (
	"fmt"
)

// Tensor is a dense row-major float32 tensor.
// 4D data is laid out NHWC and single frames HWC.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"-"`
}

// New allocates a zeroed tensor. A negative dimension yields a tensor with
// no data that every operation rejects.
func New(shape ...int) Tensor {
	s := append([]int(nil), shape...)
	return Tensor{
		Shape: s,
		Data:  make([]float32, volume(s)),
	}
}

// FromData wraps data without copying it
func FromData(data []float32, shape ...int) (Tensor, error) {
	t := Tensor{Shape: append([]int(nil), shape...), Data: data}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Validate reports a negative dimension or data that does not fill the shape.
func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", t.Shape)
		}
	}
	if volume(t.Shape) != len(t.Data) {
		return fmt.Errorf("data length %d does not match shape %v", len(t.Data), t.Shape)
	}
	return nil
}

func (t Tensor) Rank() int {
	return len(t.Shape)
}

func (t Tensor) Len() int {
	return len(t.Data)
}

func (t Tensor) Empty() bool {
	return len(t.Data) == 0
}

func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}

func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Dims4 returns the NHWC dimensions of a rank 4 tensor
func (t Tensor) Dims4() (n, h, w, c int, err error) {
	if err := t.Validate(); err != nil {
		return 0, 0, 0, 0, err
	}
	if len(t.Shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected a rank 4 tensor, got shape %v", t.Shape)
	}
	return t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3], nil
}

// Frame returns the i-th element along the leading axis as a view.
func (t Tensor) Frame(i int) (Tensor, error) {
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	if len(t.Shape) < 2 {
		return Tensor{}, fmt.Errorf("cannot index frames of shape %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return Tensor{}, fmt.Errorf("frame index %d out of range [0, %d)", i, t.Shape[0])
	}
	stride := volume(t.Shape[1:])
	return Tensor{
		Shape: append([]int(nil), t.Shape[1:]...),
		Data:  t.Data[i*stride : (i+1)*stride],
	}, nil
}

// Channels copies the channel range [from, to) of an HWC or NHWC tensor.
func (t Tensor) Channels(from, to int) (Tensor, error) {
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	if len(t.Shape) < 3 {
		return Tensor{}, fmt.Errorf("cannot slice channels of shape %v", t.Shape)
	}
	c := t.Shape[len(t.Shape)-1]
	if from < 0 || to > c || from >= to {
		return Tensor{}, fmt.Errorf("channel range [%d, %d) invalid for %d channels", from, to, c)
	}

	shape := append([]int(nil), t.Shape...)
	shape[len(shape)-1] = to - from
	out := New(shape...)

	pixels := len(t.Data) / c
	width := to - from
	for p := 0; p < pixels; p++ {
		copy(out.Data[p*width:(p+1)*width], t.Data[p*c+from:p*c+to])
	}
	return out, nil
}

// ConcatChannels joins HWC tensors with identical height and width along
// the channel axis.
func ConcatChannels(items ...Tensor) (Tensor, error) {
	if len(items) == 0 {
		return Tensor{}, fmt.Errorf("nothing to concatenate")
	}

	h, w := 0, 0
	channels := 0
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return Tensor{}, fmt.Errorf("item %d: %w", i, err)
		}
		if item.Rank() != 3 {
			return Tensor{}, fmt.Errorf("item %d: expected HWC tensor, got shape %v", i, item.Shape)
		}
		if i == 0 {
			h, w = item.Shape[0], item.Shape[1]
		} else if item.Shape[0] != h || item.Shape[1] != w {
			return Tensor{}, fmt.Errorf("item %d: spatial shape %dx%d does not match %dx%d", i, item.Shape[0], item.Shape[1], h, w)
		}
		channels += item.Shape[2]
	}

	out := New(h, w, channels)
	for p := 0; p < h*w; p++ {
		dst := out.Data[p*channels:]
		offset := 0
		for _, item := range items {
			c := item.Shape[2]
			copy(dst[offset:offset+c], item.Data[p*c:(p+1)*c])
			offset += c
		}
	}
	return out, nil
}

// Stack puts identically shaped tensors behind a new leading axis.
func Stack(items ...Tensor) (Tensor, error) {
	if len(items) == 0 {
		return Tensor{}, fmt.Errorf("nothing to stack")
	}

	first := items[0]
	if err := first.Validate(); err != nil {
		return Tensor{}, fmt.Errorf("item 0: %w", err)
	}
	for i, item := range items[1:] {
		if err := item.Validate(); err != nil {
			return Tensor{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		if !item.SameShape(first) {
			return Tensor{}, fmt.Errorf("item %d: shape %v does not match %v", i+1, item.Shape, first.Shape)
		}
	}

	shape := append([]int{len(items)}, first.Shape...)
	out := New(shape...)
	stride := first.Len()
	for i, item := range items {
		copy(out.Data[i*stride:(i+1)*stride], item.Data)
	}
	return out, nil
}

func volume(shape []int) int {
	v := 1
	for _, d := range shape {
		if d < 0 {
			return 0
		}
		v *= d
	}
	return v
}
