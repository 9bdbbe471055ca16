// Package tensor is a minimal dense float32 tensor used to hand pixel data
// to the pipeline in [frames, height, width, channels] layout.
package tensor

import (
	"fmt"
)

// Tensor is a row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: make([]float32, n)}
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.Shape[i]
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// At returns the element at the given index.
func (t *Tensor) At(idx ...int) float32 {
	return t.Data[t.offset(idx)]
}

// Set writes the element at the given index.
func (t *Tensor) Set(v float32, idx ...int) {
	t.Data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: index rank %d, want %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, v := range idx {
		off = off*t.Shape[i] + v
	}
	return off
}

// Concat joins tensors along axis 0. All inputs must agree on the trailing
// dimensions.
func Concat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("tensor: nothing to concatenate")
	}
	first := ts[0]
	lead := 0
	total := 0
	for i, t := range ts {
		if len(t.Shape) != len(first.Shape) {
			return nil, fmt.Errorf("tensor %d: rank %d, want %d", i, len(t.Shape), len(first.Shape))
		}
		for d := 1; d < len(t.Shape); d++ {
			if t.Shape[d] != first.Shape[d] {
				return nil, fmt.Errorf("tensor %d: shape %v incompatible with %v", i, t.Shape, first.Shape)
			}
		}
		lead += t.Shape[0]
		total += len(t.Data)
	}

	shape := make([]int, len(first.Shape))
	copy(shape, first.Shape)
	shape[0] = lead

	data := make([]float32, 0, total)
	for _, t := range ts {
		data = append(data, t.Data...)
	}
	return &Tensor{Shape: shape, Data: data}, nil
}
