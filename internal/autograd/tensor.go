// Package autograd is a small reverse-mode differentiation runtime over
// dense float32 tensors. Gradients of leaf tensors accumulate across
// Backward calls until they are explicitly zeroed.
package autograd

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a dense row-major float32 array that remembers how it was
// produced so gradients can be propagated back to its leaves.
type Tensor struct {
	Shape []int
	Data  []float32
	// Grad holds the accumulated gradient of a leaf that requires grad.
	// It stays nil until the first Backward reaches the tensor.
	Grad []float32

	requiresGrad bool
	parents      []*Tensor
	backward     func(grad []float32) [][]float32
}

// ShapeError reports an operation applied to tensors of incompatible shape.
type ShapeError struct {
	Op   string
	Want []int
	Got  []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("autograd: %s: shape mismatch: want %v, got %v", e.Op, e.Want, e.Got)
}

func shapePanic(op string, want, got []int) {
	panic(errors.WithStack(&ShapeError{Op: op, Want: want, Got: got}))
}

// New wraps data as a constant tensor. data is not copied.
func New(shape []int, data []float32) *Tensor {
	if n := NumElements(shape); n != len(data) {
		shapePanic("new", []int{n}, []int{len(data)})
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}
}

// Zeros allocates a constant tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return New(shape, make([]float32, NumElements(shape)))
}

// Param wraps data as a trainable leaf tensor.
func Param(shape []int, data []float32) *Tensor {
	t := New(shape, data)
	t.requiresGrad = true
	return t
}

// NumElements returns the product of the dimensions in shape.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// RequiresGrad reports whether gradients flow into t.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad marks a leaf tensor as differentiable.
func (t *Tensor) SetRequiresGrad(requires bool) {
	if !t.IsLeaf() {
		panic(errors.New("autograd: SetRequiresGrad on non-leaf tensor"))
	}
	t.requiresGrad = requires
}

// IsLeaf reports whether t was created directly rather than by an op.
func (t *Tensor) IsLeaf() bool {
	return t.backward == nil
}

// Len returns the number of elements in t.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float32 {
	if len(t.Data) != 1 {
		shapePanic("item", []int{1}, t.Shape)
	}
	return t.Data[0]
}

// ZeroGrad clears the accumulated gradient, keeping the buffer allocated.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// Detach returns a constant copy of t outside of any graph.
func (t *Tensor) Detach() *Tensor {
	return New(t.Shape, append([]float32(nil), t.Data...))
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, requires_grad=%t)", t.Shape, t.requiresGrad)
}

// result builds the output of an op. The backward closure is only kept
// when at least one input participates in differentiation.
func result(shape []int, data []float32, backward func(grad []float32) [][]float32, inputs ...*Tensor) *Tensor {
	out := &Tensor{Shape: shape, Data: data}
	for _, in := range inputs {
		if in.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if out.requiresGrad {
		out.parents = inputs
		out.backward = backward
	}
	return out
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
