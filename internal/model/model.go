package model

import (
	"fmt"

	"gorgonia.org/tensor"

	"cyclegan-forge/internal/autograd"
)

// Batch is one minibatch of a single domain: images [N, C, H, W] in host
// memory plus one class label per image.
type Batch struct {
	Images *tensor.Dense
	Labels []int
}

// Generator translates a batch of images from one domain into the other.
type Generator interface {
	Forward(x *autograd.Tensor) *autograd.Tensor
	Parameters() []*autograd.Tensor
	Snapshot() []Param
	Load(params []Param) error
}

// Discriminator scores a batch of images, returning logits [N, Outputs()].
type Discriminator interface {
	Forward(x *autograd.Tensor) *autograd.Tensor
	Outputs() int
	Parameters() []*autograd.Tensor
	Snapshot() []Param
	Load(params []Param) error
}

// Param is a detached copy of one named parameter tensor.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
}

type namedParam struct {
	name   string
	tensor *autograd.Tensor
}

// paramSet is the parameter bookkeeping shared by the conv networks.
type paramSet struct {
	params []namedParam
}

func (s *paramSet) register(name string, t *autograd.Tensor) *autograd.Tensor {
	s.params = append(s.params, namedParam{name: name, tensor: t})
	return t
}

func (s *paramSet) Parameters() []*autograd.Tensor {
	out := make([]*autograd.Tensor, len(s.params))
	for i, p := range s.params {
		out[i] = p.tensor
	}
	return out
}

func (s *paramSet) Snapshot() []Param {
	out := make([]Param, len(s.params))
	for i, p := range s.params {
		out[i] = Param{
			Name:  p.name,
			Shape: append([]int(nil), p.tensor.Shape...),
			Data:  append([]float32(nil), p.tensor.Data...),
		}
	}
	return out
}

func (s *paramSet) Load(params []Param) error {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for _, p := range s.params {
		src, ok := byName[p.name]
		if !ok {
			return fmt.Errorf("model: missing parameter %s", p.name)
		}
		if len(src.Data) != p.tensor.Len() {
			return fmt.Errorf("model: parameter %s has %d values, want %d", p.name, len(src.Data), p.tensor.Len())
		}
		copy(p.tensor.Data, src.Data)
	}
	return nil
}
