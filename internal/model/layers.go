package model

import (
	"fmt"
	"math/rand"

	"cyclegan-forge/internal/autograd"
)

const (
	initStd    = 0.02
	leakySlope = 0.05
)

type conv struct {
	w, b        *autograd.Tensor
	stride, pad int
	transposed  bool
}

func newConv(set *paramSet, name string, in, out, k, stride, pad int, rng *rand.Rand) conv {
	return conv{
		w:      set.register(name+".weight", normal(rng, out, in, k, k)),
		b:      set.register(name+".bias", autograd.Param([]int{out}, make([]float32, out))),
		stride: stride,
		pad:    pad,
	}
}

func newDeconv(set *paramSet, name string, in, out, k, stride, pad int, rng *rand.Rand) conv {
	return conv{
		w:          set.register(name+".weight", normal(rng, in, out, k, k)),
		b:          set.register(name+".bias", autograd.Param([]int{out}, make([]float32, out))),
		stride:     stride,
		pad:        pad,
		transposed: true,
	}
}

func (c conv) forward(x *autograd.Tensor) *autograd.Tensor {
	if c.transposed {
		return autograd.ConvTranspose2D(x, c.w, c.b, c.stride, c.pad)
	}
	return autograd.Conv2D(x, c.w, c.b, c.stride, c.pad)
}

func normal(rng *rand.Rand, shape ...int) *autograd.Tensor {
	data := make([]float32, autograd.NumElements(shape))
	for i := range data {
		data[i] = float32(rng.NormFloat64() * initStd)
	}
	return autograd.Param(shape, data)
}

func checkImageSize(size, multiple int) error {
	if size <= 0 || size%multiple != 0 {
		return fmt.Errorf("model: image size %d must be a positive multiple of %d", size, multiple)
	}
	return nil
}
