package model

import (
	"math/rand"

	"cyclegan-forge/internal/autograd"
)

// ConvGenerator is an encoder/decoder translation network: two stride-2
// convolutions, two 3x3 convolutions and two stride-2 transposed
// convolutions ending in tanh, so outputs share the [-1, 1] input range.
type ConvGenerator struct {
	paramSet
	enc1, enc2 conv
	res1, res2 conv
	dec1, dec2 conv
}

// NewGenerator builds a generator for channels-deep images whose side is a
// multiple of four. convDim sets the width of the first layer.
func NewGenerator(channels, convDim, imageSize int, rng *rand.Rand) (*ConvGenerator, error) {
	if err := checkImageSize(imageSize, 4); err != nil {
		return nil, err
	}
	g := &ConvGenerator{}
	g.enc1 = newConv(&g.paramSet, "enc1", channels, convDim, 4, 2, 1, rng)
	g.enc2 = newConv(&g.paramSet, "enc2", convDim, convDim*2, 4, 2, 1, rng)
	g.res1 = newConv(&g.paramSet, "res1", convDim*2, convDim*2, 3, 1, 1, rng)
	g.res2 = newConv(&g.paramSet, "res2", convDim*2, convDim*2, 3, 1, 1, rng)
	g.dec1 = newDeconv(&g.paramSet, "dec1", convDim*2, convDim, 4, 2, 1, rng)
	g.dec2 = newDeconv(&g.paramSet, "dec2", convDim, channels, 4, 2, 1, rng)
	return g, nil
}

// Forward maps [N, C, H, W] to [N, C, H, W].
func (g *ConvGenerator) Forward(x *autograd.Tensor) *autograd.Tensor {
	out := autograd.LeakyReLU(g.enc1.forward(x), leakySlope)
	out = autograd.LeakyReLU(g.enc2.forward(out), leakySlope)
	out = autograd.LeakyReLU(g.res1.forward(out), leakySlope)
	out = autograd.LeakyReLU(g.res2.forward(out), leakySlope)
	out = autograd.LeakyReLU(g.dec1.forward(out), leakySlope)
	return autograd.Tanh(g.dec2.forward(out))
}
