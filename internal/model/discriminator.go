package model

import (
	"math/rand"

	"cyclegan-forge/internal/autograd"
)

// ConvDiscriminator scores images with three stride-2 convolutions and a
// final convolution spanning the remaining feature map. It emits one logit
// per image, or numClasses+1 logits when class labels are used; the last
// class stands for "generated".
type ConvDiscriminator struct {
	paramSet
	conv1, conv2, conv3 conv
	fc                  conv
	outputs             int
}

// NewDiscriminator builds a critic for channels-deep images whose side is a
// multiple of eight.
func NewDiscriminator(channels, convDim, imageSize int, useLabels bool, numClasses int, rng *rand.Rand) (*ConvDiscriminator, error) {
	if err := checkImageSize(imageSize, 8); err != nil {
		return nil, err
	}
	d := &ConvDiscriminator{outputs: OutputArity(useLabels, numClasses)}
	d.conv1 = newConv(&d.paramSet, "conv1", channels, convDim, 4, 2, 1, rng)
	d.conv2 = newConv(&d.paramSet, "conv2", convDim, convDim*2, 4, 2, 1, rng)
	d.conv3 = newConv(&d.paramSet, "conv3", convDim*2, convDim*4, 4, 2, 1, rng)
	d.fc = newConv(&d.paramSet, "fc", convDim*4, d.outputs, imageSize/8, 1, 0, rng)
	return d, nil
}

// OutputArity returns the number of logits a discriminator emits.
func OutputArity(useLabels bool, numClasses int) int {
	if useLabels {
		return numClasses + 1
	}
	return 1
}

// Outputs returns the number of logits per image.
func (d *ConvDiscriminator) Outputs() int {
	return d.outputs
}

// Forward maps [N, C, H, W] to logits [N, Outputs()].
func (d *ConvDiscriminator) Forward(x *autograd.Tensor) *autograd.Tensor {
	out := autograd.LeakyReLU(d.conv1.forward(x), leakySlope)
	out = autograd.LeakyReLU(d.conv2.forward(out), leakySlope)
	out = autograd.LeakyReLU(d.conv3.forward(out), leakySlope)
	out = d.fc.forward(out)
	return autograd.Reshape(out, out.Shape[0], d.outputs)
}
