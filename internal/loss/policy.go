// Package loss composes the adversarial and cycle-consistency objectives.
// The composition is chosen once, when the policy is built, so the
// training loop never branches on loss configuration.
package loss

import (
	"cyclegan-forge/internal/autograd"
	"cyclegan-forge/internal/model"
)

// Adversarial scores discriminator logits against a training target.
type Adversarial interface {
	// Real is the discriminator loss for real images with their labels.
	Real(logits *autograd.Tensor, labels []int) *autograd.Tensor
	// Fake is the discriminator loss for translated images.
	Fake(logits *autograd.Tensor) *autograd.Tensor
	// Fool is the generator loss: translated images should be judged real,
	// keeping the labels of the images they were translated from.
	Fool(logits *autograd.Tensor, labels []int) *autograd.Tensor
}

// LeastSquares is the least-squares GAN objective over a single logit.
type LeastSquares struct{}

func (LeastSquares) Real(logits *autograd.Tensor, _ []int) *autograd.Tensor {
	return autograd.MSEScalar(logits, 1)
}

func (LeastSquares) Fake(logits *autograd.Tensor) *autograd.Tensor {
	return autograd.MSEScalar(logits, 0)
}

func (LeastSquares) Fool(logits *autograd.Tensor, _ []int) *autograd.Tensor {
	return autograd.MSEScalar(logits, 1)
}

// ClassConditional asks the discriminator to name the class of real images
// and to put generated images in an extra class with index NumClasses.
type ClassConditional struct {
	NumClasses int
}

// FakeLabel returns the class index reserved for generated images.
func (c ClassConditional) FakeLabel() int {
	return c.NumClasses
}

func (c ClassConditional) Real(logits *autograd.Tensor, labels []int) *autograd.Tensor {
	return autograd.SoftmaxCrossEntropy(logits, labels)
}

func (c ClassConditional) Fake(logits *autograd.Tensor) *autograd.Tensor {
	labels := make([]int, logits.Shape[0])
	for i := range labels {
		labels[i] = c.FakeLabel()
	}
	return autograd.SoftmaxCrossEntropy(logits, labels)
}

func (c ClassConditional) Fool(logits *autograd.Tensor, labels []int) *autograd.Tensor {
	return autograd.SoftmaxCrossEntropy(logits, labels)
}

// Cycle carries one generator sub-step: Source was translated by the
// forward generator into Translated, which the target-domain
// discriminator scored as Logits. Back maps Translated home again.
type Cycle struct {
	Source     *autograd.Tensor
	Labels     []int
	Translated *autograd.Tensor
	Logits     *autograd.Tensor
	Back       model.Generator
}

// GeneratorLoss computes the objective of one cycle direction.
type GeneratorLoss interface {
	Loss(c Cycle) *autograd.Tensor
}

type adversarialOnly struct {
	adv Adversarial
}

func (a adversarialOnly) Loss(c Cycle) *autograd.Tensor {
	return a.adv.Fool(c.Logits, c.Labels)
}

// WithCycle adds the unweighted mean squared reconstruction error of the
// round trip to the wrapped objective.
type WithCycle struct {
	GeneratorLoss
}

func (w WithCycle) Loss(c Cycle) *autograd.Tensor {
	reconstructed := c.Back.Forward(c.Translated)
	return autograd.Add(w.GeneratorLoss.Loss(c), autograd.MSE(c.Source, reconstructed))
}

// Policy is the resolved loss configuration for a run.
type Policy struct {
	Adversarial Adversarial
	Generator   GeneratorLoss
}

// NewPolicy selects least-squares or class-conditional adversarial terms
// and optionally decorates the generator objective with cycle consistency.
func NewPolicy(useLabels bool, numClasses int, useReconst bool) Policy {
	var adv Adversarial = LeastSquares{}
	if useLabels {
		adv = ClassConditional{NumClasses: numClasses}
	}
	return Compose(adv, useReconst)
}

// Compose builds a policy around adv. The generator objective fools adv
// with the source labels, plus the cycle term when useReconst is set.
func Compose(adv Adversarial, useReconst bool) Policy {
	var gen GeneratorLoss = adversarialOnly{adv: adv}
	if useReconst {
		gen = WithCycle{GeneratorLoss: gen}
	}
	return Policy{Adversarial: adv, Generator: gen}
}

// UsesCycle reports whether the generator objective includes reconstruction.
func (p Policy) UsesCycle() bool {
	_, ok := p.Generator.(WithCycle)
	return ok
}
