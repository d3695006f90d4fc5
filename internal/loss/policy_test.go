package loss

import (
	"math"
	"testing"

	"cyclegan-forge/internal/autograd"
	"cyclegan-forge/internal/model"
)

func logits(values ...float32) *autograd.Tensor {
	return autograd.Param([]int{len(values), 1}, values)
}

func TestLeastSquaresNonNegativeAndZeroAtTarget(t *testing.T) {
	var ls LeastSquares
	for _, v := range []float32{-3, -0.5, 0, 0.25, 1, 7} {
		if got := ls.Real(logits(v), nil).Item(); got < 0 {
			t.Fatalf("real loss %f < 0 at %f", got, v)
		}
		if got := ls.Fake(logits(v)).Item(); got < 0 {
			t.Fatalf("fake loss %f < 0 at %f", got, v)
		}
	}
	if got := ls.Real(logits(1, 1), nil).Item(); got != 0 {
		t.Fatalf("real loss at target = %f", got)
	}
	if got := ls.Fake(logits(0, 0)).Item(); got != 0 {
		t.Fatalf("fake loss at target = %f", got)
	}
	if got := ls.Fool(logits(1), nil).Item(); got != 0 {
		t.Fatalf("fool loss at target = %f", got)
	}
	if got := ls.Real(logits(0.5), nil).Item(); got == 0 {
		t.Fatalf("real loss away from target is zero")
	}
	if got := ls.Real(logits(3, -1), nil).Item(); got != 4 {
		t.Fatalf("real loss = %f, want 4", got)
	}
}

func TestClassConditionalFakeLabel(t *testing.T) {
	cc := ClassConditional{NumClasses: 2}
	if cc.FakeLabel() != 2 {
		t.Fatalf("fake label %d, want 2", cc.FakeLabel())
	}
	// strongly predicting class 2 makes the fake loss small
	confident := autograd.New([]int{2, 3}, []float32{0, 0, 20, 0, 0, 20})
	if got := cc.Fake(confident).Item(); got > 1e-6 {
		t.Fatalf("fake loss %f for confident fake prediction", got)
	}
	uniform := autograd.New([]int{1, 3}, []float32{0, 0, 0})
	if got := float64(cc.Real(uniform, []int{1}).Item()); math.Abs(got-math.Log(3)) > 1e-6 {
		t.Fatalf("real loss %f, want ln 3", got)
	}
}

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Forward(x *autograd.Tensor) *autograd.Tensor {
	g.calls++
	return autograd.Scale(x, 0.5)
}

func (g *countingGenerator) Parameters() []*autograd.Tensor { return nil }
func (g *countingGenerator) Snapshot() []model.Param        { return nil }
func (g *countingGenerator) Load([]model.Param) error       { return nil }

func TestNewPolicyComposition(t *testing.T) {
	source := autograd.New([]int{1, 1, 1, 2}, []float32{1, -1})
	translated := autograd.Param([]int{1, 1, 1, 2}, []float32{0.5, 0.5})
	cyc := Cycle{Source: source, Translated: translated, Logits: logits(1)}

	plain := NewPolicy(false, 0, false)
	if plain.UsesCycle() {
		t.Fatal("plain policy should not use cycle loss")
	}
	back := &countingGenerator{}
	cyc.Back = back
	if got := plain.Generator.Loss(cyc).Item(); got != 0 {
		t.Fatalf("adversarial-only loss %f, want 0", got)
	}

	withCycle := NewPolicy(false, 0, true)
	if back.calls != 0 {
		t.Fatalf("adversarial-only loss ran the back generator")
	}
	if !withCycle.UsesCycle() {
		t.Fatal("policy should use cycle loss")
	}
	// reconstruction is 0.25 everywhere: mean((1-0.25)^2, (-1-0.25)^2)
	want := (0.75*0.75 + 1.25*1.25) / 2
	if got := float64(withCycle.Generator.Loss(cyc).Item()); math.Abs(got-want) > 1e-6 {
		t.Fatalf("cycle loss %f, want %f", got, want)
	}
	if back.calls != 1 {
		t.Fatalf("back generator called %d times, want 1", back.calls)
	}

	if _, ok := NewPolicy(true, 5, false).Adversarial.(ClassConditional); !ok {
		t.Fatal("labels should select the class-conditional objective")
	}
}

func TestClassConditionalFoolTargetsTrueClass(t *testing.T) {
	cc := ClassConditional{NumClasses: 2}
	labels := []int{1, 0}
	fakeGuess := autograd.New([]int{2, 3}, []float32{0, 0, 20, 0, 0, 20})
	trueGuess := autograd.New([]int{2, 3}, []float32{0, 20, 0, 20, 0, 0})

	if got := cc.Fool(fakeGuess, labels).Item(); got < 10 {
		t.Fatalf("fool loss %f for a discriminator confident the image is fake", got)
	}
	if got := cc.Fool(trueGuess, labels).Item(); got > 1e-6 {
		t.Fatalf("fool loss %f for a discriminator confident in the true class", got)
	}

	// the generator objective passes the cycle's source labels through
	policy := NewPolicy(true, 2, false)
	cyc := Cycle{Labels: labels, Logits: trueGuess}
	if got := policy.Generator.Loss(cyc).Item(); got > 1e-6 {
		t.Fatalf("generator loss %f with true-class logits", got)
	}
	cyc.Labels = []int{0, 1}
	if got := policy.Generator.Loss(cyc).Item(); got < 10 {
		t.Fatalf("generator loss %f with swapped labels", got)
	}
}

func TestComposeKeepsAdversarial(t *testing.T) {
	adv := ClassConditional{NumClasses: 4}
	p := Compose(adv, true)
	if p.Adversarial != Adversarial(adv) {
		t.Fatalf("adversarial = %v, want %v", p.Adversarial, adv)
	}
	if !p.UsesCycle() {
		t.Fatal("Compose with reconstruction should use cycle loss")
	}
	if Compose(adv, false).UsesCycle() {
		t.Fatal("Compose without reconstruction should not use cycle loss")
	}
}
