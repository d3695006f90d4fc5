package optim

import (
	"math"
	"testing"

	"cyclegan-forge/internal/autograd"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	p := autograd.Param([]int{2}, []float32{3, -2})
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.1
	opt, err := NewAdam(cfg, []*autograd.Tensor{p})
	if err != nil {
		t.Fatalf("NewAdam: %v", err)
	}
	for i := 0; i < 300; i++ {
		opt.ZeroGrad()
		autograd.MSEScalar(p, 1).Backward()
		opt.Step()
	}
	for i, v := range p.Data {
		if math.Abs(float64(v-1)) > 0.05 {
			t.Fatalf("param[%d]=%f, want ~1", i, v)
		}
	}
	if opt.StepCount != 300 {
		t.Fatalf("step count %d, want 300", opt.StepCount)
	}
}

func TestAdamFirstStepMagnitude(t *testing.T) {
	p := autograd.Param([]int{1}, []float32{0})
	opt, err := NewAdam(AdamConfig{LearningRate: 0.01, Beta1: 0.5, Beta2: 0.999}, []*autograd.Tensor{p})
	if err != nil {
		t.Fatalf("NewAdam: %v", err)
	}
	autograd.MSEScalar(p, 5).Backward()
	opt.Step()
	// bias correction makes the first update exactly lr * sign(grad)
	if math.Abs(float64(p.Data[0])-0.01) > 1e-6 {
		t.Fatalf("first step moved param to %f, want 0.01", p.Data[0])
	}
}

func TestAdamSkipsParamsWithoutGradient(t *testing.T) {
	used := autograd.Param([]int{1}, []float32{1})
	unused := autograd.Param([]int{1}, []float32{7})
	opt, err := NewAdam(DefaultAdamConfig(), []*autograd.Tensor{used, unused})
	if err != nil {
		t.Fatalf("NewAdam: %v", err)
	}
	autograd.Square(used).Backward()
	opt.Step()
	if unused.Data[0] != 7 {
		t.Fatalf("unused param changed to %f", unused.Data[0])
	}
	if used.Data[0] == 1 {
		t.Fatalf("used param did not change")
	}
}

func TestNewAdamRejectsBadConfig(t *testing.T) {
	p := autograd.Param([]int{1}, []float32{0})
	if _, err := NewAdam(AdamConfig{LearningRate: 0.1, Beta1: 1, Beta2: 0.9}, []*autograd.Tensor{p}); err == nil {
		t.Fatal("expected error for beta1 == 1")
	}
	if _, err := NewAdam(DefaultAdamConfig(), nil); err == nil {
		t.Fatal("expected error for empty params")
	}
}
