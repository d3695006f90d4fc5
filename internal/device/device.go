// Package device resolves the compute device once per process and converts
// batches between host arrays and differentiable compute tensors.
package device

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"gorgonia.org/tensor"

	"cyclegan-forge/internal/autograd"
)

// Kind identifies the class of compute device.
type Kind int

const (
	Host Kind = iota
	Accelerator
)

func (k Kind) String() string {
	switch k {
	case Host:
		return "host"
	case Accelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// Device describes where model state and batches live for the whole run.
type Device struct {
	Kind     Kind
	Name     string
	Cores    int
	Features []string
}

// Resolve inspects the machine and returns the device every model and
// batch will share. No accelerator backend is linked, so the host is used.
func Resolve() Device {
	cores := cpuid.CPU.PhysicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	name := cpuid.CPU.BrandName
	if name == "" {
		name = runtime.GOARCH
	}
	var features []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "asimd"},
	} {
		if cpuid.CPU.Supports(f.id) {
			features = append(features, f.name)
		}
	}
	return Device{Kind: Host, Name: name, Cores: cores, Features: features}
}

func (d Device) String() string {
	return fmt.Sprintf("%s(%s, cores=%d, features=[%s])", d.Kind, d.Name, d.Cores, strings.Join(d.Features, ","))
}

// DefaultWorkers returns a loader worker count suited to the device.
func (d Device) DefaultWorkers() int {
	if d.Cores <= 1 {
		return 1
	}
	return d.Cores / 2
}

// ToCompute copies a host array onto the device. requiresGrad marks the
// copy as a differentiable leaf.
func (d Device) ToCompute(x *tensor.Dense, requiresGrad bool) (*autograd.Tensor, error) {
	if x == nil {
		return nil, fmt.Errorf("device: nil host array")
	}
	data, ok := x.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("device: unsupported dtype %v", x.Dtype())
	}
	shape := append([]int(nil), x.Shape()...)
	t := autograd.New(shape, append([]float32(nil), data...))
	if requiresGrad {
		t.SetRequiresGrad(true)
	}
	return t, nil
}

// ToHost detaches x from its graph and copies it into a host array. The
// result is only used for visualization and serialization.
func (d Device) ToHost(x *autograd.Tensor) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(x.Shape...),
		tensor.WithBacking(append([]float32(nil), x.Data...)),
	)
}
