package autograd

import "math"

// Add returns a + b for tensors of identical shape.
func Add(a, b *Tensor) *Tensor {
	if !sameShape(a.Shape, b.Shape) {
		shapePanic("add", a.Shape, b.Shape)
	}
	out := make([]float32, len(a.Data))
	for i := range out {
		out[i] = a.Data[i] + b.Data[i]
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		return [][]float32{clone(g), clone(g)}
	}, a, b)
}

// Sub returns a - b for tensors of identical shape.
func Sub(a, b *Tensor) *Tensor {
	if !sameShape(a.Shape, b.Shape) {
		shapePanic("sub", a.Shape, b.Shape)
	}
	out := make([]float32, len(a.Data))
	for i := range out {
		out[i] = a.Data[i] - b.Data[i]
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		gb := make([]float32, len(g))
		for i, v := range g {
			gb[i] = -v
		}
		return [][]float32{clone(g), gb}
	}, a, b)
}

// AddScalar returns a + c.
func AddScalar(a *Tensor, c float32) *Tensor {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = v + c
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		return [][]float32{clone(g)}
	}, a)
}

// Scale returns a * c.
func Scale(a *Tensor, c float32) *Tensor {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = v * c
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		ga := make([]float32, len(g))
		for i, v := range g {
			ga[i] = v * c
		}
		return [][]float32{ga}
	}, a)
}

// Square returns a * a elementwise.
func Square(a *Tensor) *Tensor {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = v * v
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		ga := make([]float32, len(g))
		for i, v := range g {
			ga[i] = 2 * a.Data[i] * v
		}
		return [][]float32{ga}
	}, a)
}

// Mean reduces every element of a to a one-element tensor.
func Mean(a *Tensor) *Tensor {
	n := len(a.Data)
	if n == 0 {
		shapePanic("mean", []int{1}, a.Shape)
	}
	var sum float64
	for _, v := range a.Data {
		sum += float64(v)
	}
	return result([]int{1}, []float32{float32(sum / float64(n))}, func(g []float32) [][]float32 {
		ga := make([]float32, n)
		share := g[0] / float32(n)
		for i := range ga {
			ga[i] = share
		}
		return [][]float32{ga}
	}, a)
}

// Reshape returns a view of a with a new shape of the same size.
func Reshape(a *Tensor, shape ...int) *Tensor {
	if NumElements(shape) != len(a.Data) {
		shapePanic("reshape", shape, a.Shape)
	}
	return result(append([]int(nil), shape...), a.Data, func(g []float32) [][]float32 {
		return [][]float32{clone(g)}
	}, a)
}

// LeakyReLU returns max(x, alpha*x).
func LeakyReLU(a *Tensor, alpha float32) *Tensor {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		if v > 0 {
			out[i] = v
		} else {
			out[i] = alpha * v
		}
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		ga := make([]float32, len(g))
		for i, v := range g {
			if a.Data[i] > 0 {
				ga[i] = v
			} else {
				ga[i] = alpha * v
			}
		}
		return [][]float32{ga}
	}, a)
}

// Tanh applies the hyperbolic tangent elementwise.
func Tanh(a *Tensor) *Tensor {
	out := make([]float32, len(a.Data))
	for i, v := range a.Data {
		out[i] = float32(math.Tanh(float64(v)))
	}
	return result(a.Shape, out, func(g []float32) [][]float32 {
		ga := make([]float32, len(g))
		for i, v := range g {
			ga[i] = v * (1 - out[i]*out[i])
		}
		return [][]float32{ga}
	}, a)
}

// MSE returns mean((a - b)^2).
func MSE(a, b *Tensor) *Tensor {
	return Mean(Square(Sub(a, b)))
}

// MSEScalar returns mean((a - c)^2).
func MSEScalar(a *Tensor, c float32) *Tensor {
	return Mean(Square(AddScalar(a, -c)))
}

func clone(g []float32) []float32 {
	return append([]float32(nil), g...)
}
