package autograd

// Conv2D computes a strided, zero-padded 2-D convolution.
// x is [N, C, H, W], w is [O, C, K, K] and b is [O].
func Conv2D(x, w, b *Tensor, stride, pad int) *Tensor {
	if len(x.Shape) != 4 || len(w.Shape) != 4 || w.Shape[1] != x.Shape[1] || w.Shape[2] != w.Shape[3] {
		shapePanic("conv2d", w.Shape, x.Shape)
	}
	n, c, h, wd := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	o, k := w.Shape[0], w.Shape[2]
	if len(b.Data) != o {
		shapePanic("conv2d bias", []int{o}, b.Shape)
	}
	ho := (h+2*pad-k)/stride + 1
	wo := (wd+2*pad-k)/stride + 1
	if ho <= 0 || wo <= 0 {
		shapePanic("conv2d output", []int{n, o, ho, wo}, x.Shape)
	}

	out := make([]float32, n*o*ho*wo)
	for ni := 0; ni < n; ni++ {
		for oi := 0; oi < o; oi++ {
			base := ((ni*o + oi) * ho) * wo
			for y := 0; y < ho; y++ {
				for xo := 0; xo < wo; xo++ {
					sum := b.Data[oi]
					for ci := 0; ci < c; ci++ {
						xBase := (ni*c + ci) * h * wd
						wBase := (oi*c + ci) * k * k
						for ky := 0; ky < k; ky++ {
							iy := y*stride - pad + ky
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := xo*stride - pad + kx
								if ix < 0 || ix >= wd {
									continue
								}
								sum += w.Data[wBase+ky*k+kx] * x.Data[xBase+iy*wd+ix]
							}
						}
					}
					out[base+y*wo+xo] = sum
				}
			}
		}
	}

	return result([]int{n, o, ho, wo}, out, func(g []float32) [][]float32 {
		gx := make([]float32, len(x.Data))
		gw := make([]float32, len(w.Data))
		gb := make([]float32, o)
		for ni := 0; ni < n; ni++ {
			for oi := 0; oi < o; oi++ {
				base := ((ni*o + oi) * ho) * wo
				for y := 0; y < ho; y++ {
					for xo := 0; xo < wo; xo++ {
						gv := g[base+y*wo+xo]
						if gv == 0 {
							continue
						}
						gb[oi] += gv
						for ci := 0; ci < c; ci++ {
							xBase := (ni*c + ci) * h * wd
							wBase := (oi*c + ci) * k * k
							for ky := 0; ky < k; ky++ {
								iy := y*stride - pad + ky
								if iy < 0 || iy >= h {
									continue
								}
								for kx := 0; kx < k; kx++ {
									ix := xo*stride - pad + kx
									if ix < 0 || ix >= wd {
										continue
									}
									gw[wBase+ky*k+kx] += gv * x.Data[xBase+iy*wd+ix]
									gx[xBase+iy*wd+ix] += gv * w.Data[wBase+ky*k+kx]
								}
							}
						}
					}
				}
			}
		}
		return [][]float32{gx, gw, gb}
	}, x, w, b)
}

// ConvTranspose2D computes the transpose (fractionally strided) convolution.
// x is [N, C, H, W], w is [C, O, K, K] and b is [O]. The output spatial size
// is (H-1)*stride - 2*pad + K.
func ConvTranspose2D(x, w, b *Tensor, stride, pad int) *Tensor {
	if len(x.Shape) != 4 || len(w.Shape) != 4 || w.Shape[0] != x.Shape[1] || w.Shape[2] != w.Shape[3] {
		shapePanic("conv_transpose2d", w.Shape, x.Shape)
	}
	n, c, h, wd := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	o, k := w.Shape[1], w.Shape[2]
	if len(b.Data) != o {
		shapePanic("conv_transpose2d bias", []int{o}, b.Shape)
	}
	ho := (h-1)*stride - 2*pad + k
	wo := (wd-1)*stride - 2*pad + k
	if ho <= 0 || wo <= 0 {
		shapePanic("conv_transpose2d output", []int{n, o, ho, wo}, x.Shape)
	}

	out := make([]float32, n*o*ho*wo)
	for ni := 0; ni < n; ni++ {
		for oi := 0; oi < o; oi++ {
			base := ((ni*o + oi) * ho) * wo
			for i := 0; i < ho*wo; i++ {
				out[base+i] = b.Data[oi]
			}
		}
		for ci := 0; ci < c; ci++ {
			xBase := (ni*c + ci) * h * wd
			for iy := 0; iy < h; iy++ {
				for ix := 0; ix < wd; ix++ {
					xv := x.Data[xBase+iy*wd+ix]
					for oi := 0; oi < o; oi++ {
						base := ((ni*o + oi) * ho) * wo
						wBase := (ci*o + oi) * k * k
						for ky := 0; ky < k; ky++ {
							oy := iy*stride - pad + ky
							if oy < 0 || oy >= ho {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ox := ix*stride - pad + kx
								if ox < 0 || ox >= wo {
									continue
								}
								out[base+oy*wo+ox] += xv * w.Data[wBase+ky*k+kx]
							}
						}
					}
				}
			}
		}
	}

	return result([]int{n, o, ho, wo}, out, func(g []float32) [][]float32 {
		gx := make([]float32, len(x.Data))
		gw := make([]float32, len(w.Data))
		gb := make([]float32, o)
		for ni := 0; ni < n; ni++ {
			for oi := 0; oi < o; oi++ {
				base := ((ni*o + oi) * ho) * wo
				for i := 0; i < ho*wo; i++ {
					gb[oi] += g[base+i]
				}
			}
			for ci := 0; ci < c; ci++ {
				xBase := (ni*c + ci) * h * wd
				for iy := 0; iy < h; iy++ {
					for ix := 0; ix < wd; ix++ {
						xv := x.Data[xBase+iy*wd+ix]
						var gxv float32
						for oi := 0; oi < o; oi++ {
							base := ((ni*o + oi) * ho) * wo
							wBase := (ci*o + oi) * k * k
							for ky := 0; ky < k; ky++ {
								oy := iy*stride - pad + ky
								if oy < 0 || oy >= ho {
									continue
								}
								for kx := 0; kx < k; kx++ {
									ox := ix*stride - pad + kx
									if ox < 0 || ox >= wo {
										continue
									}
									gv := g[base+oy*wo+ox]
									gxv += gv * w.Data[wBase+ky*k+kx]
									gw[wBase+ky*k+kx] += gv * xv
								}
							}
						}
						gx[xBase+iy*wd+ix] = gxv
					}
				}
			}
		}
		return [][]float32{gx, gw, gb}
	}, x, w, b)
}
