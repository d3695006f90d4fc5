package autograd

import "math"

// SoftmaxCrossEntropy returns the mean categorical cross-entropy between
// logits [N, K] and integer class labels in [0, K).
func SoftmaxCrossEntropy(logits *Tensor, labels []int) *Tensor {
	if len(logits.Shape) != 2 || logits.Shape[0] != len(labels) {
		shapePanic("cross_entropy", []int{len(labels), -1}, logits.Shape)
	}
	n, k := logits.Shape[0], logits.Shape[1]
	for _, l := range labels {
		if l < 0 || l >= k {
			shapePanic("cross_entropy label", []int{k}, []int{l})
		}
	}

	probs := make([]float32, n*k)
	var total float64
	for i := 0; i < n; i++ {
		row := logits.Data[i*k : (i+1)*k]
		maxLogit := row[0]
		for _, v := range row {
			if v > maxLogit {
				maxLogit = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxLogit))
			probs[i*k+j] = float32(e)
			sum += e
		}
		for j := 0; j < k; j++ {
			probs[i*k+j] = float32(float64(probs[i*k+j]) / sum)
		}
		total += -(float64(row[labels[i]]-maxLogit) - math.Log(sum))
	}

	return result([]int{1}, []float32{float32(total / float64(n))}, func(g []float32) [][]float32 {
		gl := make([]float32, n*k)
		scale := g[0] / float32(n)
		for i := 0; i < n; i++ {
			for j := 0; j < k; j++ {
				p := probs[i*k+j]
				if j == labels[i] {
					p--
				}
				gl[i*k+j] = p * scale
			}
		}
		return [][]float32{gl}
	}, logits)
}
