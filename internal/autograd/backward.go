package autograd

import "github.com/pkg/errors"

// Backward propagates d(t)/d(leaf) into the Grad buffer of every leaf that
// requires grad. t must hold a single element.
func (t *Tensor) Backward() {
	if len(t.Data) != 1 {
		shapePanic("backward", []int{1}, t.Shape)
	}
	if !t.requiresGrad {
		panic(errors.New("autograd: backward on tensor that does not require grad"))
	}

	order := topoSort(t)
	grads := map[*Tensor][]float32{t: {1}}
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		g, ok := grads[node]
		if !ok {
			continue
		}
		delete(grads, node)

		if node.IsLeaf() {
			if node.Grad == nil {
				node.Grad = make([]float32, len(node.Data))
			}
			for j, v := range g {
				node.Grad[j] += v
			}
			continue
		}

		parentGrads := node.backward(g)
		for j, p := range node.parents {
			pg := parentGrads[j]
			if pg == nil || !p.requiresGrad {
				continue
			}
			if acc, ok := grads[p]; ok {
				for k, v := range pg {
					acc[k] += v
				}
			} else {
				grads[p] = pg
			}
		}
	}
}

func topoSort(root *Tensor) []*Tensor {
	var order []*Tensor
	seen := make(map[*Tensor]bool)
	var visit func(n *Tensor)
	visit = func(n *Tensor) {
		if seen[n] || !n.requiresGrad {
			return
		}
		seen[n] = true
		for _, p := range n.parents {
			visit(p)
		}
		order = append(order, n)
	}
	visit(root)
	return order
}
