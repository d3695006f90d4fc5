package metrics

import "time"

// Losses holds the scalar objectives of one training step.
type Losses struct {
	DReal float64 // discriminators on real images
	DA    float64 // discriminator A on real A
	DB    float64 // discriminator B on real B
	DFake float64 // discriminators on translated images
	GABA  float64 // A->B->A generator step
	GBAB  float64 // B->A->B generator step
}

// Window accumulates timing stats across multiple steps.
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration
	steps   int
	sum     Losses
	last    Losses
}

// Record adds a new measurement to the window. samples counts the images
// of both domains consumed by the step.
func (w *Window) Record(samples int, dataTime, computeTime time.Duration, losses Losses) {
	w.samples += samples
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.sum.DReal += losses.DReal
	w.sum.DA += losses.DA
	w.sum.DB += losses.DB
	w.sum.DFake += losses.DFake
	w.sum.GABA += losses.GABA
	w.sum.GBAB += losses.GBAB
	w.last = losses
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Last: w.last}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		n := float64(w.steps)
		snap.AvgDataMS = (w.data.Seconds() * 1000) / n
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / n
		snap.Mean = Losses{
			DReal: w.sum.DReal / n,
			DA:    w.sum.DA / n,
			DB:    w.sum.DB / n,
			DFake: w.sum.DFake / n,
			GABA:  w.sum.GABA / n,
			GBAB:  w.sum.GBAB / n,
		}
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
	Mean         Losses
	Last         Losses
}
