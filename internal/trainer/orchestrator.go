package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"cyclegan-forge/internal/autograd"
	"cyclegan-forge/internal/checkpoint"
	"cyclegan-forge/internal/dataset"
	"cyclegan-forge/internal/device"
	"cyclegan-forge/internal/grid"
	"cyclegan-forge/internal/loss"
	"cyclegan-forge/internal/metrics"
	"cyclegan-forge/internal/model"
	"cyclegan-forge/internal/optim"
)

// Models groups the four networks trained together.
type Models struct {
	GenAB model.Generator
	GenBA model.Generator
	DiscA model.Discriminator
	DiscB model.Discriminator
}

// FixedSamples is the first batch of each domain, drawn once per run and
// reused for every visualization.
type FixedSamples struct {
	A *autograd.Tensor
	B *autograd.Tensor
}

// Config captures everything the orchestrator needs for a run.
type Config struct {
	SourceA dataset.Source
	SourceB dataset.Source
	Models  Models
	// GenOptimizer owns the parameters of both generators, DiscOptimizer
	// those of both discriminators.
	GenOptimizer  optim.Optimizer
	DiscOptimizer optim.Optimizer
	Policy        loss.Policy
	Schedule      Schedule
	Sink          Sink
	Device        device.Device
	RunID         string
}

// Orchestrator drives the alternating discriminator and generator updates.
type Orchestrator struct {
	cfg    Config
	fixed  *FixedSamples
	window metrics.Window
	total  int
	ran    bool
}

// New validates cfg and returns an orchestrator ready to Run.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.SourceA == nil || cfg.SourceB == nil:
		return nil, errors.New("trainer: both batch sources are required")
	case cfg.Models.GenAB == nil || cfg.Models.GenBA == nil:
		return nil, errors.New("trainer: both generators are required")
	case cfg.Models.DiscA == nil || cfg.Models.DiscB == nil:
		return nil, errors.New("trainer: both discriminators are required")
	case cfg.GenOptimizer == nil || cfg.DiscOptimizer == nil:
		return nil, errors.New("trainer: both optimizers are required")
	case cfg.Policy.Adversarial == nil || cfg.Policy.Generator == nil:
		return nil, errors.New("trainer: loss policy is incomplete")
	case cfg.Sink == nil:
		return nil, errors.New("trainer: sink is required")
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Fixed returns the visualization batches, or nil before Run has drawn them.
func (o *Orchestrator) Fixed() *FixedSamples {
	return o.fixed
}

// Run executes steps 0 through totalSteps inclusive. Both sources restart
// whenever the step count reaches a multiple of the shorter epoch.
func (o *Orchestrator) Run(ctx context.Context, totalSteps int) error {
	if totalSteps <= 0 {
		return errors.New("trainer: total steps must be > 0")
	}
	if o.ran {
		return errors.New("trainer: orchestrator already ran")
	}
	o.ran = true
	o.total = totalSteps

	if err := o.resetSources(ctx); err != nil {
		return err
	}
	iterPerEpoch := min(o.cfg.SourceA.Len(), o.cfg.SourceB.Len())
	if iterPerEpoch <= 0 {
		return fmt.Errorf("trainer: empty source (a=%d b=%d batches)", o.cfg.SourceA.Len(), o.cfg.SourceB.Len())
	}
	if err := o.drawFixed(ctx); err != nil {
		return err
	}

	klog.InfoS("Training started",
		"run", o.cfg.RunID,
		"device", o.cfg.Device,
		"steps", totalSteps,
		"iterPerEpoch", iterPerEpoch,
		"cycleLoss", o.cfg.Policy.UsesCycle(),
	)
	for t := 0; t <= totalSteps; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.step(ctx, t, iterPerEpoch); err != nil {
			return fmt.Errorf("trainer: step %d: %w", t+1, err)
		}
	}
	klog.InfoS("Training finished", "run", o.cfg.RunID, "steps", totalSteps+1)
	return nil
}

func (o *Orchestrator) resetSources(ctx context.Context) error {
	if err := o.cfg.SourceA.Reset(ctx); err != nil {
		return fmt.Errorf("trainer: reset source a: %w", err)
	}
	if err := o.cfg.SourceB.Reset(ctx); err != nil {
		return fmt.Errorf("trainer: reset source b: %w", err)
	}
	return nil
}

// drawFixed takes the first batch of each fresh source. The batch is also
// consumed from the epoch, so step 0 trains on the second batch.
func (o *Orchestrator) drawFixed(ctx context.Context) error {
	a, _, err := o.next(ctx, o.cfg.SourceA)
	if err != nil {
		return fmt.Errorf("trainer: fixed sample a: %w", err)
	}
	b, _, err := o.next(ctx, o.cfg.SourceB)
	if err != nil {
		return fmt.Errorf("trainer: fixed sample b: %w", err)
	}
	o.fixed = &FixedSamples{A: a, B: b}
	return nil
}

func (o *Orchestrator) next(ctx context.Context, src dataset.Source) (*autograd.Tensor, []int, error) {
	batch, err := src.Next(ctx)
	if err != nil {
		return nil, nil, err
	}
	x, err := o.cfg.Device.ToCompute(batch.Images, false)
	if err != nil {
		return nil, nil, err
	}
	return x, batch.Labels, nil
}

// step runs one training iteration. Shape errors raised by the tensor ops
// surface as the returned error.
func (o *Orchestrator) step(ctx context.Context, t, iterPerEpoch int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var shapeErr *autograd.ShapeError
			if e, ok := r.(error); ok && errors.As(e, &shapeErr) {
				err = e
				return
			}
			panic(r)
		}
	}()

	s := t + 1
	startData := time.Now()
	if s%iterPerEpoch == 0 {
		if err := o.resetSources(ctx); err != nil {
			return err
		}
	}
	realA, labelsA, err := o.next(ctx, o.cfg.SourceA)
	if err != nil {
		return fmt.Errorf("source a: %w", err)
	}
	realB, labelsB, err := o.next(ctx, o.cfg.SourceB)
	if err != nil {
		return fmt.Errorf("source b: %w", err)
	}
	dataTime := time.Since(startData)

	startCompute := time.Now()
	losses := o.train(realA, labelsA, realB, labelsB)
	o.window.Record(realA.Shape[0]+realB.Shape[0], dataTime, time.Since(startCompute), losses)

	return o.observe(s)
}

// train applies the four sub-steps in order: discriminators on real
// images, discriminators on translated images, then the A->B->A and
// B->A->B generator updates.
func (o *Orchestrator) train(realA *autograd.Tensor, labelsA []int, realB *autograd.Tensor, labelsB []int) metrics.Losses {
	m := o.cfg.Models
	adv := o.cfg.Policy.Adversarial
	var losses metrics.Losses

	o.resetGradients()
	dA := adv.Real(m.DiscA.Forward(realA), labelsA)
	dB := adv.Real(m.DiscB.Forward(realB), labelsB)
	dReal := autograd.Add(dA, dB)
	dReal.Backward()
	o.cfg.DiscOptimizer.Step()
	losses.DA = float64(dA.Item())
	losses.DB = float64(dB.Item())
	losses.DReal = float64(dReal.Item())

	o.resetGradients()
	fakeB := m.GenAB.Forward(realA)
	fakeA := m.GenBA.Forward(realB)
	dFake := autograd.Add(adv.Fake(m.DiscB.Forward(fakeB)), adv.Fake(m.DiscA.Forward(fakeA)))
	dFake.Backward()
	o.cfg.DiscOptimizer.Step()
	losses.DFake = float64(dFake.Item())

	losses.GABA = o.generatorStep(realA, labelsA, m.GenAB, m.DiscB, m.GenBA)
	losses.GBAB = o.generatorStep(realB, labelsB, m.GenBA, m.DiscA, m.GenAB)
	return losses
}

func (o *Orchestrator) generatorStep(src *autograd.Tensor, labels []int, forward model.Generator, critic model.Discriminator, back model.Generator) float64 {
	o.resetGradients()
	translated := forward.Forward(src)
	objective := o.cfg.Policy.Generator.Loss(loss.Cycle{
		Source:     src,
		Labels:     labels,
		Translated: translated,
		Logits:     critic.Forward(translated),
		Back:       back,
	})
	objective.Backward()
	o.cfg.GenOptimizer.Step()
	return float64(objective.Item())
}

// resetGradients clears the gradients owned by both optimizers.
func (o *Orchestrator) resetGradients() {
	o.cfg.GenOptimizer.ZeroGrad()
	o.cfg.DiscOptimizer.ZeroGrad()
}

func (o *Orchestrator) observe(s int) error {
	actions := o.cfg.Schedule.Actions(s)
	if actions.Log {
		snap := o.window.Snapshot()
		klog.InfoS("Step",
			"step", s,
			"total", o.total,
			"d_real", snap.Last.DReal,
			"d_a", snap.Last.DA,
			"d_b", snap.Last.DB,
			"d_fake", snap.Last.DFake,
			"g_aba", snap.Last.GABA,
			"g_bab", snap.Last.GBAB,
		)
		klog.V(1).InfoS("Throughput",
			"step", s,
			"imagesPerSec", snap.ImagesPerSec,
			"dataMs", snap.AvgDataMS,
			"computeMs", snap.AvgComputeMS,
			"meanGABA", snap.Mean.GABA,
			"meanGBAB", snap.Mean.GBAB,
		)
	}
	if actions.Sample {
		if err := o.writeSamples(s); err != nil {
			return err
		}
	}
	if actions.Checkpoint {
		if err := o.writeCheckpoints(s); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeSamples(s int) error {
	m := o.cfg.Models
	dev := o.cfg.Device
	pairs := []struct {
		dir    Direction
		source *autograd.Tensor
		gen    model.Generator
	}{
		{AToB, o.fixed.A, m.GenAB},
		{BToA, o.fixed.B, m.GenBA},
	}
	for _, p := range pairs {
		translated := p.gen.Forward(p.source).Detach()
		canvas, err := grid.Compose(dev.ToHost(p.source), dev.ToHost(translated))
		if err != nil {
			return fmt.Errorf("sample %s: %w", p.dir, err)
		}
		if err := o.cfg.Sink.WriteSample(s, p.dir, canvas); err != nil {
			return fmt.Errorf("sample %s: %w", p.dir, err)
		}
	}
	return nil
}

func (o *Orchestrator) writeCheckpoints(s int) error {
	m := o.cfg.Models
	snaps := []checkpoint.Snapshot{
		{Model: NameGenAB, Params: m.GenAB.Snapshot()},
		{Model: NameGenBA, Params: m.GenBA.Snapshot()},
		{Model: NameDiscA, Params: m.DiscA.Snapshot()},
		{Model: NameDiscB, Params: m.DiscB.Snapshot()},
	}
	for _, snap := range snaps {
		snap.Step = s
		snap.RunID = o.cfg.RunID
		if err := o.cfg.Sink.WriteCheckpoint(s, snap); err != nil {
			return fmt.Errorf("checkpoint %s: %w", snap.Model, err)
		}
	}
	return nil
}
