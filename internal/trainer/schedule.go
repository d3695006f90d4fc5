package trainer

import "fmt"

// DefaultCheckpointEvery is the checkpoint cadence used when none is configured.
const DefaultCheckpointEvery = 5000

// Schedule decides which side effects fire after a training step.
type Schedule struct {
	LogEvery        int
	SampleEvery     int
	CheckpointEvery int
}

// Actions lists the side effects due at one step.
type Actions struct {
	Log        bool
	Sample     bool
	Checkpoint bool
}

// Actions returns the side effects due once step (1-based) has completed.
// A non-positive interval disables its action.
func (s Schedule) Actions(step int) Actions {
	return Actions{
		Log:        due(step, s.LogEvery),
		Sample:     due(step, s.SampleEvery),
		Checkpoint: due(step, s.CheckpointEvery),
	}
}

func due(step, every int) bool {
	return every > 0 && step > 0 && step%every == 0
}

// Direction names a translation direction.
type Direction int

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a-b"
	case BToA:
		return "b-a"
	default:
		return "unknown"
	}
}

// SampleName returns the file name of the sample grid for step and d.
func SampleName(step int, d Direction) string {
	return fmt.Sprintf("sample-%d-%s.png", step, d)
}

// Checkpoint names of the four models.
const (
	NameGenAB = "g_ab"
	NameGenBA = "g_ba"
	NameDiscA = "d_a"
	NameDiscB = "d_b"
)
