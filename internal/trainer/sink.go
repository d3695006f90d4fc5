package trainer

import (
	"fmt"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"cyclegan-forge/internal/checkpoint"
	"cyclegan-forge/internal/grid"
)

// Sink receives the visual samples and model checkpoints of a run.
type Sink interface {
	WriteSample(step int, dir Direction, canvas *tensor.Dense) error
	WriteCheckpoint(step int, snap checkpoint.Snapshot) error
}

// FileSink writes sample PNGs beneath SamplePath and checkpoints through
// Checkpoints.
type FileSink struct {
	SamplePath  string
	Checkpoints checkpoint.Writer
}

// NewFileSink creates both output directories.
func NewFileSink(samplePath, modelPath string, format checkpoint.Format) (*FileSink, error) {
	for _, dir := range []string{samplePath, modelPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("trainer: create %s: %w", dir, err)
		}
	}
	return &FileSink{
		SamplePath:  samplePath,
		Checkpoints: checkpoint.Writer{Dir: modelPath, Format: format},
	}, nil
}

func (s *FileSink) WriteSample(step int, dir Direction, canvas *tensor.Dense) error {
	path := filepath.Join(s.SamplePath, SampleName(step, dir))
	if err := grid.WritePNG(path, canvas); err != nil {
		return err
	}
	klog.InfoS("Saved sample", "path", path)
	return nil
}

func (s *FileSink) WriteCheckpoint(_ int, snap checkpoint.Snapshot) error {
	path, err := s.Checkpoints.Write(snap)
	if err != nil {
		return err
	}
	klog.InfoS("Saved checkpoint", "path", path)
	return nil
}
