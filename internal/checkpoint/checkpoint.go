// Package checkpoint serializes model parameter snapshots.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cyclegan-forge/internal/model"
)

// Format selects the on-disk encoding of a snapshot.
type Format int

const (
	FormatProto Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatProto:
		return "proto"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	default:
		return ".pb"
	}
}

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "proto", "protobuf":
		return FormatProto, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("checkpoint: unknown format %q", s)
	}
}

// Snapshot is the parameter set of one model taken at a training step.
type Snapshot struct {
	Model  string        `json:"model"`
	Step   int           `json:"step"`
	RunID  string        `json:"run_id"`
	Params []model.Param `json:"params"`
}

// FileName returns the deterministic file name for s, e.g. g_ab-5000.pb.
func (s Snapshot) FileName(f Format) string {
	return fmt.Sprintf("%s-%d%s", s.Model, s.Step, f.Ext())
}

// Writer persists snapshots beneath Dir.
type Writer struct {
	Dir    string
	Format Format
}

// Write encodes s and writes it to Dir, returning the file path.
func (w Writer) Write(s Snapshot) (string, error) {
	var (
		data []byte
		err  error
	)
	switch w.Format {
	case FormatProto:
		data = Encode(s)
	case FormatJSON:
		data, err = json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("checkpoint: marshal %s: %w", s.Model, err)
		}
	default:
		return "", fmt.Errorf("checkpoint: unsupported format %s", w.Format)
	}
	path := filepath.Join(w.Dir, s.FileName(w.Format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return path, nil
}

// Read loads a snapshot written by Writer, inferring the format from the
// file extension.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	if filepath.Ext(path) == FormatJSON.Ext() {
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return Snapshot{}, fmt.Errorf("checkpoint: unmarshal %s: %w", path, err)
		}
		return s, nil
	}
	return Decode(data)
}
