package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
train_root_a: /data/a
train_root_b: "/data/b"
batch_size: 4
use_labels: true
num_classes: 2
lr: 0.001
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TrainRootA != "/data/a" || cfg.TrainRootB != "/data/b" {
		t.Fatalf("unexpected roots %q %q", cfg.TrainRootA, cfg.TrainRootB)
	}
	if cfg.BatchSize != 4 || !cfg.UseLabels || cfg.NumClasses != 2 || cfg.LearningRate != 0.001 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CheckpointEvery != 5000 || cfg.Beta1 != 0.5 || !cfg.UseReconstLoss {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "train_root_a: a\nsteps: 10\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "steps") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ImageSize != 32 {
		t.Fatalf("expected default image size, got %d", cfg.ImageSize)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	off := false
	cfg.ApplyOverrides(Overrides{
		TrainRootA:     "a",
		TrainRootB:     "b",
		TrainIters:     100,
		SampleStep:     100,
		UseReconstLoss: &off,
	})
	if cfg.TrainIters != 100 || cfg.SampleStep != 100 || cfg.UseReconstLoss {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.BatchSize != 16 {
		t.Fatalf("zero override changed batch size to %d", cfg.BatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing root", func(c *Config) { c.TrainRootB = "" }},
		{"image size", func(c *Config) { c.ImageSize = 20 }},
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"labels without classes", func(c *Config) { c.UseLabels = true; c.NumClasses = 0 }},
		{"beta", func(c *Config) { c.Beta2 = 1 }},
		{"iters", func(c *Config) { c.TrainIters = 0 }},
		{"checkpoint cadence", func(c *Config) { c.CheckpointEvery = 0 }},
		{"format", func(c *Config) { c.CheckpointFormat = "pickle" }},
		{"source format", func(c *Config) { c.SourceFormat = "lmdb" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.TrainRootA, cfg.TrainRootB = "a", "b"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
