package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run. It is treated as
// immutable once validated.
type Config struct {
	TrainRootA   string `yaml:"train_root_a"`
	TrainRootB   string `yaml:"train_root_b"`
	SourceFormat string `yaml:"source_format"`
	ImageSize    int    `yaml:"image_size"`
	BatchSize    int    `yaml:"batch_size"`
	NumWorkers   int    `yaml:"num_workers"`
	Seed         int64  `yaml:"seed"`

	GenConvDim     int     `yaml:"g_conv_dim"`
	DiscConvDim    int     `yaml:"d_conv_dim"`
	UseReconstLoss bool    `yaml:"use_reconst_loss"`
	UseLabels      bool    `yaml:"use_labels"`
	NumClasses     int     `yaml:"num_classes"`
	LearningRate   float64 `yaml:"lr"`
	Beta1          float64 `yaml:"beta1"`
	Beta2          float64 `yaml:"beta2"`

	TrainIters       int    `yaml:"train_iters"`
	LogStep          int    `yaml:"log_step"`
	SampleStep       int    `yaml:"sample_step"`
	CheckpointEvery  int    `yaml:"checkpoint_every"`
	SamplePath       string `yaml:"sample_path"`
	ModelPath        string `yaml:"model_path"`
	CheckpointFormat string `yaml:"checkpoint_format"`
}

// Overrides captures CLI supplied values. Zero values and nil pointers
// leave the file value untouched.
type Overrides struct {
	TrainRootA     string
	TrainRootB     string
	TrainIters     int
	BatchSize      int
	NumWorkers     int
	Seed           int64
	LogStep        int
	SampleStep     int
	SamplePath     string
	ModelPath      string
	UseReconstLoss *bool
	UseLabels      *bool
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		SourceFormat:     "folder",
		ImageSize:        32,
		BatchSize:        16,
		NumWorkers:       2,
		GenConvDim:       64,
		DiscConvDim:      64,
		UseReconstLoss:   true,
		NumClasses:       10,
		LearningRate:     0.0002,
		Beta1:            0.5,
		Beta2:            0.999,
		TrainIters:       40000,
		LogStep:          10,
		SampleStep:       500,
		CheckpointEvery:  5000,
		SamplePath:       "./samples",
		ModelPath:        "./models",
		CheckpointFormat: "proto",
	}
}

// Load reads a Config from YAML on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainRootA != "" {
		c.TrainRootA = o.TrainRootA
	}
	if o.TrainRootB != "" {
		c.TrainRootB = o.TrainRootB
	}
	if o.TrainIters > 0 {
		c.TrainIters = o.TrainIters
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogStep > 0 {
		c.LogStep = o.LogStep
	}
	if o.SampleStep > 0 {
		c.SampleStep = o.SampleStep
	}
	if o.SamplePath != "" {
		c.SamplePath = o.SamplePath
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.UseReconstLoss != nil {
		c.UseReconstLoss = *o.UseReconstLoss
	}
	if o.UseLabels != nil {
		c.UseLabels = *o.UseLabels
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TrainRootA == "" || c.TrainRootB == "" {
		return errors.New("both train_root_a and train_root_b must be set")
	}
	switch c.SourceFormat {
	case "folder", "shards":
	default:
		return fmt.Errorf("source_format must be folder or shards (got %q)", c.SourceFormat)
	}
	if c.ImageSize <= 0 || c.ImageSize%8 != 0 {
		return fmt.Errorf("image_size must be a positive multiple of 8 (got %d)", c.ImageSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.GenConvDim <= 0 || c.DiscConvDim <= 0 {
		return fmt.Errorf("g_conv_dim and d_conv_dim must be > 0 (got %d, %d)", c.GenConvDim, c.DiscConvDim)
	}
	if c.UseLabels && c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be > 0 when use_labels is set (got %d)", c.NumClasses)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("lr must be > 0 (got %g)", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta1 and beta2 must be in [0, 1) (got %g, %g)", c.Beta1, c.Beta2)
	}
	if c.TrainIters <= 0 {
		return fmt.Errorf("train_iters must be > 0 (got %d)", c.TrainIters)
	}
	if c.LogStep <= 0 || c.SampleStep <= 0 || c.CheckpointEvery <= 0 {
		return fmt.Errorf("log_step, sample_step and checkpoint_every must be > 0 (got %d, %d, %d)",
			c.LogStep, c.SampleStep, c.CheckpointEvery)
	}
	if c.SamplePath == "" || c.ModelPath == "" {
		return errors.New("sample_path and model_path must be set")
	}
	switch c.CheckpointFormat {
	case "proto", "json":
	default:
		return fmt.Errorf("checkpoint_format must be proto or json (got %q)", c.CheckpointFormat)
	}
	return nil
}
