package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"cyclegan-forge/internal/checkpoint"
	"cyclegan-forge/internal/config"
	"cyclegan-forge/internal/dataset"
	"cyclegan-forge/internal/device"
	"cyclegan-forge/internal/loss"
	"cyclegan-forge/internal/model"
	"cyclegan-forge/internal/optim"
	"cyclegan-forge/internal/trainer"
)

const imageChannels = 3

func main() {
	klog.InitFlags(nil)
	cfgPath := flag.String("config", "configs/demo.yaml", "Path to YAML config")
	trainRootA := flag.String("train-root-a", "", "Override training root A")
	trainRootB := flag.String("train-root-b", "", "Override training root B")
	trainIters := flag.Int("train-iters", 0, "Number of training iterations")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	numWorkers := flag.Int("num-workers", 0, "Number of data loader workers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logStep := flag.Int("log-step", 0, "Log every N steps")
	sampleStep := flag.Int("sample-step", 0, "Write sample grids every N steps")
	samplePath := flag.String("sample-path", "", "Directory for sample grids")
	modelPath := flag.String("model-path", "", "Directory for checkpoints")
	useReconst := flag.Bool("use-reconst-loss", true, "Add the cycle reconstruction loss")
	useLabels := flag.Bool("use-labels", false, "Use class-conditional discriminators")

	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		klog.Fatalf("failed to load config: %v", err)
	}

	overrides := config.Overrides{
		TrainRootA: *trainRootA,
		TrainRootB: *trainRootB,
		TrainIters: *trainIters,
		BatchSize:  *batchSize,
		NumWorkers: *numWorkers,
		Seed:       *seed,
		LogStep:    *logStep,
		SampleStep: *sampleStep,
		SamplePath: *samplePath,
		ModelPath:  *modelPath,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "use-reconst-loss":
			overrides.UseReconstLoss = useReconst
		case "use-labels":
			overrides.UseLabels = useLabels
		}
	})
	cfg.ApplyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		klog.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		klog.Fatalf("training failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	dev := device.Resolve()
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = dev.DefaultWorkers()
	}
	runID := uuid.NewString()
	klog.InfoS("Resolved device", "device", dev, "workers", cfg.NumWorkers, "run", runID)

	srcA, err := openSource(ctx, cfg, cfg.TrainRootA, cfg.Seed)
	if err != nil {
		return err
	}
	defer srcA.Close()
	srcB, err := openSource(ctx, cfg, cfg.TrainRootB, cfg.Seed+1)
	if err != nil {
		return err
	}
	defer srcB.Close()

	rng := rand.New(rand.NewSource(cfg.Seed))
	models, err := buildModels(cfg, rng)
	if err != nil {
		return err
	}

	adam := optim.AdamConfig{
		LearningRate: float32(cfg.LearningRate),
		Beta1:        float32(cfg.Beta1),
		Beta2:        float32(cfg.Beta2),
		Epsilon:      optim.DefaultAdamConfig().Epsilon,
	}
	gOpt, err := optim.NewAdam(adam, append(models.GenAB.Parameters(), models.GenBA.Parameters()...))
	if err != nil {
		return fmt.Errorf("generator optimizer: %w", err)
	}
	dOpt, err := optim.NewAdam(adam, append(models.DiscA.Parameters(), models.DiscB.Parameters()...))
	if err != nil {
		return fmt.Errorf("discriminator optimizer: %w", err)
	}

	format, err := checkpoint.ParseFormat(cfg.CheckpointFormat)
	if err != nil {
		return err
	}
	sink, err := trainer.NewFileSink(cfg.SamplePath, cfg.ModelPath, format)
	if err != nil {
		return err
	}

	orch, err := trainer.New(trainer.Config{
		SourceA:       srcA,
		SourceB:       srcB,
		Models:        models,
		GenOptimizer:  gOpt,
		DiscOptimizer: dOpt,
		Policy:        loss.NewPolicy(cfg.UseLabels, cfg.NumClasses, cfg.UseReconstLoss),
		Schedule: trainer.Schedule{
			LogEvery:        cfg.LogStep,
			SampleEvery:     cfg.SampleStep,
			CheckpointEvery: cfg.CheckpointEvery,
		},
		Sink:   sink,
		Device: dev,
		RunID:  runID,
	})
	if err != nil {
		return err
	}
	return orch.Run(ctx, cfg.TrainIters)
}

func openSource(ctx context.Context, cfg *config.Config, root string, seed int64) (*dataset.Loader, error) {
	var (
		catalog *dataset.Catalog
		err     error
	)
	switch cfg.SourceFormat {
	case "shards":
		catalog, err = dataset.NewShardCatalog(ctx, root, 0)
	default:
		catalog, err = dataset.NewImageFolderCatalog(root)
	}
	if err != nil {
		return nil, err
	}
	if cfg.UseLabels && catalog.NumClasses() > cfg.NumClasses {
		return nil, fmt.Errorf("%s has %d classes but num_classes is %d", root, catalog.NumClasses(), cfg.NumClasses)
	}
	klog.InfoS("Indexed domain", "root", root, "format", cfg.SourceFormat, "images", catalog.Len(), "classes", catalog.NumClasses())

	return dataset.NewLoader(catalog, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		ImageSize:  cfg.ImageSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       seed,
		Shuffle:    true,
	})
}

func buildModels(cfg *config.Config, rng *rand.Rand) (trainer.Models, error) {
	var m trainer.Models
	for _, g := range []*model.Generator{&m.GenAB, &m.GenBA} {
		gen, err := model.NewGenerator(imageChannels, cfg.GenConvDim, cfg.ImageSize, rng)
		if err != nil {
			return m, fmt.Errorf("build generator: %w", err)
		}
		*g = gen
	}
	for _, d := range []*model.Discriminator{&m.DiscA, &m.DiscB} {
		disc, err := model.NewDiscriminator(imageChannels, cfg.DiscConvDim, cfg.ImageSize, cfg.UseLabels, cfg.NumClasses, rng)
		if err != nil {
			return m, fmt.Errorf("build discriminator: %w", err)
		}
		*d = disc
	}
	return m, nil
}
