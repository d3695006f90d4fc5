package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gorgonia.org/tensor"

	"cyclegan-forge/internal/model"
)

// Source yields batches of one domain.
type Source interface {
	// Reset restarts the source from the beginning of a new epoch.
	Reset(ctx context.Context) error
	// Next returns the next batch, or ErrExhausted once the epoch is over.
	Next(ctx context.Context) (model.Batch, error)
	// Len returns the number of batches per epoch.
	Len() int
}

// ErrExhausted is returned by Next when the current epoch has no batches left.
var ErrExhausted = errors.New("dataset: source exhausted")

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	BatchSize  int
	ImageSize  int
	NumWorkers int
	Seed       int64
	Shuffle    bool
}

// Loader batches a Catalog, decoding images ahead of the consumer with a
// pool of workers. Batches are delivered in epoch order regardless of
// which worker finished first; an incomplete trailing batch is dropped.
type Loader struct {
	catalog *Catalog
	opts    LoaderOptions
	rng     *rand.Rand

	cancel  context.CancelFunc
	batches <-chan batchResult
}

type batchJob struct {
	id      int
	records []Record
}

type batchResult struct {
	id    int
	batch model.Batch
	err   error
}

// NewLoader validates opts against catalog.
func NewLoader(catalog *Catalog, opts LoaderOptions) (*Loader, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, errors.New("loader: empty catalog")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be > 0 (got %d)", opts.BatchSize)
	}
	if opts.ImageSize <= 0 {
		return nil, fmt.Errorf("loader: image size must be > 0 (got %d)", opts.ImageSize)
	}
	if catalog.Len() < opts.BatchSize {
		return nil, fmt.Errorf("loader: %d records cannot fill a batch of %d", catalog.Len(), opts.BatchSize)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return &Loader{
		catalog: catalog,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Len returns the number of full batches per epoch.
func (l *Loader) Len() int {
	return l.catalog.Len() / l.opts.BatchSize
}

// Reset abandons any in-flight epoch and starts decoding a new one.
func (l *Loader) Reset(ctx context.Context) error {
	l.Close()

	order := make([]int, l.catalog.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	jobs := make(chan batchJob, l.opts.NumWorkers)
	results := make(chan batchResult, l.opts.NumWorkers)
	out := make(chan batchResult, l.opts.NumWorkers)
	l.batches = out

	go l.produceJobs(ctx, jobs, order)

	var wg sync.WaitGroup
	for i := 0; i < l.opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.worker(ctx, jobs, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	go runAggregator(ctx, results, out)
	return nil
}

// Next blocks until the next batch of the epoch is decoded. A decode error
// stops the epoch's workers; Reset starts a new one.
func (l *Loader) Next(ctx context.Context) (model.Batch, error) {
	if l.batches == nil {
		return model.Batch{}, errors.New("loader: Next before Reset")
	}
	select {
	case <-ctx.Done():
		return model.Batch{}, ctx.Err()
	case res, ok := <-l.batches:
		if !ok {
			return model.Batch{}, ErrExhausted
		}
		if res.err != nil {
			l.Close()
			return model.Batch{}, res.err
		}
		return res.batch, nil
	}
}

// Close stops the background workers of the current epoch.
func (l *Loader) Close() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Loader) produceJobs(ctx context.Context, jobs chan<- batchJob, order []int) {
	defer close(jobs)
	bs := l.opts.BatchSize
	for id := 0; id < len(order)/bs; id++ {
		records := make([]Record, bs)
		for i, idx := range order[id*bs : (id+1)*bs] {
			records[i] = l.catalog.Records[idx]
		}
		select {
		case <-ctx.Done():
			return
		case jobs <- batchJob{id: id, records: records}:
		}
	}
}

func (l *Loader) worker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			batch, err := l.decodeBatch(job.records)
			select {
			case <-ctx.Done():
				return
			case results <- batchResult{id: job.id, batch: batch, err: err}:
			}
		}
	}
}

func (l *Loader) decodeBatch(records []Record) (model.Batch, error) {
	size := l.opts.ImageSize
	imgLen := 3 * size * size
	data := make([]float32, len(records)*imgLen)
	labels := make([]int, len(records))
	for i, rec := range records {
		raw, err := rec.Load()
		if err != nil {
			return model.Batch{}, fmt.Errorf("loader: load %s: %w", rec.Key, err)
		}
		pixels, err := decodeImage(raw, size)
		if err != nil {
			return model.Batch{}, fmt.Errorf("loader: %s: %w", rec.Key, err)
		}
		copy(data[i*imgLen:], pixels)
		labels[i] = rec.Label
	}
	images := tensor.New(tensor.WithShape(len(records), 3, size, size), tensor.WithBacking(data))
	return model.Batch{Images: images, Labels: labels}, nil
}

// runAggregator re-sequences worker results so batches leave in job order.
func runAggregator(ctx context.Context, results <-chan batchResult, out chan<- batchResult) {
	defer close(out)
	pending := make(map[int]batchResult)
	nextID := 0
	for res := range results {
		pending[res.id] = res
		for {
			ready, ok := pending[nextID]
			if !ok {
				break
			}
			delete(pending, nextID)
			select {
			case <-ctx.Done():
				return
			case out <- ready:
			}
			if ready.err != nil {
				return
			}
			nextID++
		}
	}
}
