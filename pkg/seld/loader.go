package seld

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

// Batch is a collated group of samples with a new leading batch axis.
type Batch struct {
	Indices   []int
	Features  *ndarray.Array
	SED       *ndarray.Array
	DOA       *ndarray.Array
	Filenames []string
}

func (b *Batch) Size() int {
	return len(b.Indices)
}

type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
	DropLast  bool
	Workers   int
}

// Loader walks a Dataset in batches. It keeps a cursor and is meant to be
// driven by a single training loop goroutine; samples inside a batch are
// fetched concurrently.
type Loader struct {
	ds    Dataset
	cfg   LoaderConfig
	rng   *rand.Rand
	order []int
	pos   int
	epoch int
}

func NewLoader(ds Dataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	l := &Loader{
		ds:  ds,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	l.Reset()
	return l, nil
}

// Reset starts a new epoch, reshuffling when configured.
func (l *Loader) Reset() {
	n := l.ds.Len()
	if cap(l.order) < n {
		l.order = make([]int, n)
	}
	l.order = l.order[:n]
	for i := range l.order {
		l.order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(n, func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	l.pos = 0
	l.epoch++
}

func (l *Loader) Epoch() int {
	return l.epoch
}

// NumBatches is the number of batches one epoch yields.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if l.cfg.DropLast {
		return n / l.cfg.BatchSize
	}
	return (n + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Next returns the next batch, or nil at the end of the epoch.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	remaining := len(l.order) - l.pos
	if remaining <= 0 || (l.cfg.DropLast && remaining < l.cfg.BatchSize) {
		return nil, nil
	}
	size := min(l.cfg.BatchSize, remaining)
	indices := l.order[l.pos : l.pos+size]
	l.pos += size

	samples := make([]*Sample, size)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for i, idx := range indices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := l.ds.Get(idx)
			if err != nil {
				return err
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading batch: %w", err)
	}

	return Collate(indices, samples)
}

// Collate stacks samples into a Batch. All samples must share shapes.
func Collate(indices []int, samples []*Sample) (*Batch, error) {
	xs := make([]*ndarray.Array, len(samples))
	seds := make([]*ndarray.Array, len(samples))
	doas := make([]*ndarray.Array, len(samples))
	names := make([]string, len(samples))
	for i, s := range samples {
		xs[i], seds[i], doas[i], names[i] = s.Features, s.SED, s.DOA, s.Filename
	}

	x, err := ndarray.Stack(xs...)
	if err != nil {
		return nil, fmt.Errorf("collating features: %w", err)
	}
	sed, err := ndarray.Stack(seds...)
	if err != nil {
		return nil, fmt.Errorf("collating sed labels: %w", err)
	}
	doa, err := ndarray.Stack(doas...)
	if err != nil {
		return nil, fmt.Errorf("collating doa labels: %w", err)
	}

	return &Batch{
		Indices:   append([]int(nil), indices...),
		Features:  x,
		SED:       sed,
		DOA:       doa,
		Filenames: names,
	}, nil
}
