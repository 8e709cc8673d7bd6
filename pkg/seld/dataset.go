// Package seld exposes a chunked sound event localization and detection
// record as a random-access training dataset.
package seld

import (
	"fmt"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

// Sample is one training example. The arrays are copies owned by the caller.
type Sample struct {
	Features *ndarray.Array // (channels, feature_chunk_len, mels)
	SED      *ndarray.Array // (gt_chunk_len, classes)
	DOA      *ndarray.Array // (gt_chunk_len, D) or (gt_chunk_len, D, 2)
	Filename string
}

// Dataset is the indexed access a training loop iterates over.
type Dataset interface {
	Len() int
	Get(idx int) (*Sample, error)
}

// ChunkDataset slices fixed-length windows out of a Record. It never writes
// to the record, so Get is safe to call from many goroutines.
type ChunkDataset struct {
	rec *Record
	cfg *config
}

var _ Dataset = (*ChunkDataset)(nil)

func NewChunkDataset(rec *Record, opts ...Option) (*ChunkDataset, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	cfg.apply(opts)

	cfg.log.Debugf("chunk dataset: %d samples, features %v, sed %v, doa %v, bounds=%s",
		rec.NumSamples(), rec.Features.Shape(), rec.SEDTargets.Shape(), rec.DOATargets.Shape(), cfg.bounds)

	return &ChunkDataset{rec: rec, cfg: cfg}, nil
}

// Len returns the number of samples.
func (d *ChunkDataset) Len() int {
	return len(d.rec.FeatureChunkIdxes)
}

// Record returns the underlying record. Callers must not modify it.
func (d *ChunkDataset) Record() *Record {
	return d.rec
}

// Get returns sample idx after running the joint transform and then the
// feature transform.
func (d *ChunkDataset) Get(idx int) (*Sample, error) {
	if idx < 0 || idx >= d.Len() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, d.Len())
	}
	start := d.rec.FeatureChunkIdxes[idx]
	gtStart := d.rec.GTChunkIdxes[idx]
	filename := d.rec.FilenameList[idx]

	x, err := d.window(d.rec.Features, 1, start, d.rec.FeatureChunkLen)
	if err != nil {
		return nil, fmt.Errorf("sample %d (%s) features: %w", idx, filename, err)
	}
	sed, err := d.window(d.rec.SEDTargets, 0, gtStart, d.rec.GTChunkLen)
	if err != nil {
		return nil, fmt.Errorf("sample %d (%s) sed labels: %w", idx, filename, err)
	}
	doa, err := d.window(d.rec.DOATargets, 0, gtStart, d.rec.GTChunkLen)
	if err != nil {
		return nil, fmt.Errorf("sample %d (%s) doa labels: %w", idx, filename, err)
	}

	if d.cfg.jointTransform != nil {
		if x, sed, doa, err = d.cfg.jointTransform.Apply(x, sed, doa); err != nil {
			return nil, err
		}
	}
	if d.cfg.transform != nil {
		if x, err = d.cfg.transform.Apply(x); err != nil {
			return nil, err
		}
	}

	return &Sample{Features: x, SED: sed, DOA: doa, Filename: filename}, nil
}

func (d *ChunkDataset) window(a *ndarray.Array, axis, start, length int) (*ndarray.Array, error) {
	end := start + length
	if start < 0 || end > a.Dim(axis) {
		if d.cfg.bounds == FailFast {
			return nil, fmt.Errorf("%w: [%d:%d] on axis of length %d", ErrChunkOutOfBounds, start, end, a.Dim(axis))
		}
		d.cfg.log.Debugf("truncating window [%d:%d] to axis length %d", start, end, a.Dim(axis))
		start, end = a.Clamp(axis, start, end)
	}
	return a.SliceAxis(axis, start, end)
}
