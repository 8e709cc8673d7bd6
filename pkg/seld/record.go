package seld

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

var (
	// ErrIndexOutOfRange is returned by Get for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("seld: sample index out of range")
	// ErrChunkOutOfBounds is returned when a recorded chunk window runs past
	// the end of the feature or label time axis.
	ErrChunkOutOfBounds = errors.New("seld: chunk window exceeds array bounds")
	// ErrMalformedRecord reports a record with missing fields or mismatched
	// parallel sequences.
	ErrMalformedRecord = errors.New("seld: malformed dataset record")
)

// Record is the output of feature extraction: full-length arrays for the
// whole recording set plus the chunk offsets describing each sample.
//
// Features is (channels, timesteps, mel_bins). SEDTargets is
// (gt_timesteps, n_classes). DOATargets is (gt_timesteps, D) or
// (gt_timesteps, D, 2) and is passed through as-is.
type Record struct {
	Features   *ndarray.Array
	SEDTargets *ndarray.Array
	DOATargets *ndarray.Array

	FeatureChunkIdxes []int
	GTChunkIdxes      []int
	FilenameList      []string

	FeatureChunkLen int
	GTChunkLen      int
}

// NumSamples is the number of chunks described by the record.
func (r *Record) NumSamples() int {
	return len(r.FeatureChunkIdxes)
}

// Validate checks the record's structure. Offsets must be non-negative;
// windows running past the end are not checked here and Get reports them
// according to the bounds policy.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	switch {
	case r.Features == nil:
		return fmt.Errorf("%w: missing features", ErrMalformedRecord)
	case r.SEDTargets == nil:
		return fmt.Errorf("%w: missing sed_targets", ErrMalformedRecord)
	case r.DOATargets == nil:
		return fmt.Errorf("%w: missing doa_targets", ErrMalformedRecord)
	}

	if d := r.Features.Dims(); d != 3 {
		return fmt.Errorf("%w: features must be (channels, timesteps, mels), got rank %d", ErrMalformedRecord, d)
	}
	if d := r.SEDTargets.Dims(); d != 2 {
		return fmt.Errorf("%w: sed_targets must be (timesteps, classes), got rank %d", ErrMalformedRecord, d)
	}
	if d := r.DOATargets.Dims(); d != 2 && d != 3 {
		return fmt.Errorf("%w: doa_targets must be rank 2 or 3, got rank %d", ErrMalformedRecord, d)
	}
	if r.SEDTargets.Len() != r.DOATargets.Len() {
		return fmt.Errorf("%w: sed_targets has %d timesteps but doa_targets has %d",
			ErrMalformedRecord, r.SEDTargets.Len(), r.DOATargets.Len())
	}

	n := len(r.FeatureChunkIdxes)
	if len(r.GTChunkIdxes) != n || len(r.FilenameList) != n {
		return fmt.Errorf("%w: feature_chunk_idxes=%d gt_chunk_idxes=%d filename_list=%d",
			ErrMalformedRecord, n, len(r.GTChunkIdxes), len(r.FilenameList))
	}

	for i := range n {
		if r.FeatureChunkIdxes[i] < 0 || r.GTChunkIdxes[i] < 0 {
			return fmt.Errorf("%w: sample %d has negative offset (feature=%d gt=%d)",
				ErrMalformedRecord, i, r.FeatureChunkIdxes[i], r.GTChunkIdxes[i])
		}
	}

	if r.FeatureChunkLen <= 0 || r.GTChunkLen <= 0 {
		return fmt.Errorf("%w: chunk lengths must be positive (feature=%d gt=%d)",
			ErrMalformedRecord, r.FeatureChunkLen, r.GTChunkLen)
	}
	return nil
}
