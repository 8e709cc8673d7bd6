// Package chunker plans the fixed-length windows cut from each recording.
package chunker

import "fmt"

// Plan holds the chunk starts for one file, relative to that file's first
// frame.
type Plan struct {
	FeatureStarts []int
	GTStarts      []int
}

// Params fixes the window geometry. Ratio is the number of feature frames per
// label frame; ChunkLen and Hop are in feature frames and must be multiples
// of Ratio so that label windows line up exactly.
type Params struct {
	ChunkLen int
	Hop      int
	Ratio    int
}

func (p Params) Validate() error {
	switch {
	case p.ChunkLen <= 0 || p.Hop <= 0 || p.Ratio <= 0:
		return fmt.Errorf("chunk_len, hop and ratio must be positive (got %d, %d, %d)", p.ChunkLen, p.Hop, p.Ratio)
	case p.ChunkLen%p.Ratio != 0:
		return fmt.Errorf("chunk length %d is not a multiple of the label ratio %d", p.ChunkLen, p.Ratio)
	case p.Hop%p.Ratio != 0:
		return fmt.Errorf("hop %d is not a multiple of the label ratio %d", p.Hop, p.Ratio)
	}
	return nil
}

// GTChunkLen is the label window length matching ChunkLen.
func (p Params) GTChunkLen() int {
	return p.ChunkLen / p.Ratio
}

// PaddedFrames is how many feature frames a file of nFrames is padded to so
// that every planned window fits: at least one chunk, and a whole number of
// label frames.
func (p Params) PaddedFrames(nFrames int) int {
	n := max(nFrames, p.ChunkLen)
	if rem := n % p.Ratio; rem != 0 {
		n += p.Ratio - rem
	}
	return n
}

// Windows plans chunks over a file of nFrames feature frames. Windows start
// every Hop frames; when the last one stops short of the end, one more window
// aligned to the (label-rounded) end is added.
func Windows(nFrames int, p Params) (Plan, error) {
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	if nFrames <= 0 {
		return Plan{}, fmt.Errorf("file has %d frames", nFrames)
	}

	total := p.PaddedFrames(nFrames)
	var plan Plan
	last := -1
	for start := 0; start+p.ChunkLen <= total; start += p.Hop {
		plan.add(start, p.Ratio)
		last = start
	}
	if tail := total - p.ChunkLen; last < tail {
		plan.add(tail, p.Ratio)
	}
	return plan, nil
}

func (pl *Plan) add(start, ratio int) {
	pl.FeatureStarts = append(pl.FeatureStarts, start)
	pl.GTStarts = append(pl.GTStarts, start/ratio)
}

// Offset shifts every start by the file's position in the concatenated
// record.
func (pl Plan) Offset(featureOffset, gtOffset int) Plan {
	out := Plan{
		FeatureStarts: make([]int, len(pl.FeatureStarts)),
		GTStarts:      make([]int, len(pl.GTStarts)),
	}
	for i := range pl.FeatureStarts {
		out.FeatureStarts[i] = pl.FeatureStarts[i] + featureOffset
		out.GTStarts[i] = pl.GTStarts[i] + gtOffset
	}
	return out
}

func (pl Plan) Len() int {
	return len(pl.FeatureStarts)
}
