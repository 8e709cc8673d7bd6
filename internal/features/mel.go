package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/seldkit/internal/audio"
	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

// Config describes the log-mel front end.
type Config struct {
	NFFT      int
	HopLength int
	NMels     int
	FMin      float64
	FMax      float64 // 0 means sampleRate/2
}

func (c Config) Validate(sampleRate int) error {
	switch {
	case c.NFFT <= 0 || c.HopLength <= 0 || c.NMels <= 0:
		return fmt.Errorf("n_fft, hop_length and n_mels must be positive (got %d, %d, %d)", c.NFFT, c.HopLength, c.NMels)
	case c.FMin < 0:
		return fmt.Errorf("fmin %v is negative", c.FMin)
	case c.FMax > float64(sampleRate)/2:
		return fmt.Errorf("fmax %v above Nyquist for %d Hz", c.FMax, sampleRate)
	case c.FMax != 0 && c.FMax <= c.FMin:
		return fmt.Errorf("fmax %v must exceed fmin %v", c.FMax, c.FMin)
	}
	return nil
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }
func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

// MelFilterbank builds nMels triangular filters over the nFFT/2+1 linear
// bins, spaced evenly on the HTK mel scale between fmin and fmax.
func MelFilterbank(sampleRate, nFFT, nMels int, fmin, fmax float64) [][]float64 {
	if fmax == 0 {
		fmax = float64(sampleRate) / 2
	}
	nBins := nFFT/2 + 1

	lo, hi := hzToMel(fmin), hzToMel(fmax)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	bank := make([][]float64, nMels)
	for m := range bank {
		bank[m] = make([]float64, nBins)
		left, center, right := edges[m], edges[m+1], edges[m+2]
		for k := range bank[m] {
			f := float64(k) * float64(sampleRate) / float64(nFFT)
			up := (f - left) / (center - left)
			down := (right - f) / (right - center)
			bank[m][k] = math.Max(0, math.Min(up, down))
		}
	}
	return bank
}

const powerFloor = 1e-10

// LogMel computes a (channels, frames, n_mels) log-mel power spectrogram in
// decibels for every channel of m.
func LogMel(m *audio.Multichannel, cfg Config) (*ndarray.Array, error) {
	if m.NumChannels() == 0 {
		return nil, errors.New("no audio channels")
	}
	if err := cfg.Validate(m.SampleRate); err != nil {
		return nil, err
	}

	window := Hann(cfg.NFFT)
	bank := MelFilterbank(m.SampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, cfg.FMax)
	nFrames := NumFrames(m.NumFrames(), cfg.NFFT, cfg.HopLength)

	out := ndarray.New(m.NumChannels(), nFrames, cfg.NMels)
	data := out.Data()
	for c, samples := range m.Channels {
		spec, err := STFT(samples, cfg.NFFT, cfg.HopLength, window)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		for t, frame := range spec {
			row := data[(c*nFrames+t)*cfg.NMels:]
			for mel, filter := range bank {
				var e float64
				for k, w := range filter {
					if w != 0 {
						e += w * frame[k]
					}
				}
				row[mel] = float32(10 * math.Log10(math.Max(e, powerFloor)))
			}
		}
	}
	return out, nil
}
