package features

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Hann returns a periodic Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// PowerSpectrum returns |X[k]|^2 for the non-negative frequencies, n/2+1 bins.
func PowerSpectrum(spectrum []complex128) []float64 {
	bins := len(spectrum)/2 + 1
	pow := make([]float64, bins)
	for k := range pow {
		a := cmplx.Abs(spectrum[k])
		pow[k] = a * a
	}
	return pow
}

// NumFrames is the number of STFT frames for n samples. Input shorter than
// one window still yields a single zero-padded frame.
func NumFrames(n, nFFT, hop int) int {
	if n <= nFFT {
		return 1
	}
	return 1 + (n-nFFT+hop-1)/hop
}

// STFT computes a time-major power spectrogram: spec[frame][bin]. The tail is
// zero-padded so every sample lands in at least one frame.
func STFT(samples []float64, nFFT, hop int, window []float64) ([][]float64, error) {
	if len(window) != nFFT {
		return nil, errors.New("window length must equal nFFT")
	}
	if hop <= 0 {
		return nil, errors.New("hop must be positive")
	}

	nFrames := NumFrames(len(samples), nFFT, hop)
	spec := make([][]float64, nFrames)
	frame := make([]float64, nFFT)
	for t := range spec {
		start := t * hop
		clear(frame)
		if start < len(samples) {
			copy(frame, samples[start:min(start+nFFT, len(samples))])
		}
		for i := range frame {
			frame[i] *= window[i]
		}
		spec[t] = PowerSpectrum(fft.FFTReal(frame))
	}
	return spec, nil
}
