package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Multichannel holds de-interleaved samples normalized to [-1, 1].
type Multichannel struct {
	Channels   [][]float64
	SampleRate int
	BitDepth   int
}

func (m *Multichannel) NumChannels() int {
	return len(m.Channels)
}

// NumFrames is the number of samples per channel.
func (m *Multichannel) NumFrames() int {
	if len(m.Channels) == 0 {
		return 0
	}
	return len(m.Channels[0])
}

func (m *Multichannel) Duration() time.Duration {
	if m.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(m.NumFrames()) / float64(m.SampleRate) * float64(time.Second))
}

// Select returns a copy of m keeping the listed channels in the given order.
func (m *Multichannel) Select(channels []int) (*Multichannel, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels selected")
	}
	out := &Multichannel{SampleRate: m.SampleRate, BitDepth: m.BitDepth, Channels: make([][]float64, len(channels))}
	seen := make(map[int]bool, len(channels))
	for i, c := range channels {
		if c < 0 || c >= m.NumChannels() {
			return nil, fmt.Errorf("channel %d not in [0, %d)", c, m.NumChannels())
		}
		if seen[c] {
			return nil, fmt.Errorf("channel %d selected twice", c)
		}
		seen[c] = true
		out.Channels[i] = append([]float64(nil), m.Channels[c]...)
	}
	return out, nil
}

// ReadMultichannel decodes a PCM WAV file keeping every channel.
func ReadMultichannel(path string) (*Multichannel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%s: unsupported WAV audio format %d: only PCM (1) supported", path, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: reading PCM data: %w", path, err)
	}

	channels, err := deinterleave(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Multichannel{
		Channels:   channels,
		SampleRate: int(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
	}, nil
}

// deinterleave splits an interleaved integer buffer into per-channel float
// slices scaled by the source bit depth to [-1, 1].
func deinterleave(buf *goaudio.IntBuffer) ([][]float64, error) {
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, errors.New("missing channel count")
	}
	if buf.SourceBitDepth <= 0 || buf.SourceBitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", buf.SourceBitDepth)
	}

	nch := buf.Format.NumChannels
	frames := len(buf.Data) / nch
	scale := 1.0 / float64(int64(1)<<(buf.SourceBitDepth-1))
	// 8-bit PCM is unsigned with silence at 128
	offset := 0
	if buf.SourceBitDepth == 8 {
		offset = 128
	}

	out := make([][]float64, nch)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			out[c][i] = float64(buf.Data[i*nch+c]-offset) * scale
		}
	}
	return out, nil
}
