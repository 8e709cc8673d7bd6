package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteMultichannel encodes m as integer PCM WAV at the given bit depth.
// Samples outside [-1, 1] are clipped.
func WriteMultichannel(path string, m *Multichannel, bitDepth int) error {
	if m.NumChannels() == 0 {
		return errors.New("no channels to write")
	}
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	nch := m.NumChannels()
	frames := m.NumFrames()
	peak := float64(int64(1)<<(bitDepth-1) - 1)

	data := make([]int, frames*nch)
	for c, ch := range m.Channels {
		if len(ch) != frames {
			return fmt.Errorf("channel %d has %d frames, expected %d", c, len(ch), frames)
		}
		for i, v := range ch {
			data[i*nch+c] = int(math.Round(math.Max(-1, math.Min(1, v)) * peak))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, m.SampleRate, bitDepth, nch, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: nch, SampleRate: m.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	return f.Close()
}
