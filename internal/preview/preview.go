// Package preview renders spectrogram images of recordings for eyeballing a
// dataset before building a record from it.
package preview

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/seldkit/internal/audio"
	"github.com/himanishpuri/seldkit/pkg/utils"
)

type Options struct {
	Width  int
	Height int // also the number of frequency bins drawn
}

func DefaultOptions() Options {
	return Options{Width: 2048, Height: 512}
}

// RenderChannel draws one channel of the WAV at path and writes
// <stem>_ch<channel>.png into outDir, returning the image path.
func RenderChannel(path string, channel int, outDir string, opts Options) (string, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return "", fmt.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}

	mc, err := audio.ReadMultichannel(path)
	if err != nil {
		return "", err
	}
	if channel < 0 || channel >= mc.NumChannels() {
		return "", fmt.Errorf("channel %d not in [0, %d)", channel, mc.NumChannels())
	}
	if mc.NumFrames() == 0 {
		return "", fmt.Errorf("%s has no samples", path)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude. The log10 scale washes out.
	spectrogram.Drawfft(
		img,
		mc.Channels[channel],
		uint32(mc.SampleRate),
		uint32(opts.Height),
		false,
		false,
		true,
		false,
	)

	outPath := filepath.Join(outDir, fmt.Sprintf("%s_ch%d.png", utils.Stem(path), channel))
	if err := spectrogram.SavePng(img, outPath); err != nil {
		return "", fmt.Errorf("saving %s: %w", outPath, err)
	}
	return outPath, nil
}
