package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/seldkit/internal/chunker"
	"github.com/himanishpuri/seldkit/internal/features"
	"github.com/himanishpuri/seldkit/internal/labels"
)

type Audio struct {
	SampleRate int    `yaml:"sample_rate"`
	TempDir    string `yaml:"temp_dir"`
}

type Features struct {
	NFFT      int     `yaml:"n_fft"`
	HopLength int     `yaml:"hop_length"`
	NMels     int     `yaml:"n_mels"`
	FMin      float64 `yaml:"fmin"`
	FMax      float64 `yaml:"fmax"`
}

type Labels struct {
	FrameRate float64 `yaml:"frame_rate"`
	NClasses  int     `yaml:"n_classes"`
	DOAFormat string  `yaml:"doa_format"`
}

type Chunks struct {
	LengthSeconds float64 `yaml:"length_seconds"`
	HopSeconds    float64 `yaml:"hop_seconds"`
}

// Root is the feature extraction config file.
type Root struct {
	Audio    Audio    `yaml:"audio"`
	Features Features `yaml:"features"`
	Labels   Labels   `yaml:"labels"`
	Chunks   Chunks   `yaml:"chunks"`
	Workers  int      `yaml:"workers"`
}

// Default mirrors the DCASE SELD baseline front end: 24 kHz audio, 80 feature
// frames and 10 label frames per second, 5 second chunks.
func Default() *Root {
	return &Root{
		Audio:    Audio{SampleRate: 24000, TempDir: os.TempDir()},
		Features: Features{NFFT: 512, HopLength: 300, NMels: 64, FMin: 50},
		Labels:   Labels{FrameRate: 10, NClasses: 13, DOAFormat: "xyz"},
		Chunks:   Chunks{LengthSeconds: 5, HopSeconds: 2.5},
		Workers:  4,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Root, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (r *Root) FeatureConfig() features.Config {
	return features.Config{
		NFFT:      r.Features.NFFT,
		HopLength: r.Features.HopLength,
		NMels:     r.Features.NMels,
		FMin:      r.Features.FMin,
		FMax:      r.Features.FMax,
	}
}

// FeatureFrameRate is feature frames per second.
func (r *Root) FeatureFrameRate() float64 {
	return float64(r.Audio.SampleRate) / float64(r.Features.HopLength)
}

// ChunkParams converts the chunk durations to feature frames.
func (r *Root) ChunkParams() (chunker.Params, error) {
	ratio, err := r.labelRatio()
	if err != nil {
		return chunker.Params{}, err
	}
	fps := r.FeatureFrameRate()
	p := chunker.Params{
		ChunkLen: int(math.Round(r.Chunks.LengthSeconds * fps)),
		Hop:      int(math.Round(r.Chunks.HopSeconds * fps)),
		Ratio:    ratio,
	}
	return p, p.Validate()
}

func (r *Root) DOAFormat() (labels.DOAFormat, error) {
	return labels.ParseDOAFormat(r.Labels.DOAFormat)
}

func (r *Root) labelRatio() (int, error) {
	if r.Labels.FrameRate <= 0 {
		return 0, fmt.Errorf("label frame rate must be positive, got %v", r.Labels.FrameRate)
	}
	ratio := r.FeatureFrameRate() / r.Labels.FrameRate
	rounded := math.Round(ratio)
	if rounded < 1 || math.Abs(ratio-rounded) > 1e-9 {
		return 0, fmt.Errorf("feature frame rate %.3f is not a whole multiple of label frame rate %v",
			r.FeatureFrameRate(), r.Labels.FrameRate)
	}
	return int(rounded), nil
}

func (r *Root) Validate() error {
	if r.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", r.Audio.SampleRate)
	}
	if err := r.FeatureConfig().Validate(r.Audio.SampleRate); err != nil {
		return err
	}
	if r.Labels.NClasses <= 0 {
		return fmt.Errorf("n_classes must be positive, got %d", r.Labels.NClasses)
	}
	if _, err := r.DOAFormat(); err != nil {
		return err
	}
	if _, err := r.ChunkParams(); err != nil {
		return err
	}
	if r.Workers <= 0 {
		r.Workers = 1
	}
	return nil
}
