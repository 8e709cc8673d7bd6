package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/seldkit/internal/labels"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaultChunkParams(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p, err := cfg.ChunkParams()
	if err != nil {
		t.Fatalf("ChunkParams failed: %v", err)
	}
	if p.ChunkLen != 400 || p.Hop != 200 || p.Ratio != 8 {
		t.Errorf("got %+v, expected chunk 400 hop 200 ratio 8", p)
	}
	if p.GTChunkLen() != 50 {
		t.Errorf("GTChunkLen() = %d, expected 50", p.GTChunkLen())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
audio:
  sample_rate: 16000
features:
  hop_length: 160
  n_mels: 40
labels:
  n_classes: 3
  doa_format: polar
chunks:
  length_seconds: 2
  hop_seconds: 1
workers: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Features.NFFT != 512 {
		t.Errorf("n_fft default lost, got %d", cfg.Features.NFFT)
	}
	if cfg.Features.NMels != 40 || cfg.Labels.NClasses != 3 || cfg.Workers != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if f, _ := cfg.DOAFormat(); f != labels.DOAPolar {
		t.Errorf("doa format %v, expected polar", f)
	}
	p, err := cfg.ChunkParams()
	if err != nil {
		t.Fatalf("ChunkParams failed: %v", err)
	}
	if p.ChunkLen != 200 || p.Hop != 100 || p.Ratio != 10 {
		t.Errorf("got %+v, expected chunk 200 hop 100 ratio 10", p)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"fractional label ratio", "features:\n  hop_length: 256\n"},
		{"unknown doa format", "labels:\n  doa_format: spherical\n"},
		{"chunk not label aligned", "chunks:\n  length_seconds: 0.33\n"},
		{"malformed yaml", "audio: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Expected error but got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
