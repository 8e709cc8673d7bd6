package pipeline

import (
	"context"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/himanishpuri/seldkit/internal/audio"
	"github.com/himanishpuri/seldkit/internal/config"
	"github.com/himanishpuri/seldkit/pkg/logger"
	"github.com/himanishpuri/seldkit/pkg/seld"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
}

// testConfig gives 80 feature frames and 10 label frames per second with
// 1 second chunks every 0.5 seconds.
func testConfig() *config.Root {
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	cfg.Features = config.Features{NFFT: 256, HopLength: 100, NMels: 32}
	cfg.Labels.NClasses = 3
	cfg.Chunks = config.Chunks{LengthSeconds: 1, HopSeconds: 0.5}
	cfg.Workers = 2
	return cfg
}

func writeFixture(t *testing.T, audioDir, metaDir, stem string, frames int, csv string) Item {
	t.Helper()
	return writeFixtureAt(t, audioDir, metaDir, stem, 8000, frames, csv)
}

func writeFixtureAt(t *testing.T, audioDir, metaDir, stem string, sampleRate, frames int, csv string) Item {
	t.Helper()
	m := &audio.Multichannel{SampleRate: sampleRate, Channels: make([][]float64, 4)}
	for c := range m.Channels {
		m.Channels[c] = make([]float64, frames)
		for i := range m.Channels[c] {
			m.Channels[c][i] = 0.2 * math.Sin(2*math.Pi*float64(300*(c+1))*float64(i)/float64(sampleRate))
		}
	}
	item := Item{
		AudioPath:    filepath.Join(audioDir, stem+".wav"),
		MetadataPath: filepath.Join(metaDir, stem+".csv"),
	}
	if err := audio.WriteMultichannel(item.AudioPath, m, 16); err != nil {
		t.Fatalf("WriteMultichannel failed: %v", err)
	}
	if err := os.WriteFile(item.MetadataPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return item
}

func fixtures(t *testing.T) (string, string, []Item) {
	t.Helper()
	audioDir, metaDir := t.TempDir(), t.TempDir()
	items := []Item{
		writeFixture(t, audioDir, metaDir, "a", 12000, "2,0,0,90,0\n"),
		writeFixture(t, audioDir, metaDir, "b", 4000, "1,1,0,0,0\n40,2,0,0,0\n"),
	}
	return audioDir, metaDir, items
}

func TestBuild(t *testing.T) {
	_, _, items := fixtures(t)
	b, err := NewBuilder(testConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	rec, err := b.Build(context.Background(), items)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// a: 119 frames padded to 120, b: 39 frames padded to one 80-frame chunk
	if got := rec.Features.Shape(); !slices.Equal(got, []int{4, 200, 32}) {
		t.Errorf("features shape %v, expected [4 200 32]", got)
	}
	if got := rec.SEDTargets.Shape(); !slices.Equal(got, []int{25, 3}) {
		t.Errorf("sed shape %v, expected [25 3]", got)
	}
	if got := rec.DOATargets.Shape(); !slices.Equal(got, []int{25, 9}) {
		t.Errorf("doa shape %v, expected [25 9]", got)
	}
	if !slices.Equal(rec.FeatureChunkIdxes, []int{0, 40, 120}) {
		t.Errorf("feature chunk idxes %v, expected [0 40 120]", rec.FeatureChunkIdxes)
	}
	if !slices.Equal(rec.GTChunkIdxes, []int{0, 5, 15}) {
		t.Errorf("gt chunk idxes %v, expected [0 5 15]", rec.GTChunkIdxes)
	}
	if !slices.Equal(rec.FilenameList, []string{"a.wav", "a.wav", "b.wav"}) {
		t.Errorf("filenames %v", rec.FilenameList)
	}
	if rec.FeatureChunkLen != 80 || rec.GTChunkLen != 10 {
		t.Errorf("chunk lengths %d/%d, expected 80/10", rec.FeatureChunkLen, rec.GTChunkLen)
	}

	if rec.SEDTargets.At(2, 0) != 1 {
		t.Error("event of a.wav at frame 2 missing")
	}
	if rec.SEDTargets.At(16, 1) != 1 {
		t.Error("event of b.wav at frame 1 not offset to global frame 16")
	}

	ds, err := seld.NewChunkDataset(rec, seld.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewChunkDataset failed: %v", err)
	}
	for i := 0; i < ds.Len(); i++ {
		s, err := ds.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if !slices.Equal(s.Features.Shape(), []int{4, 80, 32}) || s.SED.Len() != 10 {
			t.Errorf("sample %d shapes %v / %v", i, s.Features.Shape(), s.SED.Shape())
		}
	}
}

func TestBuildPolarLabels(t *testing.T) {
	_, _, items := fixtures(t)
	cfg := testConfig()
	cfg.Labels.DOAFormat = "polar"

	b, err := NewBuilder(cfg, quietLogger())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	rec, err := b.Build(context.Background(), items)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := rec.DOATargets.Shape(); !slices.Equal(got, []int{25, 3, 2}) {
		t.Errorf("doa shape %v, expected [25 3 2]", got)
	}
}

func TestBuildResamplesInPrivateTempDirs(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	// Same base name in two directories, both at 16 kHz.
	metaDir := t.TempDir()
	first := writeFixtureAt(t, t.TempDir(), metaDir, "mix", 16000, 16000, "2,0,0,90,0\n")
	second := writeFixtureAt(t, t.TempDir(), t.TempDir(), "mix", 16000, 8000, "1,1,0,0,0\n")

	cfg := testConfig()
	cfg.Audio.TempDir = t.TempDir()
	b, err := NewBuilder(cfg, quietLogger())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	rec, err := b.Build(context.Background(), []Item{first, second})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// 79 and 39 frames after resampling to 8 kHz, one padded chunk each
	if rec.NumSamples() != 2 || rec.SEDTargets.Len() != 20 {
		t.Fatalf("Expected 2 chunks over 20 label frames, got %d over %d", rec.NumSamples(), rec.SEDTargets.Len())
	}
	if rec.SEDTargets.At(2, 0) != 1 || rec.SEDTargets.At(11, 1) != 1 {
		t.Error("labels of the two recordings were mixed up")
	}

	left, err := os.ReadDir(cfg.Audio.TempDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("temp dir not cleaned up: %d entries left", len(left))
	}
}

func TestBuildErrors(t *testing.T) {
	b, err := NewBuilder(testConfig(), quietLogger())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	if _, err := b.Build(context.Background(), nil); err == nil {
		t.Error("Expected error for empty item list")
	}

	_, _, items := fixtures(t)
	items[1].MetadataPath = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := b.Build(context.Background(), items); err == nil {
		t.Error("Expected error for missing metadata")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, items = fixtures(t)
	if _, err := b.Build(ctx, items); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestNewBuilderRejectsConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Features.HopLength = 96
	if _, err := NewBuilder(cfg, quietLogger()); err == nil {
		t.Error("Expected error for non-integer label ratio")
	}
}

func TestDiscover(t *testing.T) {
	audioDir, metaDir, _ := fixtures(t)
	orphan := filepath.Join(audioDir, "c.wav")
	if err := os.WriteFile(orphan, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	items, err := Discover(audioDir, metaDir, quietLogger())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if filepath.Base(items[0].AudioPath) != "a.wav" || filepath.Base(items[1].MetadataPath) != "b.csv" {
		t.Errorf("unexpected pairing: %+v", items)
	}

	if _, err := Discover(filepath.Join(audioDir, "nope"), metaDir, quietLogger()); err == nil {
		t.Error("Expected error for missing audio directory")
	}
}
