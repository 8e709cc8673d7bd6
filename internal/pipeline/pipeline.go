// Package pipeline builds a seld.Record from recordings and their metadata.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/seldkit/internal/audio"
	"github.com/himanishpuri/seldkit/internal/chunker"
	"github.com/himanishpuri/seldkit/internal/config"
	"github.com/himanishpuri/seldkit/internal/features"
	"github.com/himanishpuri/seldkit/internal/labels"
	"github.com/himanishpuri/seldkit/pkg/ndarray"
	"github.com/himanishpuri/seldkit/pkg/seld"
	"github.com/himanishpuri/seldkit/pkg/utils"
)

// Item pairs one recording with its metadata file.
type Item struct {
	AudioPath    string
	MetadataPath string
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Builder turns Items into a single concatenated record.
type Builder struct {
	cfg    *config.Root
	params chunker.Params
	format labels.DOAFormat
	log    Logger
}

func NewBuilder(cfg *config.Root, log Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	params, err := cfg.ChunkParams()
	if err != nil {
		return nil, err
	}
	format, err := cfg.DOAFormat()
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, params: params, format: format, log: log}, nil
}

// extracted is one file's padded features and labels with its chunk plan.
type extracted struct {
	name     string
	features *ndarray.Array
	sed      *ndarray.Array
	doa      *ndarray.Array
	plan     chunker.Plan
}

// Build extracts every item concurrently and concatenates the results in
// input order.
func (b *Builder) Build(ctx context.Context, items []Item) (*seld.Record, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no recordings to build from")
	}

	results := make([]*extracted, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ex, err := b.extract(ctx, item)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(item.AudioPath), err)
			}
			results[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return b.assemble(results)
}

func (b *Builder) extract(ctx context.Context, item Item) (*extracted, error) {
	mc, err := audio.ReadMultichannel(item.AudioPath)
	if err != nil {
		return nil, err
	}
	if mc.SampleRate != b.cfg.Audio.SampleRate {
		b.log.Infof("Resampling %s from %d Hz to %d Hz", filepath.Base(item.AudioPath), mc.SampleRate, b.cfg.Audio.SampleRate)
		if mc, err = b.resample(ctx, item.AudioPath); err != nil {
			return nil, fmt.Errorf("resampling: %w", err)
		}
	}

	feats, err := features.LogMel(mc, b.cfg.FeatureConfig())
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	nFrames := feats.Dim(1)

	plan, err := chunker.Windows(nFrames, b.params)
	if err != nil {
		return nil, err
	}
	padded := b.params.PaddedFrames(nFrames)
	if padded > nFrames {
		pad := ndarray.New(feats.Dim(0), padded-nFrames, feats.Dim(2))
		if feats, err = ndarray.Concat(1, feats, pad); err != nil {
			return nil, err
		}
	}

	events, err := labels.ReadMetadataFile(item.MetadataPath)
	if err != nil {
		return nil, err
	}
	sed, doa, err := labels.Targets(events, padded/b.params.Ratio, b.cfg.Labels.NClasses, b.format)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}

	b.log.Debugf("%s: %d channels, %d frames (padded %d), %d events, %d chunks",
		filepath.Base(item.AudioPath), mc.NumChannels(), nFrames, padded, len(events), plan.Len())

	return &extracted{
		name:     filepath.Base(item.AudioPath),
		features: feats,
		sed:      sed,
		doa:      doa,
		plan:     plan,
	}, nil
}

// resample converts path through a private temp directory that is removed
// once the converted audio is in memory.
func (b *Builder) resample(ctx context.Context, path string) (*audio.Multichannel, error) {
	if err := os.MkdirAll(b.cfg.Audio.TempDir, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(b.cfg.Audio.TempDir, "seldkit-resample-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	converted, err := audio.ConvertToPCMWAV(ctx, path, dir, audio.ConvertWAVConfig{
		SampleRate: b.cfg.Audio.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	return audio.ReadMultichannel(converted)
}

func (b *Builder) assemble(results []*extracted) (*seld.Record, error) {
	rec := &seld.Record{
		FeatureChunkLen: b.params.ChunkLen,
		GTChunkLen:      b.params.GTChunkLen(),
	}

	feats := make([]*ndarray.Array, len(results))
	seds := make([]*ndarray.Array, len(results))
	doas := make([]*ndarray.Array, len(results))
	featureOffset, gtOffset := 0, 0
	for i, ex := range results {
		feats[i], seds[i], doas[i] = ex.features, ex.sed, ex.doa

		plan := ex.plan.Offset(featureOffset, gtOffset)
		rec.FeatureChunkIdxes = append(rec.FeatureChunkIdxes, plan.FeatureStarts...)
		rec.GTChunkIdxes = append(rec.GTChunkIdxes, plan.GTStarts...)
		for range plan.Len() {
			rec.FilenameList = append(rec.FilenameList, ex.name)
		}

		featureOffset += ex.features.Dim(1)
		gtOffset += ex.sed.Len()
	}

	var err error
	if rec.Features, err = ndarray.Concat(1, feats...); err != nil {
		return nil, fmt.Errorf("concatenating features (channel or mel mismatch?): %w", err)
	}
	if rec.SEDTargets, err = ndarray.Concat(0, seds...); err != nil {
		return nil, fmt.Errorf("concatenating sed targets: %w", err)
	}
	if rec.DOATargets, err = ndarray.Concat(0, doas...); err != nil {
		return nil, fmt.Errorf("concatenating doa targets: %w", err)
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	b.log.Infof("Built record: %d files, %d chunks, features %v", len(results), rec.NumSamples(), rec.Features.Shape())
	return rec, nil
}

// Discover pairs every WAV in audioDir with the CSV of the same stem in
// metaDir. Recordings without metadata are skipped with a warning.
func Discover(audioDir, metaDir string, log Logger) ([]Item, error) {
	wavs, err := utils.ListFilesByExt(audioDir, ".wav")
	if err != nil {
		return nil, err
	}
	csvs, err := utils.ListFilesByExt(metaDir, ".csv")
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(csvs))
	for _, p := range csvs {
		meta[utils.Stem(p)] = p
	}

	var items []Item
	for _, wav := range wavs {
		m, ok := meta[utils.Stem(wav)]
		if !ok {
			log.Warnf("No metadata for %s, skipping", filepath.Base(wav))
			continue
		}
		items = append(items, Item{AudioPath: wav, MetadataPath: m})
	}
	return items, nil
}
