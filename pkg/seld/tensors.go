package seld

import (
	"context"
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

func toTensor(a *ndarray.Array) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(a.Data(), a.Shape()...)
}

// Tensors converts the batch for a gomlx training loop. Inputs holds the
// features (B, C, T, M); labels holds SED (B, T', classes) then DOA.
func (b *Batch) Tensors() (inputs, labels []*tensors.Tensor) {
	inputs = []*tensors.Tensor{toTensor(b.Features)}
	labels = []*tensors.Tensor{toTensor(b.SED), toTensor(b.DOA)}
	return
}

// TrainDataset exposes a Loader with the Name/Reset/Yield method set of
// gomlx's train.Dataset. Yield returns io.EOF once per epoch.
type TrainDataset struct {
	name   string
	loader *Loader
	ctx    context.Context
}

func NewTrainDataset(ctx context.Context, name string, loader *Loader) *TrainDataset {
	return &TrainDataset{name: name, loader: loader, ctx: ctx}
}

func (d *TrainDataset) Name() string {
	return d.name
}

func (d *TrainDataset) Reset() {
	d.loader.Reset()
}

// Yield returns the next batch. spec is the batch's sample indices.
func (d *TrainDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := d.loader.Next(d.ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", d.name, err)
	}
	if batch == nil {
		return nil, nil, nil, io.EOF
	}
	inputs, labels = batch.Tensors()
	return batch.Indices, inputs, labels, nil
}
