package main

import (
	"time"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
	"github.com/himanishpuri/seldkit/pkg/seld"
	"github.com/himanishpuri/seldkit/pkg/seld/storage"
)

// RecordDTO represents a stored record in API responses
type RecordDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	NumSamples      int       `json:"num_samples"`
	FeatureShape    string    `json:"feature_shape"`
	FeatureChunkLen int       `json:"feature_chunk_len"`
	GTChunkLen      int       `json:"gt_chunk_len"`
	CreatedAt       time.Time `json:"created_at"`
}

func toRecordDTO(r storage.Record) RecordDTO {
	return RecordDTO{
		ID:              r.ID,
		Name:            r.Name,
		NumSamples:      r.NumSamples,
		FeatureShape:    r.FeatureShape,
		FeatureChunkLen: r.FeatureChunkLen,
		GTChunkLen:      r.GTChunkLen,
		CreatedAt:       r.CreatedAt,
	}
}

// ListRecordsResponse is the response for GET /api/records
type ListRecordsResponse struct {
	Records []RecordDTO `json:"records"`
	Count   int         `json:"count"`
}

// DeleteRecordResponse is the response for DELETE /api/records/{name}
type DeleteRecordResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Name    string `json:"name"`
}

// ArrayDTO is a row-major array with its shape
type ArrayDTO struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func toArrayDTO(a *ndarray.Array) ArrayDTO {
	return ArrayDTO{Shape: a.Shape(), Data: a.Data()}
}

// SampleResponse is the response for GET /api/records/{name}/samples/{index}
type SampleResponse struct {
	Record   string   `json:"record"`
	Index    int      `json:"index"`
	Filename string   `json:"filename"`
	Features ArrayDTO `json:"features"`
	SED      ArrayDTO `json:"sed"`
	DOA      ArrayDTO `json:"doa"`
}

func toSampleResponse(record string, index int, s *seld.Sample) SampleResponse {
	return SampleResponse{
		Record:   record,
		Index:    index,
		Filename: s.Filename,
		Features: toArrayDTO(s.Features),
		SED:      toArrayDTO(s.SED),
		DOA:      toArrayDTO(s.DOA),
	}
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	RecordCount  int    `json:"record_count"`
	SampleCount  int    `json:"sample_count"`
	OpenDatasets int    `json:"open_datasets"`
	BoundsPolicy string `json:"bounds_policy"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
