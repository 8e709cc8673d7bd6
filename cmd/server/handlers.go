package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/himanishpuri/seldkit/pkg/logger"
	"github.com/himanishpuri/seldkit/pkg/seld"
	"github.com/himanishpuri/seldkit/pkg/seld/storage"
)

// RecordStore is the subset of storage.DBClient the server needs
type RecordStore interface {
	ListRecords() ([]storage.Record, error)
	GetRecord(name string) (*storage.Record, error)
	LoadRecord(name string) (*seld.Record, error)
	DeleteRecord(name string) error
}

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	store  RecordStore
	config *ServerConfig
	log    *logger.Logger

	mu       sync.Mutex
	datasets map[string]*seld.ChunkDataset
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	BoundsPolicy   seld.BoundsPolicy
	AllowedOrigins []string
	AccessLog      bool
}

// NewServer creates a new server instance
func NewServer(store RecordStore, config *ServerConfig) *Server {
	return &Server{
		store:    store,
		config:   config,
		log:      logger.GetLogger().Named("server"),
		datasets: make(map[string]*seld.ChunkDataset),
	}
}

// dataset returns the accessor for name, loading the record on first use.
// Records are immutable once stored so the accessor is shared by all
// requests until the record is deleted.
func (s *Server) dataset(name string) (*seld.ChunkDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.datasets[name]; ok {
		return ds, nil
	}
	rec, err := s.store.LoadRecord(name)
	if err != nil {
		return nil, err
	}
	ds, err := seld.NewChunkDataset(rec,
		seld.WithBoundsPolicy(s.config.BoundsPolicy),
		seld.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}
	s.datasets[name] = ds
	s.log.Infof("Opened record %q: %d samples", name, ds.Len())
	return ds, nil
}

func (s *Server) forget(name string) {
	s.mu.Lock()
	delete(s.datasets, name)
	s.mu.Unlock()
}

func (s *Server) openDatasets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.datasets)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondLookupError maps a store error for name to 404 or 500
func (s *Server) respondLookupError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, storage.ErrRecordNotFound) {
		s.log.Warnf("Record not found: %s", name)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Record %q not found", name))
		return
	}
	s.log.Errorf("Failed to load record %q: %v", name, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to load record")
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "seldkit API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":       "GET /health",
			"metrics":      "GET /api/health/metrics",
			"records":      "GET /api/records",
			"getRecord":    "GET /api/records/{name}",
			"deleteRecord": "DELETE /api/records/{name}",
			"getSample":    "GET /api/records/{name}/samples/{index}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords()
	if err != nil {
		s.log.Errorf("Failed to get record count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	samples := 0
	for _, rec := range records {
		samples += rec.NumSamples
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		RecordCount:  len(records),
		SampleCount:  samples,
		OpenDatasets: s.openDatasets(),
		BoundsPolicy: s.config.BoundsPolicy.String(),
	})
}

// handleListRecords handles GET /api/records
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords()
	if err != nil {
		s.log.Errorf("Failed to list records: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve records")
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}

	s.respondJSON(w, http.StatusOK, ListRecordsResponse{
		Records: dtos,
		Count:   len(dtos),
	})
}

// handleGetRecord handles GET /api/records/{name}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, name string) {
	rec, err := s.store.GetRecord(name)
	if err != nil {
		s.respondLookupError(w, name, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// handleDeleteRecord handles DELETE /api/records/{name}
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, name string) {
	rec, err := s.store.GetRecord(name)
	if err != nil {
		s.respondLookupError(w, name, err)
		return
	}

	if err := s.store.DeleteRecord(name); err != nil {
		s.log.Errorf("Failed to delete record %q: %v", name, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete record")
		return
	}
	s.forget(name)

	s.log.Infof("Deleted record %q (ID: %s)", name, rec.ID)
	s.respondJSON(w, http.StatusOK, DeleteRecordResponse{
		Message: "Record deleted successfully",
		ID:      rec.ID,
		Name:    name,
	})
}

// handleSample handles GET /api/records/{name}/samples/{index}
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := r.PathValue("name")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid sample index")
		return
	}

	ds, err := s.dataset(name)
	if err != nil {
		s.respondLookupError(w, name, err)
		return
	}

	sample, err := ds.Get(index)
	switch {
	case errors.Is(err, seld.ErrIndexOutOfRange):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, seld.ErrChunkOutOfBounds):
		s.log.Errorf("Record %q sample %d: %v", name, index, err)
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.log.Errorf("Record %q sample %d: %v", name, index, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read sample")
		return
	}

	s.respondJSON(w, http.StatusOK, toSampleResponse(name, index, sample))
}

// handleRecords routes requests to /api/records
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecords(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRecord routes requests to /api/records/{name}
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "Record name required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRecord(w, r, name)
	case http.MethodDelete:
		s.handleDeleteRecord(w, r, name)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
