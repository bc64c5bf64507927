package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/embedding"
	"github.com/hyperjump/custsim/internal/ingest"
	"github.com/hyperjump/custsim/internal/keyword"
	"github.com/hyperjump/custsim/internal/models"
)

const (
	maxIngestBody       = 32 << 20
	defaultLookupLimit  = 10
	defaultBatchesLimit = 20
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	records, err := ingest.Decode(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ingest request", zap.Int("records", len(records)))
	report, err := s.ingester.Ingest(r.Context(), records)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("ingestion failed", zap.Error(err))
		}
		s.respondJSON(w, status, report)
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.index.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, customer)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("context request", zap.String("customer_id", id))
	cc, err := s.index.GetContext(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(s.config.Search.DefaultLimit, s.config.Search.MaxLimit); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.index.Query(r.Context(), &query)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if s.keywords == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword lookup not enabled")
		return
	}
	limit, err := intParam(r, "limit", defaultLookupLimit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if maxLimit := s.config.Search.MaxLimit; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	opts := &keyword.SearchOptions{FuzzyEnabled: s.config.Search.LookupFuzzy}
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		opts.FuzzyEnabled, _ = strconv.ParseBool(v)
	}
	results, err := s.keywords.Search(r.Context(), r.URL.Query().Get("q"), limit, opts)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	hits := make([]*models.LookupResult, 0, len(results))
	for _, res := range results {
		customer, err := s.index.Lookup(res.ID)
		if err != nil {
			continue
		}
		hits = append(hits, &models.LookupResult{CustomerID: res.ID, Score: res.Score, Customer: customer})
	}
	s.respondJSON(w, http.StatusOK, &models.LookupResponse{Results: hits, Total: len(hits)})
}

func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	limit, err := intParam(r, "limit", defaultBatchesLimit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	batches, total, err := s.ingester.Batches(r.Context(), offset, limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"batches": batches, "total": total})
}

func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingester.Batch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, batches, err := s.ingester.Batches(r.Context(), 0, 0)
	if err != nil {
		s.logger.Error("status: count batches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"records":    s.index.Size(),
		"customers":  s.index.Customers(),
		"dimensions": s.index.Dimensions(),
		"batches":    batches,
	}
	configInfo := map[string]interface{}{
		"embedding_provider": s.config.Embedding.Provider,
		"embedding_model":    s.embeddingModel(),
		"context_peers":      s.config.Search.ContextPeers,
		"database_path":      s.config.Storage.DatabasePath,
	}
	if s.storage != nil {
		if diskBytes, err := s.storage.DiskUsageBytes(); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	if s.keywords != nil {
		if n, err := s.keywords.DocCount(); err == nil {
			resp["keyword_documents"] = n
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) embeddingModel() string {
	if s.config.Embedding.Provider == embedding.ProviderOpenAI {
		return s.config.Embedding.Model
	}
	return s.config.Embedding.ModelPath
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &paramError{name: name, value: v}
	}
	return n, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + e.value
}

func (e *paramError) Unwrap() error {
	return models.ErrInvalidArgument
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
