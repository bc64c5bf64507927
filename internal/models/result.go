package models

import "time"

// SearchResult is a single nearest-neighbour hit.
type SearchResult struct {
	Customer *CustomerRecord `json:"customer"`
	Distance float64         `json:"distance"`
	Rank     int             `json:"rank"`
}

// SearchResponse is the response for a similarity search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}

// Ingestion batch statuses.
const (
	IngestSucceeded = "succeeded"
	IngestFailed    = "failed"
)

// IngestReport describes the outcome of one ingestion batch.
type IngestReport struct {
	BatchID      string    `json:"batch_id"`
	Status       string    `json:"status"`
	RecordCount  int       `json:"record_count"`
	DuplicateIDs []string  `json:"duplicate_ids,omitempty"`
	Error        string    `json:"error,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// LookupResult is a keyword lookup hit resolved to its stored customer.
type LookupResult struct {
	CustomerID string          `json:"customer_id"`
	Score      float64         `json:"score"`
	Customer   *CustomerRecord `json:"customer"`
}

// LookupResponse is the response for a keyword lookup request.
type LookupResponse struct {
	Results []*LookupResult `json:"results"`
	Total   int             `json:"total"`
}
