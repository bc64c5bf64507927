package models

import "fmt"

// SearchQuery is a similarity search request. Exactly one of Query, Vector, or Customer is set.
type SearchQuery struct {
	Query    string          `json:"query,omitempty"`
	Vector   []float32       `json:"vector,omitempty"`
	Customer *CustomerRecord `json:"customer,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// Validate checks that exactly one query form is set and normalizes Limit:
// zero becomes defaultLimit and values above maxLimit are capped.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	set := 0
	if q.Query != "" {
		set++
	}
	if len(q.Vector) > 0 {
		set++
	}
	if q.Customer != nil {
		set++
	}
	if set == 0 {
		return fmt.Errorf("%w: one of query, vector, or customer is required", ErrInvalidArgument)
	}
	if set > 1 {
		return fmt.Errorf("%w: only one of query, vector, or customer may be set", ErrInvalidArgument)
	}
	if q.Customer != nil {
		if err := q.Customer.Validate(); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}
