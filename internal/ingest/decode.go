package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/custsim/internal/models"
)

// Payload is the JSON body accepted for ingestion.
type Payload struct {
	Customers []*models.CustomerRecord `json:"customers"`
}

// Decode reads customer records from either {"customers": [...]} or a bare JSON array.
func Decode(r io.Reader) ([]*models.CustomerRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read customers: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", models.ErrInvalidArgument)
	}
	if data[0] == '[' {
		var records []*models.CustomerRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: invalid customers array: %v", models.ErrInvalidArgument, err)
		}
		return records, nil
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid customers payload: %v", models.ErrInvalidArgument, err)
	}
	if p.Customers == nil {
		return nil, fmt.Errorf("%w: missing customers field", models.ErrInvalidArgument)
	}
	return p.Customers, nil
}
