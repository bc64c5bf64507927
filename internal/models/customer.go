// Package models defines core data structures for customer records, queries, and search results.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// History is an ordered sequence of opaque, JSON-serializable entries.
// Order is part of the value.
type History []interface{}

// UnmarshalJSON accepts either a JSON array or a JSON string holding a JSON array,
// so exports that carry the history as JSON text decode the same as structured input.
func (h *History) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*h = History{}
			return nil
		}
		data = []byte(text)
	}
	var entries []interface{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("history must be a JSON array: %w", err)
	}
	*h = History(entries)
	return nil
}

// CustomerRecord is a single customer with its interaction and purchase history.
type CustomerRecord struct {
	CustomerID         string  `json:"customer_id"`
	InteractionHistory History `json:"interaction_history"`
	PurchaseHistory    History `json:"purchase_history"`
}

// Validate returns ErrInvalidArgument when the record has no customer ID.
func (r *CustomerRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil customer record", ErrInvalidArgument)
	}
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidArgument)
	}
	return nil
}

// Clone returns a deep copy: nested history objects and arrays are not shared with r.
func (r *CustomerRecord) Clone() *CustomerRecord {
	if r == nil {
		return nil
	}
	return &CustomerRecord{
		CustomerID:         r.CustomerID,
		InteractionHistory: cloneHistory(r.InteractionHistory),
		PurchaseHistory:    cloneHistory(r.PurchaseHistory),
	}
}

func cloneHistory(h History) History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, v := range h {
		out[i] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies decoded JSON values. Other values are copied as is.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case History:
		return cloneHistory(t)
	default:
		return v
	}
}

// CustomerContext is a customer together with its nearest distinct peers.
// The {customer, similar} shape is consumed by prompt builders.
type CustomerContext struct {
	Customer *CustomerRecord   `json:"customer"`
	Similar  []*CustomerRecord `json:"similar"`
}
