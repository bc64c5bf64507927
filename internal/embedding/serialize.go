package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/custsim/internal/models"
)

// Serialize returns the canonical text of a customer record used for embedding.
// Fields are always written in the order customer ID, interaction history, purchase history.
// Object keys inside history entries are sorted by encoding/json, so equal records give equal text.
func Serialize(r *models.CustomerRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	interactions, err := encodeHistory(r.InteractionHistory)
	if err != nil {
		return "", fmt.Errorf("%w: customer %s: interaction_history: %v", models.ErrInvalidArgument, r.CustomerID, err)
	}
	purchases, err := encodeHistory(r.PurchaseHistory)
	if err != nil {
		return "", fmt.Errorf("%w: customer %s: purchase_history: %v", models.ErrInvalidArgument, r.CustomerID, err)
	}
	return fmt.Sprintf("Customer ID: %s Interaction History: %s Purchase History: %s",
		r.CustomerID, interactions, purchases), nil
}

// SerializeAll serializes records in order and fails on the first invalid record.
func SerializeAll(records []*models.CustomerRecord) ([]string, error) {
	texts := make([]string, len(records))
	for i, r := range records {
		text, err := Serialize(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		texts[i] = text
	}
	return texts, nil
}

func encodeHistory(h models.History) (string, error) {
	if len(h) == 0 {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}(h)); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
