package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestCustomerRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  *CustomerRecord
		wantErr bool
	}{
		{"nil record", nil, true},
		{"empty id", &CustomerRecord{}, true},
		{"blank id", &CustomerRecord{CustomerID: "   "}, true},
		{"valid", &CustomerRecord{CustomerID: "c1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestHistory_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{"array", `{"customer_id":"a","interaction_history":[{"type":"call"},"email"]}`, 2, false},
		{"json text", `{"customer_id":"a","interaction_history":"[{\"type\":\"call\"}]"}`, 1, false},
		{"empty text", `{"customer_id":"a","interaction_history":""}`, 0, false},
		{"malformed text", `{"customer_id":"a","interaction_history":"[{"}`, 0, true},
		{"object is not a history", `{"customer_id":"a","interaction_history":{"a":1}}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec CustomerRecord
			err := json.Unmarshal([]byte(tt.input), &rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(rec.InteractionHistory) != tt.wantLen {
				t.Errorf("len(InteractionHistory) = %d, want %d", len(rec.InteractionHistory), tt.wantLen)
			}
		})
	}
}

func TestCustomerRecord_Clone(t *testing.T) {
	orig := &CustomerRecord{
		CustomerID:         "c1",
		InteractionHistory: History{"a", "b"},
		PurchaseHistory:    nil,
	}
	c := orig.Clone()
	c.InteractionHistory[0] = "changed"
	if orig.InteractionHistory[0] != "a" {
		t.Error("clone should not share history backing array")
	}
	if c.PurchaseHistory != nil {
		t.Error("nil history should stay nil")
	}
	var nilRec *CustomerRecord
	if nilRec.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

func TestCustomerRecord_CloneNested(t *testing.T) {
	orig := &CustomerRecord{
		CustomerID: "c1",
		PurchaseHistory: History{
			map[string]interface{}{
				"product": "laptop",
				"tags":    []interface{}{"work", map[string]interface{}{"color": "grey"}},
			},
		},
	}
	c := orig.Clone()
	entry := c.PurchaseHistory[0].(map[string]interface{})
	entry["product"] = "changed"
	tags := entry["tags"].([]interface{})
	tags[0] = "changed"
	tags[1].(map[string]interface{})["color"] = "changed"

	want := map[string]interface{}{
		"product": "laptop",
		"tags":    []interface{}{"work", map[string]interface{}{"color": "grey"}},
	}
	if !reflect.DeepEqual(orig.PurchaseHistory[0], want) {
		t.Errorf("original changed through clone: %v", orig.PurchaseHistory[0])
	}
}

func TestCustomerContext_JSONShape(t *testing.T) {
	cc := &CustomerContext{Customer: &CustomerRecord{CustomerID: "a"}, Similar: []*CustomerRecord{}}
	b, err := json.Marshal(cc)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["customer"]; !ok {
		t.Error("missing customer key")
	}
	if string(out["similar"]) != "[]" {
		t.Errorf("similar = %s, want []", out["similar"])
	}
}
