// Package cli formats API responses for the custsim command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const historyPreviewLen = 160

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes similarity search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d similar customers in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", result.Rank, result.Distance)
		writeCustomer(w, result.Customer)
		fmt.Fprintln(w)
	}
	return nil
}

// WriteContext writes a customer and its similar peers.
func WriteContext(w io.Writer, cc *models.CustomerContext, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, cc)
	}
	fmt.Fprintln(w, "=== Customer ===")
	writeCustomer(w, cc.Customer)
	fmt.Fprintf(w, "\n=== Similar customers (%d) ===\n", len(cc.Similar))
	if len(cc.Similar) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for i, peer := range cc.Similar {
		fmt.Fprintf(w, "─── %d ───\n", i+1)
		writeCustomer(w, peer)
	}
	return nil
}

// WriteLookup writes keyword lookup hits.
func WriteLookup(w io.Writer, response *models.LookupResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d customers\n\n", response.Total)
	for _, hit := range response.Results {
		fmt.Fprintf(w, "%-24s score %.4f\n", hit.CustomerID, hit.Score)
	}
	return nil
}

// WriteReport writes one ingestion batch report.
func WriteReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "batch:      %s\n", report.BatchID)
	fmt.Fprintf(w, "status:     %s\n", report.Status)
	fmt.Fprintf(w, "records:    %d\n", report.RecordCount)
	fmt.Fprintf(w, "received:   %s\n", report.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "duration:   %dms\n", report.DurationMs)
	if len(report.DuplicateIDs) > 0 {
		fmt.Fprintf(w, "duplicates: %v\n", report.DuplicateIDs)
	}
	if report.Error != "" {
		fmt.Fprintf(w, "error:      %s\n", report.Error)
	}
	return nil
}

// WriteBatches writes a page of ingestion batches, one per line.
func WriteBatches(w io.Writer, batches []*models.IngestReport, total int64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"batches": batches, "total": total})
	}
	fmt.Fprintf(w, "%d batches\n", total)
	for _, b := range batches {
		line := fmt.Sprintf("%s  %-9s  %5d records  %s", b.BatchID, b.Status, b.RecordCount, b.ReceivedAt.Format(time.RFC3339))
		if b.Error != "" {
			line += "  " + utils.Truncate(b.Error, 80)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeCustomer(w io.Writer, c *models.CustomerRecord) {
	if c == nil {
		return
	}
	fmt.Fprintf(w, "Customer ID: %s\n", c.CustomerID)
	fmt.Fprintf(w, "Interactions: %s\n", historyPreview(c.InteractionHistory))
	fmt.Fprintf(w, "Purchases:    %s\n", historyPreview(c.PurchaseHistory))
}

func historyPreview(h models.History) string {
	if len(h) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]interface{}(h))
	if err != nil {
		return fmt.Sprintf("%v", []interface{}(h))
	}
	return utils.Truncate(string(b), historyPreviewLen)
}

// WriteStatus writes the server status document.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	for _, key := range []string{"records", "customers", "dimensions", "batches", "keyword_documents", "disk_usage_bytes"} {
		if v, ok := status[key]; ok {
			fmt.Fprintf(w, "%-18s %v\n", key+":", v)
		}
	}
	if cfg, ok := status["config"].(map[string]interface{}); ok {
		fmt.Fprintln(w, "config:")
		keys := make([]string, 0, len(cfg))
		for k := range cfg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-20s %v\n", k+":", cfg[k])
		}
	}
	return nil
}
