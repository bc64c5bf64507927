package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/custsim/internal/models"
)

const (
	defaultLimit     = 10
	defaultFuzziness = 2
	// Exact customer ID hits outrank history matches.
	idBoost = 5.0
)

// customerDoc is the indexed form of a customer record.
type customerDoc struct {
	CustomerID   string `json:"customer_id"`
	Interactions string `json:"interactions"`
	Purchases    string `json:"purchases"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index

	mu      sync.Mutex
	indexed map[string]struct{}
}

// NewBleveIndex creates a Bleve index. An empty path keeps the index in memory; otherwise any
// index already at path is removed and a fresh one is created, since records are re-ingested
// on every start.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so product names and SKUs match as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("interactions", textFieldMapping)
	docMapping.AddFieldMappingsAt("purchases", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("customer_id", keywordFieldMapping)
	im.AddDocumentMapping("customer", docMapping)
	im.DefaultType = "customer"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index, indexed: make(map[string]struct{})}, nil
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to reset Bleve index: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, indexed: make(map[string]struct{})}, nil
}

// IndexBatch indexes records in one Bleve batch, skipping IDs that are already indexed.
func (b *BleveIndex) IndexBatch(ctx context.Context, records []*models.CustomerRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	added := make([]string, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			b.forget(added)
			return err
		}
		if _, ok := b.indexed[r.CustomerID]; ok {
			continue
		}
		b.indexed[r.CustomerID] = struct{}{}
		added = append(added, r.CustomerID)
		doc, err := toDoc(r)
		if err == nil {
			err = batch.Index(r.CustomerID, doc)
		}
		if err != nil {
			b.forget(added)
			return fmt.Errorf("failed to index customer %s: %w", r.CustomerID, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		b.forget(added)
		return err
	}
	return nil
}

func (b *BleveIndex) forget(ids []string) {
	for _, id := range ids {
		delete(b.indexed, id)
	}
}

func toDoc(r *models.CustomerRecord) (*customerDoc, error) {
	interactions, err := historyText(r.InteractionHistory)
	if err != nil {
		return nil, fmt.Errorf("interaction_history: %w", err)
	}
	purchases, err := historyText(r.PurchaseHistory)
	if err != nil {
		return nil, fmt.Errorf("purchase_history: %w", err)
	}
	return &customerDoc{CustomerID: r.CustomerID, Interactions: interactions, Purchases: purchases}, nil
}

func historyText(h models.History) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	b, err := json.Marshal([]interface{}(h))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Search matches query against customer IDs (exact) and history text, best first.
// When opts.FuzzyEnabled is true, history terms match within the configured edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: lookup query is empty", models.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	fuzzyEnabled := false
	fuzziness := defaultFuzziness
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	idQuery := bleve.NewTermQuery(query)
	idQuery.SetField("customer_id")
	idQuery.SetBoost(idBoost)

	queries := []blevequery.Query{idQuery}
	for _, field := range []string{"interactions", "purchases"} {
		if fuzzyEnabled {
			queries = append(queries, buildFuzzyQuery(query, fuzziness, field))
			continue
		}
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		queries = append(queries, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query on field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 1 {
		fq := bleve.NewFuzzyQuery(terms[0])
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		return fq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed customers.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
