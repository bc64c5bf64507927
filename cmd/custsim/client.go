package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/custsim/internal/models"
)

// apiClient talks to a running custsim server. The similarity index lives in the
// server process, so every CLI command other than server goes through it.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newClient(serverURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(serverURL, "/") + "/api/v1",
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// errorFrom builds an error from a non-success response, preferring the server's
// {"error": "..."} message over the raw body.
func errorFrom(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func (c *apiClient) do(method, path string, in, out interface{}, okStatus int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != okStatus {
		return errorFrom(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ingest posts a batch. A failed batch still returns its report alongside the error.
func (c *apiClient) ingest(records []*models.CustomerRecord) (*models.IngestReport, error) {
	b, err := json.Marshal(map[string]interface{}{"customers": records})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.baseURL+"/customers", "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var report models.IngestReport
	if resp.StatusCode == http.StatusCreated {
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &report, nil
	}
	if json.Unmarshal(raw, &report) == nil && report.BatchID != "" {
		return &report, fmt.Errorf("server returned %d: %s", resp.StatusCode, report.Error)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return nil, errorFrom(resp)
}

func (c *apiClient) search(query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := c.do(http.MethodPost, "/search", query, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *apiClient) context(id string) (*models.CustomerContext, error) {
	var cc models.CustomerContext
	if err := c.do(http.MethodGet, "/customers/"+url.PathEscape(id)+"/context", nil, &cc, http.StatusOK); err != nil {
		return nil, err
	}
	return &cc, nil
}

func (c *apiClient) lookup(q string, limit int, fuzzy bool) (*models.LookupResponse, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		params.Set("fuzzy", "true")
	}
	var response models.LookupResponse
	if err := c.do(http.MethodGet, "/customers/lookup?"+params.Encode(), nil, &response, http.StatusOK); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *apiClient) batch(id string) (*models.IngestReport, error) {
	var report models.IngestReport
	if err := c.do(http.MethodGet, "/ingestions/"+url.PathEscape(id), nil, &report, http.StatusOK); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *apiClient) batches(offset, limit int) ([]*models.IngestReport, int64, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	var response struct {
		Batches []*models.IngestReport `json:"batches"`
		Total   int64                  `json:"total"`
	}
	if err := c.do(http.MethodGet, "/ingestions?"+params.Encode(), nil, &response, http.StatusOK); err != nil {
		return nil, 0, err
	}
	return response.Batches, response.Total, nil
}

func (c *apiClient) status() (map[string]interface{}, error) {
	var status map[string]interface{}
	if err := c.do(http.MethodGet, "/status", nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return status, nil
}
