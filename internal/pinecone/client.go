// Package pinecone is a REST client for the Pinecone vector index. It
// resolves the index data-plane host once through the control plane and
// caches it for the process lifetime.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/log"
)

var _ assist.Retriever = (*Client)(nil)

const requestTimeout = 60 * time.Second

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Sheet   string `json:"sheet,omitempty"`
	Company string `json:"company,omitempty"`
}

// Vector is one upsert record.
type Vector struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Stats summarizes the index.
type Stats struct {
	TotalVectorCount int `json:"totalVectorCount"`
	Dimension        int `json:"dimension"`
}

// Config identifies the index.
type Config struct {
	// APIKey is checked at first use; an empty key yields
	// assist.ErrNotConfigured instead of an upstream call.
	APIKey string

	// Index is the index name resolved through the control plane.
	Index string

	// ControlURL is the control-plane base URL.
	ControlURL string

	// Namespace scopes queries and upserts when non-empty.
	Namespace string
}

// Client talks to one Pinecone index.
type Client struct {
	cfg    Config
	http   *http.Client
	logger log.Logger

	mu   sync.Mutex
	base string // resolved data-plane base URL, empty until first success
}

// New creates a client. A nil logger discards output.
func New(cfg Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Retrieve queries the index and maps matches into pipeline documents,
// preserving the index's score ordering.
func (c *Client) Retrieve(ctx context.Context, vector []float32, topK int) ([]assist.Document, error) {
	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       c.cfg.Namespace,
	}

	var resp queryResponse
	if err := c.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	docs := make([]assist.Document, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		docs = append(docs, assist.Document{
			ID:     m.ID,
			Score:  m.Score,
			Text:   m.Metadata.Text,
			Source: m.Metadata.Source,
		})
	}
	return docs, nil
}

// Upsert writes vectors to the index.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	req := upsertRequest{Vectors: vectors, Namespace: c.cfg.Namespace}

	var resp upsertResponse
	if err := c.post(ctx, "/vectors/upsert", req, &resp); err != nil {
		return err
	}
	return nil
}

// DescribeStats reports index size and dimension.
func (c *Client) DescribeStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// resolveBase returns the cached data-plane base URL, resolving it through
// the control plane on first use. Only a successful resolution is cached;
// a failed one is retried on the next call.
func (c *Client) resolveBase(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.base != "" {
		return c.base, nil
	}
	if c.cfg.APIKey == "" {
		return "", assist.ErrNotConfigured
	}

	url := strings.TrimSuffix(c.cfg.ControlURL, "/") + "/indexes/" + c.cfg.Index
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building describe request: %w", err)
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &assist.UpstreamError{Service: "pinecone", Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &assist.UpstreamError{
			Service:    "pinecone",
			StatusCode: resp.StatusCode,
			Detail:     "describe index: " + strings.TrimSpace(string(body)),
		}
	}

	var described struct {
		Host string `json:"host"`
	}
	if err := json.Unmarshal(body, &described); err != nil {
		return "", &assist.UpstreamError{Service: "pinecone", Detail: "describe index: " + err.Error(), Err: err}
	}
	if described.Host == "" {
		return "", &assist.UpstreamError{Service: "pinecone", Detail: "describe index: empty host"}
	}

	// The control plane returns a bare hostname; an explicit scheme is
	// accepted for local test servers.
	base := described.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	c.base = strings.TrimSuffix(base, "/")
	c.logger.Info("index host resolved", "index", c.cfg.Index, "host", described.Host)

	return c.base, nil
}

// post sends one data-plane request and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	base, err := c.resolveBase(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &assist.UpstreamError{Service: "pinecone", Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode != http.StatusOK {
		return &assist.UpstreamError{
			Service:    "pinecone",
			StatusCode: resp.StatusCode,
			Detail:     path + ": " + strings.TrimSpace(string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &assist.UpstreamError{Service: "pinecone", Detail: path + ": " + err.Error(), Err: err}
	}
	return nil
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

type upsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}
