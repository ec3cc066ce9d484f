package ml

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Akshita3104/SentinelAi-sub000/internal/config"
	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Classifier submits a detection request to an ML model and returns its
// judgment.
type Classifier interface {
	Classify(ctx context.Context, req model.DetectionRequest) (*model.MLResponse, error)
}

// Client speaks the ML classifier's HTTP contract: one POST per request,
// bounded by the configured deadline.
type Client struct {
	endpoint string
	deadline time.Duration
	http     *http.Client
}

// NewClient builds an ML client from config.
func NewClient(cfg config.MLConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		deadline: cfg.Deadline(),
		http:     &http.Client{},
	}
}

// Classify POSTs the request and decodes the classifier's response. All
// response fields are optional on the wire; the result is normalized so
// callers see the documented defaults.
func (c *Client) Classify(ctx context.Context, req model.DetectionRequest) (*model.MLResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding detection request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ML service returned %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var out model.MLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding ML response: %v", model.ErrUpstreamUnavailable, err)
	}
	out.Normalize()
	return &out, nil
}
