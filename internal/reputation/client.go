package reputation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Akshita3104/SentinelAi-sub000/internal/config"
	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxAgeInDays = "90"

// Checker answers one reputation question: the abuse confidence score for an
// IP, 0..100.
type Checker interface {
	Check(ctx context.Context, ip string) (int, error)
}

// Client queries the external IP-reputation service.
type Client struct {
	endpoint string
	key      string
	deadline time.Duration
	http     *http.Client
}

// NewClient builds a reputation client from config.
func NewClient(cfg config.ReputationConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		key:      cfg.Key,
		deadline: cfg.Deadline(),
		http:     &http.Client{},
	}
}

type checkResponse struct {
	Data struct {
		AbuseConfidenceScore int `json:"abuseConfidenceScore"`
	} `json:"data"`
}

// Check issues one upstream request bounded by the configured deadline.
func (c *Client) Check(ctx context.Context, ip string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", maxAgeInDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Key", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: reputation service returned %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decoding reputation response: %v", model.ErrUpstreamUnavailable, err)
	}

	score := body.Data.AbuseConfidenceScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
