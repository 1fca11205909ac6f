package fulfillment

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Business is one search hit.
type Business struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type searchResponse struct {
	Results []Business `json:"results"`
}

// SearchClient queries the business directory service.
type SearchClient struct {
	url     string
	timeout time.Duration
}

// NewSearchClient returns a client for the directory at url.
func NewSearchClient(url string, timeout time.Duration) *SearchClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SearchClient{url: strings.TrimRight(url, "/"), timeout: timeout}
}

// Search returns up to limit businesses matching query.
func (c *SearchClient) Search(ctx context.Context, query string, limit int) ([]Business, error) {
	if c.url == "" {
		return nil, ErrUnavailable
	}
	timeout, err := timeoutFor(ctx, c.timeout)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	a := fiber.Get(c.url)
	a.QueryString(q.Encode()).Timeout(timeout)

	var out searchResponse
	code, body, errs := a.Struct(&out)
	if err := agentError("search service", code, body, errs); err != nil {
		return nil, err
	}
	if limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}
	return out.Results, nil
}
