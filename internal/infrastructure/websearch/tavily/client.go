package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://api.tavily.com"

// Client queries the Tavily search API. Calls run through the resilience
// executor so a flapping search backend trips its own breaker instead of
// slowing every chat request down to the retry ceiling.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(apiKey string, executor *resilience.Executor) *Client {
	return NewWithBaseURL(defaultBaseURL, apiKey, executor)
}

func NewWithBaseURL(baseURL, apiKey string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	var results []domain.WebResult
	call := func(ctx context.Context) error {
		var err error
		results, err = c.search(ctx, query, maxResults)
		return err
	}

	if c.executor == nil {
		if err := call(ctx); err != nil {
			return nil, err
		}
		return results, nil
	}
	if err := c.executor.Execute(ctx, "tavily_search", call); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	reqBody, err := json.Marshal(map[string]any{
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tavily search status: %s", resp.Status)
	}

	var searchResp struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.WebResult, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		out = append(out, domain.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}
