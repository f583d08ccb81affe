package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTavilyBaseURL is the production Tavily API endpoint.
const DefaultTavilyBaseURL = "https://api.tavily.com"

// TavilyOptions configures the Tavily provider.
type TavilyOptions struct {
	// BaseURL of the Tavily API, overridable for tests.
	BaseURL string

	// SearchDepth is "basic" or "advanced".
	SearchDepth string

	// HTTPClient used for API calls.
	HTTPClient *http.Client
}

// TavilyProvider implements Provider against the Tavily search API.
type TavilyProvider struct {
	apiKey      string
	baseURL     string
	searchDepth string
	httpClient  *http.Client
}

// NewTavilyProvider constructs a Tavily backed search provider.
func NewTavilyProvider(apiKey string, optFns ...func(o *TavilyOptions)) *TavilyProvider {
	opts := TavilyOptions{
		BaseURL:     DefaultTavilyBaseURL,
		SearchDepth: "advanced",
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &TavilyProvider{
		apiKey:      apiKey,
		baseURL:     opts.BaseURL,
		searchDepth: opts.SearchDepth,
		httpClient:  opts.HTTPClient,
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Provider.
func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("tavily api key not configured")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      p.apiKey,
		Query:       query,
		SearchDepth: p.searchDepth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, data)
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}

	return results, nil
}
