// Package websearch exposes web search as a research tool. The search
// backend sits behind the Provider interface; the packaged implementation
// talks to the Tavily search API.
package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/tool"
)

// DefaultMaxResults bounds how many results a search returns.
const DefaultMaxResults = 5

// snippetChars caps the content excerpt rendered per result.
const snippetChars = 500

// Result is a single web search hit.
type Result struct {
	Title   string
	URL     string
	Content string
}

// Provider performs web searches. Implementations must be safe for
// concurrent use.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Options configures the web search tool.
type Options struct {
	// MaxResults per search.
	MaxResults int
}

// searchArgs documents the tool's parameter schema.
type searchArgs struct {
	Query string `json:"query" description:"The search query" required:"true"`
}

// New builds the web_search tool over the given provider. Results are
// rendered as numbered blocks with title, URL and a capped content snippet so
// the analyst can cite sources.
func New(provider Provider, optFns ...func(o *Options)) *tool.FunctionTool {
	opts := Options{MaxResults: DefaultMaxResults}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionToolFromStruct(
		"web_search",
		"Search the public web for current information not present in the provided files.",
		searchArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, fmt.Errorf("query must not be empty")
			}

			results, err := provider.Search(toolCtx.Context(), query, opts.MaxResults)
			if err != nil {
				return nil, fmt.Errorf("web search for %q: %w", query, err)
			}

			if len(results) == 0 {
				return fmt.Sprintf("No web search results found for query: %q", query), nil
			}

			return formatResults(results), nil
		})
}

func formatResults(results []Result) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf(
			"Result %d:\n  Title: %s\n  URL: %s\n  Content Snippet: %s",
			i+1, orNA(r.Title), orNA(r.URL), snippet(r.Content)))
	}
	return strings.Join(blocks, "\n---\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func snippet(content string) string {
	if content == "" {
		return "N/A"
	}
	runes := []rune(content)
	if len(runes) <= snippetChars {
		return content
	}
	return string(runes[:snippetChars]) + "..."
}
