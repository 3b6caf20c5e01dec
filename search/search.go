// Package search wraps the Google Custom Search API for the !search chat
// command. Results are condensed into a single chat-friendly line per hit.
package search

import (
	"context"
	"fmt"
	"strings"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// NotConfigured is the reply when the search keys are absent.
const NotConfigured = "Search is not configured."

const maxResults = 3

// Client performs web searches against a configured custom search engine.
type Client struct {
	APIKey   string
	EngineID string

	// newService is swapped in tests.
	newService func(ctx context.Context, opts ...option.ClientOption) (*customsearch.Service, error)
}

// NewClient builds a client; APIKey or EngineID may be empty, in which case
// Search returns NotConfigured.
func NewClient(apiKey, engineID string) *Client {
	return &Client{APIKey: apiKey, EngineID: engineID, newService: customsearch.NewService}
}

// Search runs the query and formats the top results, one per line as
// "title: link".
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c.APIKey == "" || c.EngineID == "" {
		return NotConfigured, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "Give me something to search for!", nil
	}
	svc, err := c.newService(ctx, option.WithAPIKey(c.APIKey))
	if err != nil {
		return "", fmt.Errorf("create search service: %w", err)
	}
	resp, err := svc.Cse.List().Cx(c.EngineID).Q(query).Num(maxResults).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	if len(resp.Items) == 0 {
		return fmt.Sprintf("No results for %q.", query), nil
	}
	lines := make([]string, 0, maxResults)
	for i, item := range resp.Items {
		if i >= maxResults {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", item.Title, item.Link))
	}
	return strings.Join(lines, "\n"), nil
}
