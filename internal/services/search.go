// internal/services/search.go
package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
)

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Title string `json:"title" validate:"required"`
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
	Type  string `json:"type,omitempty"`
}

// SearchResult is the decoded reply of the search suggestions endpoint.
type SearchResult struct {
	Query       string        `json:"query"`
	Suggestions []Suggestion  `json:"suggestions" validate:"dive"`
	Status      int           `json:"status"`
	Latency     time.Duration `json:"latency"`
}

// SearchService queries the search suggestions endpoint.
type SearchService struct {
	client *Client
	path   string
}

func NewSearchService(client *Client, path string) *SearchService {
	return &SearchService{client: client, path: path}
}

// Search fetches suggestions for query. An empty query is sent as-is; the
// service decides what that means.
func (s *SearchService) Search(ctx context.Context, query string) (*SearchResult, error) {
	resp, err := s.client.Get(ctx, s.path, url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}

	suggestions, err := decodeSuggestions(s.path, resp.Body)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Query:       query,
		Suggestions: suggestions,
		Status:      resp.Status,
		Latency:     resp.Latency,
	}
	if err := validateContract(s.path, result); err != nil {
		return nil, err
	}
	return result, nil
}

type rawSuggestion struct {
	Title string     `json:"title"`
	Name  string     `json:"name"`
	Query string     `json:"q"`
	ID    flexString `json:"id"`
	URL   string     `json:"url"`
	Type  string     `json:"type"`
}

// suggestionKeys are the list fields seen across versions of the endpoint.
var suggestionKeys = []string{"suggestions", "data", "products"}

// decodeSuggestions accepts the list at the root or under "response".
func decodeSuggestions(endpoint string, body []byte) ([]Suggestion, error) {
	var root map[string]json.RawMessage
	if err := decodeBody(endpoint, body, &root); err != nil {
		return nil, err
	}
	if inner, ok := root["response"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(inner, &nested) == nil {
			root = nested
		}
	}

	for _, key := range suggestionKeys {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var items []rawSuggestion
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &SchemaError{Endpoint: endpoint, Field: key, Err: err}
		}
		out := make([]Suggestion, 0, len(items))
		for _, it := range items {
			out = append(out, Suggestion{
				Title: firstNonEmpty(it.Title, it.Name, it.Query),
				ID:    string(it.ID),
				URL:   it.URL,
				Type:  it.Type,
			})
		}
		return out, nil
	}
	return []Suggestion{}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
