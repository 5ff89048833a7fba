// Package search fetches web results that the research stage folds into its prompt.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to n ordered results. Failures yield an empty slice.
type Searcher interface {
	Search(ctx context.Context, query string, n int) []Result
}

type Config struct {
	Provider string
	Endpoint string
	APIKey   string
}

const defaultTimeout = 15 * time.Second

// New builds the searcher named by cfg.Provider.
func New(cfg Config, log *zap.Logger) (Searcher, error) {
	client := &http.Client{Timeout: defaultTimeout}
	switch strings.ToLower(cfg.Provider) {
	case "", "serpapi":
		return NewSerpAPI(cfg.Endpoint, cfg.APIKey, client, log), nil
	case "duckduckgo":
		return NewDuckDuckGo(cfg.Endpoint, client, log), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}

// FormatResults renders results one per line as "title: snippet (link)".
func FormatResults(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.Link))
	}
	return strings.Join(lines, "\n")
}

func absolute(base, href string) string {
	u, err := url.Parse(href)
	if err != nil || href == "" {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}
