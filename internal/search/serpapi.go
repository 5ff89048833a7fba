package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"sage/internal/logger"
)

const serpAPIEndpoint = "https://serpapi.com/search"

type SerpAPI struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *zap.Logger
}

func NewSerpAPI(endpoint, apiKey string, client *http.Client, log *zap.Logger) *SerpAPI {
	if endpoint == "" {
		endpoint = serpAPIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &SerpAPI{endpoint: endpoint, apiKey: apiKey, client: client, log: logger.OrNop(log).Named("serpapi")}
}

type serpResponse struct {
	OrganicResults []Result `json:"organic_results"`
}

func (s *SerpAPI) Search(ctx context.Context, query string, n int) []Result {
	results, err := s.search(ctx, query, n)
	if err != nil {
		s.log.Error("SerpAPI error", zap.String("query", query), zap.Error(err))
		return []Result{}
	}
	return results
}

func (s *SerpAPI) search(ctx context.Context, query string, n int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(n))
	params.Set("engine", "google")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", s.redact(err))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", s.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	results := body.OrganicResults
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// redact strips the query string, which carries the API key, from URL errors.
func (s *SerpAPI) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = s.endpoint
	}
	return err
}
