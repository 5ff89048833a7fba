package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmldom "golang.org/x/net/html"
	"go.uber.org/zap"

	"sage/internal/logger"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML results page.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func NewDuckDuckGo(endpoint string, client *http.Client, log *zap.Logger) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &DuckDuckGo{endpoint: endpoint, client: client, log: logger.OrNop(log).Named("duckduckgo")}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) []Result {
	results, err := d.search(ctx, query, n)
	if err != nil {
		d.log.Error("DuckDuckGo error", zap.String("query", query), zap.Error(err))
		return []Result{}
	}
	return results
}

func (d *DuckDuckGo) search(ctx context.Context, query string, n int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; sage/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return parseResults(doc, d.endpoint, n), nil
}

func parseResults(doc *goquery.Document, base string, n int) []Result {
	out := make([]Result, 0, n)
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= n {
			return false
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		out = append(out, Result{
			Title:   collapse(nodeText(a)),
			Link:    resolveRedirect(absolute(base, href)),
			Snippet: collapse(nodeText(s.Find(".result__snippet").First())),
		})
		return true
	})
	return out
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

// nodeText concatenates text nodes under the selection, separating elements with spaces.
func nodeText(sel *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *htmldom.Node)
	walk = func(n *htmldom.Node) {
		if n.Type == htmldom.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == htmldom.ElementNode {
			sb.WriteByte(' ')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
