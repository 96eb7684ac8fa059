package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/corewright/pilot/agenterr"
)

const webSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Search query"},
		"allowed_domains": {"type": "array", "items": {"type": "string"}},
		"blocked_domains": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["query"]
}`

const (
	webSearchResultLimit = 10
	webSearchTimeout     = 15 * time.Second
	webSearchUserAgent   = "Mozilla/5.0 (compatible; pilot-agent/1.0)"
)

type webSearchInput struct {
	Query          string   `json:"query"`
	AllowedDomains []string `json:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains"`
}

// SearchResult is one hit returned by a SearchProvider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider abstracts the external web search backend. A nil Searcher
// on an ExecutionContext falls back to duckDuckGoSearch, which needs no API
// key and is grounded the same way as the rest of the pack's search tools.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

type duckDuckGoSearch struct {
	client *http.Client
}

func (d duckDuckGoSearch) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", webSearchUserAgent)

	client := d.client
	if client == nil {
		client = &http.Client{Timeout: webSearchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return extractDDGResults(string(body), count), nil
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func extractDDGResults(html string, count int) []SearchResult {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	if len(linkMatches) == 0 {
		return nil
	}
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	var results []SearchResult
	for i := 0; i < len(linkMatches) && i < count; i++ {
		rawURL := linkMatches[i][1]
		title := strings.TrimSpace(htmlTagRe.ReplaceAllString(linkMatches[i][2], ""))

		if strings.Contains(rawURL, "uddg=") {
			if u, err := url.QueryUnescape(rawURL); err == nil {
				if idx := strings.Index(u, "uddg="); idx != -1 {
					extracted := u[idx+5:]
					if ampIdx := strings.Index(extracted, "&"); ampIdx != -1 {
						extracted = extracted[:ampIdx]
					}
					rawURL = extracted
				}
			}
		}

		snippet := ""
		if i < len(snippetMatches) {
			snippet = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippetMatches[i][1], ""))
		}

		results = append(results, SearchResult{Title: title, URL: rawURL, Snippet: snippet})
	}
	return results
}

func webSearchTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[webSearchInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Query == "" {
		return agenterr.Validation("query is required").Error()
	}

	provider := ec.Searcher
	if provider == nil {
		provider = duckDuckGoSearch{}
	}

	searchCtx, cancel := context.WithTimeout(ctx, webSearchTimeout)
	defer cancel()

	results, err := provider.Search(searchCtx, params.Query, webSearchResultLimit)
	if err != nil {
		return fmt.Sprintf("Error: search failed: %v", err)
	}

	results = filterByDomain(results, params.AllowedDomains, params.BlockedDomains)
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## [%s](%s)\n\n%s", r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}

func filterByDomain(results []SearchResult, allowed, blocked []string) []SearchResult {
	if len(allowed) == 0 && len(blocked) == 0 {
		return results
	}
	var out []SearchResult
	for _, r := range results {
		if len(blocked) > 0 && containsAny(r.URL, blocked) {
			continue
		}
		if len(allowed) > 0 && !containsAny(r.URL, allowed) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsAny(url string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(url, s) {
			return true
		}
	}
	return false
}
