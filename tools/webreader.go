package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corewright/pilot/agenterr"
)

const webReaderSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "URL to fetch"},
		"prompt": {"type": "string", "description": "What to look for in the page (informational)"}
	},
	"required": ["url", "prompt"]
}`

const (
	webReaderTimeout   = 30 * time.Second
	cacheBucketSeconds = 900 // 15 minutes
	cacheEntries       = 128
	webReaderUserAgent = "Mozilla/5.0 (compatible; pilot-agent/1.0)"
)

type webReaderInput struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

var (
	webReaderCache     *lru.Cache[string, string]
	webReaderCacheOnce sync.Once
)

func readerCache() *lru.Cache[string, string] {
	webReaderCacheOnce.Do(func() {
		webReaderCache, _ = lru.New[string, string](cacheEntries)
	})
	return webReaderCache
}

func registerWebTools(r *Registry) {
	r.register(ToolWebSearch, "Search the web and return title/url/snippet results.", webSearchSchema, true, webSearchTool)
	r.register(ToolWebReader, "Fetch a URL and return its content as markdown.", webReaderSchema, true, webReaderTool)
}

// cacheKey buckets url by a 15-minute wall-clock window so repeat reads
// within the same window are served without a new upstream GET.
func cacheKey(url string, now time.Time) string {
	bucket := now.Unix() / cacheBucketSeconds
	return fmt.Sprintf("%d|%s", bucket, url)
}

func webReaderTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[webReaderInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.URL == "" {
		return agenterr.Validation("url is required").Error()
	}

	rawURL := params.URL
	if strings.HasPrefix(rawURL, "http://") {
		rawURL = "https://" + strings.TrimPrefix(rawURL, "http://")
	}

	key := cacheKey(rawURL, time.Now())
	cache := readerCache()
	if cached, ok := cache.Get(key); ok {
		return cached
	}

	fetchCtx, cancel := context.WithTimeout(ctx, webReaderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return agenterr.NotFound(fmt.Sprintf("invalid URL %s: %v", params.URL, err)).Error()
	}
	req.Header.Set("User-Agent", webReaderUserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not fetch %s: %v", params.URL, err)).Error()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not read response from %s: %v", params.URL, err)).Error()
	}

	markdown, err := md.ConvertString(string(body))
	if err != nil {
		markdown = string(body)
	}

	cache.Add(key, markdown)
	return markdown
}
