package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coreturn/coreturn/internal/tool/ui"
)

const (
	braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"
	braveSearchEnvKey   = "BRAVE_API_KEY"
)

// WebSearchTool searches the web for up-to-date information via the Brave
// Search API. It is a single fixed backend, not a provider abstraction:
// the agent execution core has no retrieval/ranking layer of its own, so
// this tool is a thin client over one external API rather than a pluggable
// search subsystem.
type WebSearchTool struct{}

func (t *WebSearchTool) Name() string        { return "WebSearch" }
func (t *WebSearchTool) Description() string { return "Search the web for up-to-date information" }
func (t *WebSearchTool) Icon() string        { return ui.IconSearch }

type braveSearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveSearchResponse struct {
	Web struct {
		Results []braveSearchResult `json:"results"`
	} `json:"web"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any, cwd string) ui.ToolResult {
	start := time.Now()

	query, ok := params["query"].(string)
	if !ok || query == "" {
		return ui.NewErrorResult(t.Name(), "query is required")
	}

	numResults := 10
	if n, ok := params["num_results"].(float64); ok && n > 0 {
		numResults = int(n)
	}

	var allowedDomains, blockedDomains []string
	if domains, ok := params["allowed_domains"].([]any); ok {
		for _, d := range domains {
			if s, ok := d.(string); ok {
				allowedDomains = append(allowedDomains, s)
			}
		}
	}
	if domains, ok := params["blocked_domains"].([]any); ok {
		for _, d := range domains {
			if s, ok := d.(string); ok {
				blockedDomains = append(blockedDomains, s)
			}
		}
	}

	apiKey := os.Getenv(braveSearchEnvKey)
	if apiKey == "" {
		return ui.NewErrorResult(t.Name(), braveSearchEnvKey+" environment variable is not set")
	}

	results, err := braveSearch(ctx, apiKey, query, numResults, allowedDomains, blockedDomains)
	if err != nil {
		return ui.NewErrorResult(t.Name(), fmt.Sprintf("search failed: %v", err))
	}

	var sb strings.Builder
	if len(results) == 0 {
		sb.WriteString("No results found for: " + query)
	} else {
		sb.WriteString(fmt.Sprintf("Found %d results for: %s\n\n", len(results), query))
		for _, r := range results {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", r.Title, r.URL))
			if r.Description != "" {
				sb.WriteString(fmt.Sprintf("  %s\n\n", truncateSnippet(r.Description, 200)))
			}
		}
	}

	return ui.ToolResult{
		Success: true,
		Output:  sb.String(),
		Metadata: ui.ResultMetadata{
			Title:     t.Name(),
			Icon:      t.Icon(),
			Subtitle:  fmt.Sprintf("%s via Brave Search", query),
			ItemCount: len(results),
			Duration:  time.Since(start),
		},
	}
}

func braveSearch(ctx context.Context, apiKey, query string, numResults int, allowedDomains, blockedDomains []string) ([]braveSearchResult, error) {
	u, err := url.Parse(braveSearchEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", numResults))
	u.RawQuery = q.Encode()

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed braveSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]braveSearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if !matchesDomainFilter(r.URL, allowedDomains, blockedDomains) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func truncateSnippet(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + "..."
}

func matchesDomainFilter(rawURL string, allowed, blocked []string) bool {
	if len(allowed) == 0 && len(blocked) == 0 {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return len(allowed) == 0
	}
	host := strings.ToLower(parsed.Hostname())

	for _, b := range blocked {
		if strings.Contains(host, strings.ToLower(b)) {
			return false
		}
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.Contains(host, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func init() {
	Register(&WebSearchTool{})
}
