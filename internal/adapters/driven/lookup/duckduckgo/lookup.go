// Package duckduckgo provides a knowledge lookup adapter backed by the
// DuckDuckGo Instant Answer API.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/adapters/driven/transport"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Lookup implements the interface.
var _ driven.KnowledgeLookup = (*Lookup)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.duckduckgo.com"
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = 250 * time.Millisecond

	// maxPageBytes bounds how much of a fetched result page is read.
	maxPageBytes = 1 << 20

	// maxPageSnippet bounds the snippet taken from a fetched page.
	maxPageSnippet = 1500
)

// Config holds configuration for the DuckDuckGo lookup.
type Config struct {
	// BaseURL is the Instant Answer endpoint (default: https://api.duckduckgo.com).
	BaseURL string

	// RatePerSecond throttles outbound requests. Zero means one per second.
	RatePerSecond float64

	// FetchPages replaces short snippets with the stripped text of the result page.
	FetchPages bool

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// MaxAttempts is the total number of tries for transient failures.
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// Lookup queries DuckDuckGo for abstracts and related topics.
type Lookup struct {
	api         *transport.Client
	limiter     *rate.Limiter
	fetchPages  bool
	pages       driven.Normaliser
	maxAttempts int
	backoff     time.Duration
}

// instantAnswer is the subset of the Instant Answer response used here.
type instantAnswer struct {
	Heading        string  `json:"Heading"`
	AbstractText   string  `json:"AbstractText"`
	AbstractURL    string  `json:"AbstractURL"`
	AbstractSource string  `json:"AbstractSource"`
	Answer         string  `json:"Answer"`
	Definition     string  `json:"Definition"`
	DefinitionURL  string  `json:"DefinitionURL"`
	Results        []topic `json:"Results"`
	RelatedTopics  []topic `json:"RelatedTopics"`
}

// topic is either a result (Text, FirstURL) or a named group of results.
type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Name     string  `json:"Name"`
	Topics   []topic `json:"Topics"`
}

// New creates a DuckDuckGo lookup. pages strips fetched HTML when
// FetchPages is set; it may be nil otherwise.
func New(cfg Config, pages driven.Normaliser) *Lookup {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &Lookup{
		api:         transport.NewClient("duckduckgo", cfg.BaseURL, cfg.Timeout, domain.ErrLookupUnavailable),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		fetchPages:  cfg.FetchPages && pages != nil,
		pages:       pages,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Lookup returns up to limit results: the abstract first, then direct
// results, then related topics in the order DuckDuckGo lists them.
func (l *Lookup) Lookup(ctx context.Context, query string, limit int) ([]domain.LookupResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []domain.LookupResult{}, nil
	}

	var (
		answer *instantAnswer
		err    error
	)
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := l.backoff << (attempt - 1)
			logger.Debug("duckduckgo: retry %d after %v: %v", attempt, delay, err)
			if waitErr := sleep(ctx, delay); waitErr != nil {
				return nil, waitErr
			}
		}
		answer, err = l.query(ctx, query)
		if err == nil || !errors.Is(err, domain.ErrLookupUnavailable) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	results := collect(answer, limit)
	if l.fetchPages {
		l.enrich(ctx, results)
	}
	logger.Debug("duckduckgo: %d results for %q", len(results), query)
	return results, nil
}

func (l *Lookup) query(ctx context.Context, query string) (*instantAnswer, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var answer instantAnswer
	if err := l.api.Do(ctx, http.MethodGet, "/?"+params.Encode(), nil, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// collect flattens an answer into ranked results. DuckDuckGo reports no
// relevance, so every result scores 1.
func collect(answer *instantAnswer, limit int) []domain.LookupResult {
	results := make([]domain.LookupResult, 0, limit)
	seen := make(map[string]bool)

	add := func(title, link, snippet string) {
		snippet = strings.TrimSpace(snippet)
		if snippet == "" || len(results) >= limit {
			return
		}
		key := link + "\x00" + snippet
		if seen[key] {
			return
		}
		seen[key] = true
		if title == "" {
			title = titleFromText(snippet)
		}
		results = append(results, domain.LookupResult{
			Title:   title,
			URL:     link,
			Snippet: snippet,
			Score:   1,
		})
	}

	add(answer.Heading, answer.AbstractURL, answer.AbstractText)
	add(answer.Heading, "", answer.Answer)
	add(answer.Heading, answer.DefinitionURL, answer.Definition)

	var walk func(topics []topic)
	walk = func(topics []topic) {
		for _, t := range topics {
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			add("", t.FirstURL, t.Text)
		}
	}
	walk(answer.Results)
	walk(answer.RelatedTopics)

	return results
}

// titleFromText takes the lead phrase of a related-topic text, which
// DuckDuckGo formats as "Title - description".
func titleFromText(text string) string {
	if head, _, ok := strings.Cut(text, " - "); ok {
		return head
	}
	if head, cut := truncateRunes(text, 80); cut {
		return head + "..."
	}
	return text
}

// truncateRunes keeps at most n characters of text, never splitting one,
// and reports whether anything was dropped.
func truncateRunes(text string, n int) (string, bool) {
	if utf8.RuneCountInString(text) <= n {
		return text, false
	}
	return string([]rune(text)[:n]), true
}

// enrich replaces snippets with page text where the page is reachable.
// Fetch failures keep the original snippet.
func (l *Lookup) enrich(ctx context.Context, results []domain.LookupResult) {
	for i := range results {
		if results[i].URL == "" {
			continue
		}
		text, err := l.fetchPage(ctx, results[i].URL)
		if err != nil {
			logger.Debug("duckduckgo: fetch %s: %v", results[i].URL, err)
			continue
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(results[i].Snippet) {
			results[i].Snippet, _ = truncateRunes(text, maxPageSnippet)
		}
	}
}

func (l *Lookup) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := l.api.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	result, err := l.pages.Normalise(ctx, &domain.RawDocument{
		Filename: pageURL,
		FileType: "html",
		Content:  body,
	})
	if err != nil {
		return "", err
	}
	// The byte limit may have cut the last character.
	return strings.TrimSpace(strings.ToValidUTF8(result.Text, "")), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
