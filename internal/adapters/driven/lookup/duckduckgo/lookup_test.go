package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/normalisers/html"
)

const sampleAnswer = `{
	"Heading": "Go (programming language)",
	"AbstractText": "Go is a statically typed, compiled programming language.",
	"AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
	"Results": [],
	"RelatedTopics": [
		{"Text": "Goroutine - A lightweight thread managed by the Go runtime.", "FirstURL": "https://duckduckgo.com/Goroutine"},
		{"Name": "See also", "Topics": [
			{"Text": "Rob Pike - Canadian programmer.", "FirstURL": "https://duckduckgo.com/Rob_Pike"},
			{"Text": "Ken Thompson - American computer scientist.", "FirstURL": "https://duckduckgo.com/Ken_Thompson"}
		]}
	]
}`

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:       baseURL,
		RatePerSecond: 1000,
		Backoff:       time.Millisecond,
	}
}

func TestLookup_RanksAbstractThenTopics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(sampleAnswer))
	}))
	defer server.Close()

	results, err := New(testConfig(server.URL), nil).Lookup(context.Background(), "golang", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Go (programming language)", results[0].Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(programming_language)", results[0].URL)
	assert.Equal(t, "Goroutine", results[1].Title)
	assert.Equal(t, "Rob Pike", results[2].Title)
	for _, r := range results {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestLookup_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Heading":"","AbstractText":"","RelatedTopics":[]}`))
	}))
	defer server.Close()

	results, err := New(testConfig(server.URL), nil).Lookup(context.Background(), "zzzz", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestLookup_EmptyQuery(t *testing.T) {
	results, err := New(testConfig("http://127.0.0.1:1"), nil).Lookup(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLookup_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleAnswer))
	}))
	defer server.Close()

	results, err := New(testConfig(server.URL), nil).Lookup(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookup_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := New(testConfig(server.URL), nil).Lookup(context.Background(), "golang", 5)
	assert.ErrorIs(t, err, domain.ErrLookupUnavailable)
	assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())
}

func TestLookup_PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(testConfig(server.URL), nil).Lookup(context.Background(), "golang", 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLookupUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_FetchPages(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Page</title></head><body><p>A much longer page body that explains goroutines in detail.</p><script>var x = 1;</script></body></html>`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"RelatedTopics":[{"Text":"Goroutine - short","FirstURL":"` + server.URL + `/page"}]}`))
	})

	cfg := testConfig(server.URL)
	cfg.FetchPages = true

	results, err := New(cfg, html.New()).Lookup(context.Background(), "goroutine", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Snippet, "explains goroutines in detail")
	assert.NotContains(t, results[0].Snippet, "var x")
}

func TestLookup_FetchPages_TruncatesOnCharacters(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	page := "a" + strings.Repeat("é", 2000)
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>" + page + "</p></body></html>"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"RelatedTopics":[{"Text":"Accent - short","FirstURL":"` + server.URL + `/page"}]}`))
	})

	cfg := testConfig(server.URL)
	cfg.FetchPages = true

	results, err := New(cfg, html.New()).Lookup(context.Background(), "accent", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	snippet := results[0].Snippet
	assert.True(t, utf8.ValidString(snippet))
	assert.Equal(t, maxPageSnippet, utf8.RuneCountInString(snippet))
	assert.True(t, strings.HasPrefix(snippet, "aé"))
}

func TestLookup_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig("http://127.0.0.1:1"), nil).Lookup(ctx, "golang", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTitleFromText(t *testing.T) {
	assert.Equal(t, "Goroutine", titleFromText("Goroutine - A lightweight thread"))
	assert.Equal(t, "No separator", titleFromText("No separator"))

	long := titleFromText(strings.Repeat("日本", 50))
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, strings.Repeat("日本", 40)+"...", long)
}
