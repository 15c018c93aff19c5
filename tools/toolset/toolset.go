// Package toolset exposes web search and page fetch to research workers as
// two text-in, text-out capabilities.
package toolset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/metrics"
	fetchmodels "github.com/mohammad-safakhou/deepresearch/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/deepresearch/tools/web_search/models"
)

const (
	DefaultLimit    = 5
	DefaultMaxChars = 10000

	NoResults       = "No results found."
	TruncatedMarker = "\n\n[Content truncated...]"
	resultSeparator = "\n---\n"
)

// Toolset is shared by every worker and must be safe for concurrent use.
type Toolset interface {
	Search(ctx context.Context, query string, limit int) (string, error)
	Fetch(ctx context.Context, url string) (string, error)
}

// Searcher is satisfied by web_search.WebSearcher.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]searchmodels.Result, error)
}

// Fetcher is satisfied by web_fetch.WebFetcher.
type Fetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}

type Options struct {
	DefaultLimit int
	MaxChars     int
	Logger       *zap.Logger
}

// Tools formats provider results into model-facing text.
type Tools struct {
	searcher     Searcher
	fetcher      Fetcher
	defaultLimit int
	maxChars     int
	logger       *zap.Logger
}

func New(searcher Searcher, fetcher Fetcher, opts Options) *Tools {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxChars < 1 {
		opts.MaxChars = DefaultMaxChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{
		searcher:     searcher,
		fetcher:      fetcher,
		defaultLimit: opts.DefaultLimit,
		maxChars:     opts.MaxChars,
		logger:       logger.Named("toolset"),
	}
}

// FailedFetch is the text returned when a page yields no content.
func FailedFetch(url string) string { return "Failed to fetch " + url }

// IsSentinel reports whether out is one of the fixed no-content answers.
func IsSentinel(out string) bool {
	return out == NoResults || strings.HasPrefix(out, "Failed to fetch ")
}

// Search returns one block per result. A limit below 1 falls back to the
// default limit. Provider errors are returned to the caller.
func (t *Tools) Search(ctx context.Context, query string, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("search: empty query")
	}
	if limit < 1 {
		limit = t.defaultLimit
	}
	results, err := t.searcher.Discover(ctx, query, limit)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("search", "error").Inc()
		t.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return "", fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		metrics.ToolCalls.WithLabelValues("search", "empty").Inc()
		return NoResults, nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		blocks = append(blocks, fmt.Sprintf("## %s\nURL: %s\n%s\n", title, r.URL, r.Snippet))
	}
	metrics.ToolCalls.WithLabelValues("search", "ok").Inc()
	t.logger.Debug("search done", zap.String("query", query), zap.Int("results", len(results)))
	return strings.Join(blocks, resultSeparator), nil
}

// Fetch returns the readable text of url, cut at the configured maximum with
// a truncation marker. Pages that cannot be read yield the failed-fetch text;
// only cancellation of ctx is returned as an error.
func (t *Tools) Fetch(ctx context.Context, url string) (string, error) {
	res, err := t.fetcher.Exec(ctx, url)
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ToolCalls.WithLabelValues("fetch", "error").Inc()
		return "", fmt.Errorf("fetch %s: %w", url, ctxErr)
	}
	if err != nil || !res.OK() {
		metrics.ToolCalls.WithLabelValues("fetch", "empty").Inc()
		t.logger.Debug("fetch yielded no content", zap.String("url", url), zap.Int("status", res.Status), zap.Error(err))
		return FailedFetch(url), nil
	}
	metrics.ToolCalls.WithLabelValues("fetch", "ok").Inc()
	return Truncate(res.Text, t.maxChars), nil
}

// Truncate cuts s to maxChars characters and appends TruncatedMarker when
// anything was removed.
func Truncate(s string, maxChars int) string {
	if maxChars < 1 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i] + TruncatedMarker
		}
		n++
	}
	return s
}
