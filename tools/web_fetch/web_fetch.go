package web_fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "deepresearch/1.0 (+https://github.com/mohammad-safakhou/deepresearch)"
)

// WebFetcher retrieves a page and extracts its readable text. Implementations
// report unreachable pages through Result.Status rather than an error.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

type Error struct {
	Message string
}

func (e *Error) Error() string { return "web_fetch: " + e.Message }

var ErrUnsupportedFetcher = &Error{"unsupported fetcher type"}

// NewWebFetcher builds a fetch backend. The returned closer releases browser
// resources for the chromedp backend and is a no-op otherwise.
func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, userAgent string) (WebFetcher, func(), error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return &httpfetch.Fetch{Doer: &http.Client{Timeout: timeout}, UserAgent: userAgent}, func() {}, nil
	case ChromedpFetcherType:
		f := chromedp.NewFetch(timeout, userAgent)
		return f, f.Close, nil
	default:
		return nil, nil, ErrUnsupportedFetcher
	}
}
