package web_search

import (
	"context"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/deepresearch/tools/web_search/brave"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/models"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/serper"
)

// WebSearcher returns up to k results for q.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

type Error struct {
	Message string
}

func (e *Error) Error() string { return "web_search: " + e.Message }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// NewWebSearcher builds a provider client. A zero timeout keeps the provider
// default of 20 seconds.
func NewWebSearcher(provider Provider, apiKey string, timeout time.Duration) (WebSearcher, error) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	doer := &http.Client{Timeout: timeout}
	switch provider {
	case SerperProvider:
		return serper.Search{APIKey: apiKey, Doer: doer}, nil
	case BraveProvider:
		return brave.Search{APIKey: apiKey, Doer: doer}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
