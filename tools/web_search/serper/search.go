package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/helpers"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/models"
)

const Endpoint = "https://google.serper.dev/search"

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Search struct {
	APIKey   string
	Doer     Doer   // inject http.Client for tests/timeouts
	Endpoint string // defaults to Endpoint
}

// Discover returns up to k organic results for q. k is clamped to [1,25].
// Non-200s return an error with a truncated body.
func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("serper: empty query")
	}
	if k < 1 || k > 25 {
		k = 10
	}
	doer := s.Doer
	if doer == nil {
		doer = &http.Client{Timeout: 20 * time.Second}
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = Endpoint
	}

	body, err := json.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("serper: decode: %w", err)
	}
	out := make([]models.Result, 0, len(parsed.Organic))
	for i, r := range parsed.Organic {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Title:   helpers.SanitizeHTMLStrict(r.Title),
			URL:     r.Link,
			Snippet: helpers.SanitizeHTMLStrict(r.Snippet),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
