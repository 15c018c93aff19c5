package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/helpers"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search/models"
)

const Endpoint = "https://api.search.brave.com/res/v1/web/search"

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Search struct {
	APIKey   string
	Doer     Doer
	Endpoint string
}

// Discover returns up to k results for q. k is clamped to [1,20], the
// largest page Brave serves.
func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("brave: empty query")
	}
	if k < 1 || k > 20 {
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

	params := url.Values{}
	params.Set("q", strings.TrimSpace(q))
	params.Set("count", strconv.Itoa(k))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("brave %d: %s", resp.StatusCode, msg)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("brave: decode: %w", err)
	}
	out := make([]models.Result, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Title:   helpers.SanitizeHTMLStrict(r.Title),
			URL:     r.URL,
			Snippet: helpers.SanitizeHTMLStrict(r.Description),
		})
	}
	return out, nil
}
