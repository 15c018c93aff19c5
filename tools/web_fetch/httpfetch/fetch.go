package httpfetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch/models"
)

// maxBody caps how much of a response is read before extraction.
const maxBody = 8 << 20

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Fetch is a plain HTTP GET backend with readability extraction. It does not
// execute JavaScript; use the chromedp backend for client-rendered pages.
type Fetch struct {
	Doer      Doer
	UserAgent string
}

func (f *Fetch) Exec(ctx context.Context, link string) (models.Result, error) {
	if strings.TrimSpace(link) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	target, err := url.Parse(link)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return models.Result{}, errors.New("invalid url")
	}
	doer := f.Doer
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	t0 := time.Now()
	elapsed := func() int { return int(time.Since(t0) / time.Millisecond) }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return models.Result{}, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := doer.Do(req)
	if err != nil {
		return models.Result{URL: link, Status: models.StatusUnreachable, RenderMS: elapsed()}, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return models.Result{URL: link, Status: models.StatusUnreachable, RenderMS: elapsed()}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Result{URL: link, Status: resp.StatusCode, RenderMS: elapsed()}, nil
	}

	sum := sha1.Sum(body)
	res := models.Result{
		URL:      link,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   resp.StatusCode,
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		res.Text = strings.TrimSpace(string(body))
		res.RenderMS = elapsed()
		return res, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), target)
	if err != nil {
		res.RenderMS = elapsed()
		return res, nil
	}
	res.Title = strings.TrimSpace(article.Title)
	res.Byline = strings.TrimSpace(article.Byline)
	res.SiteName = article.SiteName
	res.Text = strings.TrimSpace(article.TextContent)
	res.RenderMS = elapsed()
	return res, nil
}
