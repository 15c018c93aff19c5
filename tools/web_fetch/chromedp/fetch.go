package chromedp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/deepresearch/tools/web_fetch/models"
)

// Fetch owns one headless Chrome, started on first use, and opens a tab per
// call. Safe for concurrent use; Close on shutdown.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string

	once      sync.Once
	brCtx     context.Context
	cancelAll context.CancelFunc
	cancelBr  context.CancelFunc
}

func NewFetch(timeout time.Duration, userAgent string) *Fetch {
	return &Fetch{Timeout: timeout, UserAgent: userAgent}
}

func (f *Fetch) start() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)
	f.brCtx, f.cancelAll, f.cancelBr = bctx, cancelAlloc, cancelBr
}

// Close tears down Chrome resources.
func (f *Fetch) Close() {
	if f.cancelBr != nil {
		f.cancelBr()
	}
	if f.cancelAll != nil {
		f.cancelAll()
	}
}

func (f *Fetch) Exec(ctx context.Context, link string) (models.Result, error) {
	if strings.TrimSpace(link) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	f.once.Do(f.start)

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tabCtx, cancelTab := chromedp.NewContext(f.brCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	// the tab hangs off the browser context, so follow the caller's ctx too
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	t0 := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return models.Result{URL: link, Status: models.StatusUnreachable, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	sum := sha1.Sum([]byte(html))
	res := models.Result{URL: link, HTMLHash: hex.EncodeToString(sum[:]), Status: 200}
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(link))
	if err == nil {
		res.Title = strings.TrimSpace(article.Title)
		res.Byline = strings.TrimSpace(article.Byline)
		res.SiteName = article.SiteName
		res.Text = strings.TrimSpace(article.TextContent)
	}
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
