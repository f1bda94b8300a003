package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Fetcher is the shared HTTP client for adapters: bounded per request and
// rate-limited per host.
type Fetcher struct {
	client *resty.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
}

func NewFetcher(timeout time.Duration, reqPerSec float64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "jobmatch/1.0 (+https://github.com/markdave123-py/jobmatch)")

	rps := rate.Inf
	if reqPerSec > 0 {
		rps = rate.Limit(reqPerSec)
	}
	return &Fetcher{client: client, limiters: make(map[string]*rate.Limiter), rps: rps}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(f.rps, 1)
	f.limiters[host] = lim
	return lim
}

// GetJSON issues a GET and decodes the JSON body into out.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if err := f.limiterFor(u.Host).Wait(ctx); err != nil {
		return err
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u.Host, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: unexpected status %d", u.Host, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s payload: %w", u.Host, err)
	}
	return nil
}

// htmlToText flattens an HTML fragment into plain text, one block per line.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div, h1, h2, h3, h4, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
