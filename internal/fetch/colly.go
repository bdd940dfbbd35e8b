package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher retrieves pages over plain HTTP. A fresh collector is built
// per request because identity headers and proxies change between calls;
// per-proxy transports are cached so connection pools survive rotation.
type CollyFetcher struct {
	timeout time.Duration

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// NewCollyFetcher builds a fetcher with the given request timeout.
func NewCollyFetcher(timeout time.Duration) *CollyFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CollyFetcher{
		timeout:    timeout,
		transports: make(map[string]*http.Transport),
	}
}

// Fetch retrieves the requested URL. Error statuses are delivered as pages,
// not errors, so callers can inspect challenge bodies; only transport-level
// failures return an error.
func (f *CollyFetcher) Fetch(ctx context.Context, req Request) (*Page, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.timeout)
	transport, err := f.transport(req.Proxy)
	if err != nil {
		return nil, err
	}
	if transport != nil {
		c.WithTransport(transport)
	}

	var (
		page     *Page
		fetchErr error
	)
	start := time.Now()

	c.OnRequest(func(r *colly.Request) {
		for key, values := range req.Headers {
			if len(values) == 0 {
				continue
			}
			// Set, not Add: the collector injects its own defaults.
			r.Headers.Set(key, values[0])
		}
	})
	c.OnResponse(func(r *colly.Response) {
		final := req.URL
		if r.Request != nil && r.Request.URL != nil {
			final = r.Request.URL.String()
		}
		page = &Page{
			URL:        req.URL,
			FinalURL:   final,
			StatusCode: r.StatusCode,
			Headers:    cloneHeader(r.Headers),
			Body:       r.Body,
			Duration:   time.Since(start),
			FetchedAt:  start,
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", req.URL, err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(req.URL); err != nil {
			fetchErr = fmt.Errorf("visit %s: %w", req.URL, err)
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("fetch %s: no response received", req.URL)
	}
	return page, nil
}

func (f *CollyFetcher) transport(proxy string) (*http.Transport, error) {
	if proxy == "" {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transports[proxy]; ok {
		return t, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy %q: %w", proxy, err)
	}
	t := &http.Transport{
		Proxy:               http.ProxyURL(u),
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	f.transports[proxy] = t
	return t, nil
}

func cloneHeader(h *http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	clone := h.Clone()
	if clone == nil {
		clone = http.Header{}
	}
	return clone
}
