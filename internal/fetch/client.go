package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/identity"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
)

// ClientConfig wires the collaborators a Client needs. Static and Identities
// are required; everything else falls back to a sensible default.
type ClientConfig struct {
	Static     Fetcher
	Headless   Fetcher
	Identities *identity.Pool
	Retry      RetryPolicy
	Detector   *BlockDetector
	CoolDown   *CoolDown
	Limiter    *HostLimiter
	Heuristic  *RenderHeuristic
	Logger     *zap.Logger
}

// Client is the single entry point for page acquisition. Every fetch draws
// one identity from the pool, respects the per-host rate and any active
// cool-down, retries transient transport failures with jittered backoff,
// and inspects each response for challenge pages before handing it back.
type Client struct {
	static     Fetcher
	headless   Fetcher
	identities *identity.Pool
	retry      RetryPolicy
	detector   *BlockDetector
	cooldown   *CoolDown
	limiter    *HostLimiter
	heuristic  *RenderHeuristic
	logger     *zap.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Static == nil {
		return nil, errors.New("fetch client requires a static fetcher")
	}
	if cfg.Identities == nil {
		return nil, errors.New("fetch client requires an identity pool")
	}
	if cfg.Retry == nil {
		cfg.Retry = NewExponentialRetryPolicy(0, 0, 0)
	}
	if cfg.Detector == nil {
		cfg.Detector = NewBlockDetector()
	}
	if cfg.CoolDown == nil {
		cfg.CoolDown = NewCoolDown(0, 0, 0)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewHostLimiter(0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		static:     cfg.Static,
		headless:   cfg.Headless,
		identities: cfg.Identities,
		retry:      cfg.Retry,
		detector:   cfg.Detector,
		cooldown:   cfg.CoolDown,
		limiter:    cfg.Limiter,
		heuristic:  cfg.Heuristic,
		logger:     cfg.Logger,
	}, nil
}

// Fetch retrieves rawURL. The identity pool advances exactly one slot per
// call; retries reuse the same identity so a transient failure does not
// burn through the rotation. Challenge detections return a KindBlocked
// FetchError after arming the cool-down, and once the escalation ceiling is
// crossed the error additionally wraps ErrBlockCeiling.
func (c *Client) Fetch(ctx context.Context, rawURL string, wantSelectors ...string) (*Page, error) {
	host := Host(rawURL)
	if err := c.cooldown.Wait(ctx); err != nil {
		return nil, fmt.Errorf("cool-down wait: %w", err)
	}
	if err := c.limiter.Wait(ctx, host); err != nil {
		return nil, fmt.Errorf("rate wait for %s: %w", host, err)
	}

	ident := c.identities.Next(host)
	req := Request{
		URL:           rawURL,
		Headers:       ident.Headers(),
		Proxy:         ident.Proxy,
		WantSelectors: wantSelectors,
	}

	page, err := c.fetchWithRetry(ctx, host, req)
	if err != nil {
		return nil, err
	}
	page, err = c.inspect(host, page)
	if err != nil {
		return nil, err
	}
	return c.maybeRender(ctx, host, req, page)
}

func (c *Client) fetchWithRetry(ctx context.Context, host string, req Request) (*Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := c.static.Fetch(ctx, req)
		if err == nil && page.StatusCode >= http.StatusInternalServerError && !c.looksBlocked(page) {
			err = fmt.Errorf("server error %d from %s", page.StatusCode, host)
		} else if err == nil {
			return page, nil
		}
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt+1) {
			break
		}
		metrics.ObserveRetry(host)
		c.logger.Warn("retrying fetch",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if werr := c.sleep(ctx, c.retry.Backoff(attempt)); werr != nil {
			return nil, werr
		}
	}
	return nil, &FetchError{Kind: KindNetwork, URL: req.URL, Err: lastErr}
}

// looksBlocked lets 5xx challenge bodies skip the transient-error retry path
// so they reach the detector instead.
func (c *Client) looksBlocked(page *Page) bool {
	return c.detector.Inspect(page.StatusCode, page.Body).Blocked
}

func (c *Client) inspect(host string, page *Page) (*Page, error) {
	decision := c.detector.Inspect(page.StatusCode, page.Body)
	if !decision.Blocked {
		c.cooldown.OnSuccess()
		metrics.ObserveFetch(host, page.StatusCode, page.Duration)
		return page, nil
	}

	metrics.ObserveBlock(host)
	ceilingErr := c.cooldown.OnBlocked()
	window := c.cooldown.Window()
	metrics.ObserveCooldown(window)
	c.logger.Warn("challenge page detected",
		zap.String("url", page.URL),
		zap.Int("status", page.StatusCode),
		zap.String("signal", decision.Signal),
		zap.Duration("cooldown", window),
		zap.Int("escalations", c.cooldown.Escalations()))
	return nil, &FetchError{
		Kind:       KindBlocked,
		URL:        page.URL,
		StatusCode: page.StatusCode,
		Signal:     decision.Signal,
		Err:        ceilingErr,
	}
}

// maybeRender escalates to the headless fetcher when the static body shows
// signs of client-side rendering. A headless failure falls back to the
// static page rather than failing the task.
func (c *Client) maybeRender(ctx context.Context, host string, req Request, page *Page) (*Page, error) {
	if c.headless == nil || c.heuristic == nil {
		return page, nil
	}
	render, reason := c.heuristic.ShouldRender(page, req.WantSelectors...)
	if !render {
		return page, nil
	}
	c.logger.Info("escalating to headless fetch",
		zap.String("url", req.URL),
		zap.String("reason", reason))

	rendered, err := c.headless.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("headless fetch failed, keeping static page",
			zap.String("url", req.URL),
			zap.Error(err))
		return page, nil
	}
	rendered.UsedHeadless = true
	rendered, err = c.inspect(host, rendered)
	if err != nil {
		return nil, err
	}
	return rendered, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
