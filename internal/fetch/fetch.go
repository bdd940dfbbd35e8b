// Package fetch implements the resilient acquisition layer: rotating request
// identities, bounded retry with jittered backoff, structural challenge-page
// detection, and a shared cool-down that pauses every worker after a block.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request carries everything needed to fetch one URL. WantSelectors are
// CSS selectors the caller expects in the rendered document; when a static
// fetch misses them the client may escalate to a headless fetch.
type Request struct {
	URL           string
	Headers       http.Header
	Proxy         string
	WantSelectors []string
}

// Page is the result of a successful fetch.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	FetchedAt    time.Time
	UsedHeadless bool
}

// Fetcher retrieves a single page. Implementations must honor ctx.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Page, error)
}

// ErrorKind distinguishes the failure classes callers branch on.
type ErrorKind int

const (
	// KindNetwork marks transport failures that survived the retry budget.
	KindNetwork ErrorKind = iota + 1
	// KindBlocked marks a detected challenge page.
	KindBlocked
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// FetchError is returned by the Client for failures the pipeline reports
// per task instead of aborting the batch.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Signal     string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s fetch failed for %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Signal != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Signal)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrBlockCeiling signals that consecutive blocks exhausted the escalation
// budget and the current task must abort with whatever it has collected.
var ErrBlockCeiling = errors.New("block escalation ceiling reached")

// IsBlocked reports whether err stems from a detected challenge page.
func IsBlocked(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == KindBlocked
	}
	return errors.Is(err, ErrBlockCeiling)
}

// IsNetwork reports whether err is an exhausted-retries transport failure.
func IsNetwork(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindNetwork
}

// Host extracts a lowercase hostname from rawURL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
