package headless

import (
	"context"
	"errors"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
)

// Noop implements fetch.Fetcher but always returns an error to indicate that
// headless browsing is not available in the current build.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ fetch.Request) (*fetch.Page, error) {
	return nil, errors.New("headless fetcher not configured")
}
