package pipeline

import (
	"context"
	"time"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/classify"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/directory"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/scholar"
)

// Discoverer walks one school's staff index into profile stubs.
type Discoverer interface {
	Discover(ctx context.Context, school directory.School) ([]lecturer.Stub, error)
}

// ProfileFetcher fetches one staff profile page.
type ProfileFetcher interface {
	Fetch(ctx context.Context, url string, wantSelectors ...string) (*fetch.Page, error)
}

// AuthorResolver finds a lecturer's publication profile by name.
type AuthorResolver interface {
	Resolve(ctx context.Context, name string) (scholar.Resolution, error)
}

// PublicationSource reads interests and publications from a known author
// profile URL.
type PublicationSource interface {
	Interests(ctx context.Context, profileURL string) ([]string, error)
	Publications(ctx context.Context, profileURL string) ([]lecturer.Publication, error)
}

// Classifier applies the relevance policy to one text unit.
type Classifier interface {
	Classify(ctx context.Context, text string) (classify.Verdict, error)
	ClassifyInterest(ctx context.Context, interest string) (classify.Verdict, error)
	ClassifyTitle(ctx context.Context, title string) (classify.Verdict, error)
}

// Publisher pushes pipeline events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
