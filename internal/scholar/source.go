package scholar

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// Source reads author profiles on demand. It exists so callers holding only
// a profile URL (stored from an earlier run or supplied on the staff page)
// can pull interests and publications without going through the resolver.
type Source struct {
	client   PageFetcher
	pageSize int
	maxPages int
	log      *zap.Logger
}

// NewSource builds a Source. pageSize and maxPages bound each publication
// walk the same way NewCursor does.
func NewSource(client PageFetcher, pageSize, maxPages int, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{client: client, pageSize: pageSize, maxPages: maxPages, log: log}
}

// Interests fetches the profile page once and returns the declared research
// interests from its header. Resolver matches already carry interests from
// the search cards; this path serves staff-page-supplied profile links.
func (s *Source) Interests(ctx context.Context, profileURL string) ([]string, error) {
	page, err := s.client.Fetch(ctx, profileURL)
	if err != nil {
		return nil, fmt.Errorf("profile header: %w", err)
	}
	_, interests := ParseProfileHeader(page.Body)
	return interests, nil
}

// Publications drains a fresh cursor over the author's listing. On error the
// publications gathered so far are returned alongside it.
func (s *Source) Publications(ctx context.Context, profileURL string) ([]lecturer.Publication, error) {
	cursor := NewCursor(s.client, profileURL, s.pageSize, s.maxPages, s.log)
	return cursor.Collect(ctx)
}
