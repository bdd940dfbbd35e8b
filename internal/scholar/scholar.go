// Package scholar resolves lecturers against the Google Scholar author
// index and walks their publication listings.
package scholar

import (
	"context"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
)

// BaseURL is the citations endpoint used for author search and profiles.
const BaseURL = "https://scholar.google.com/citations"

// PageFetcher is the slice of the fetch client this package needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, wantSelectors ...string) (*fetch.Page, error)
}
