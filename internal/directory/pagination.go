package directory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// PageFetcher is the slice of the fetch client the directory walker needs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, wantSelectors ...string) (*fetch.Page, error)
}

// Index walks a school's paginated staff list and accumulates profile stubs.
type Index struct {
	client   PageFetcher
	log      *zap.Logger
	maxPages int
}

// NewIndex builds a walker. maxPages of zero means unlimited; the
// visited-page guard still terminates cyclic pagination.
func NewIndex(client PageFetcher, log *zap.Logger, maxPages int) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{client: client, log: log, maxPages: maxPages}
}

// Discover walks the staff list starting at school.StaffURL and returns every
// profile stub found, tagged with the school and faculty. When a page fetch
// or parse fails the stubs gathered so far are returned alongside the error,
// so a block or outage partway through still yields usable work.
func (x *Index) Discover(ctx context.Context, school School) ([]lecturer.Stub, error) {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})
	var stubs []lecturer.Stub

	current := school.StaffURL
	for pageCount := 1; current != ""; pageCount++ {
		if x.maxPages > 0 && pageCount > x.maxPages {
			x.log.Warn("index page ceiling reached",
				zap.String("school", school.Name),
				zap.Int("max_pages", x.maxPages))
			break
		}
		if _, loop := visited[current]; loop {
			x.log.Warn("pagination loop detected",
				zap.String("school", school.Name),
				zap.String("url", current))
			break
		}
		visited[current] = struct{}{}

		page, err := x.client.Fetch(ctx, current, StaffListSelector)
		if err != nil {
			return stubs, fmt.Errorf("index page %s: %w", current, err)
		}
		pageStubs, err := ParseStaffList(page.Body, current)
		if err != nil {
			return stubs, err
		}

		added := 0
		for _, stub := range pageStubs {
			if _, dup := seen[stub.ProfileURL]; dup {
				continue
			}
			seen[stub.ProfileURL] = struct{}{}
			stub.School = school.Name
			stub.Department = school.Faculty
			stubs = append(stubs, stub)
			added++
		}
		x.log.Info("staff index page parsed",
			zap.String("school", school.Name),
			zap.String("url", current),
			zap.Int("page", pageCount),
			zap.Int("new_profiles", added),
			zap.Int("total_profiles", len(stubs)))

		next, ok := NextPageURL(page.Body, current)
		if !ok {
			break
		}
		current = next
	}
	return stubs, nil
}
