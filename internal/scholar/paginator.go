package scholar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// Cursor walks an author's publication listing one page at a time. It is
// single-use: a stopped cursor stays stopped, and resuming a partial walk
// means starting a fresh cursor from the beginning.
type Cursor struct {
	client     PageFetcher
	profileURL string
	pageSize   int
	maxPages   int
	log        *zap.Logger

	offset int
	pages  int
	done   bool
	seen   map[string]struct{}
}

// NewCursor builds a cursor over the publication listing at profileURL.
// pageSize defaults to 100 rows, maxPages to 10; maxPages <= 0 means
// unlimited.
func NewCursor(client PageFetcher, profileURL string, pageSize, maxPages int, log *zap.Logger) *Cursor {
	if pageSize <= 0 {
		pageSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cursor{
		client:     client,
		profileURL: profileURL,
		pageSize:   pageSize,
		maxPages:   maxPages,
		log:        log,
		seen:       make(map[string]struct{}),
	}
}

// Next fetches the next listing page and returns the publications on it that
// have not been seen before, deduplicated by title and year. It returns
// (nil, nil) once the listing is exhausted: after a short page, a page with
// no new rows, a disabled show-more control, or the page ceiling. A fetch
// failure stops the cursor and is returned to the caller.
func (c *Cursor) Next(ctx context.Context) ([]lecturer.Publication, error) {
	if c.done {
		return nil, nil
	}
	if c.maxPages > 0 && c.pages >= c.maxPages {
		c.done = true
		c.log.Warn("publication listing hit page ceiling",
			zap.String("profile_url", c.profileURL),
			zap.Int("max_pages", c.maxPages))
		return nil, nil
	}

	pageURL, err := c.pageURL()
	if err != nil {
		c.done = true
		return nil, err
	}
	page, err := c.client.Fetch(ctx, pageURL, "tr.gsc_a_tr")
	if err != nil {
		c.done = true
		return nil, fmt.Errorf("publications page %d: %w", c.pages+1, err)
	}

	rows, hasMore := ParsePublications(page.Body)
	c.pages++
	c.offset += len(rows)

	var fresh []lecturer.Publication
	for _, pub := range rows {
		key := pub.Key()
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		fresh = append(fresh, pub)
	}

	if len(rows) < c.pageSize || !hasMore {
		c.done = true
	}
	if len(fresh) == 0 {
		c.done = true
		return nil, nil
	}
	return fresh, nil
}

// Collect drains the cursor. On error the publications gathered so far are
// returned alongside it.
func (c *Cursor) Collect(ctx context.Context) ([]lecturer.Publication, error) {
	var all []lecturer.Publication
	for {
		batch, err := c.Next(ctx)
		if err != nil {
			return all, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
	}
}

func (c *Cursor) pageURL() (string, error) {
	u, err := url.Parse(c.profileURL)
	if err != nil {
		return "", fmt.Errorf("profile url %q: %w", c.profileURL, err)
	}
	q := u.Query()
	q.Set("cstart", strconv.Itoa(c.offset))
	q.Set("pagesize", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
