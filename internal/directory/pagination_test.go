package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
)

type stubPages struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func (s *stubPages) Fetch(_ context.Context, url string, _ ...string) (*fetch.Page, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, url)
	s.mu.Unlock()
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	body, ok := s.pages[url]
	if !ok {
		return nil, &fetch.FetchError{Kind: fetch.KindNetwork, URL: url, Err: errors.New("no fixture")}
	}
	return &fetch.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func (s *stubPages) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

const indexPageTwo = `<html><head><title>Our staff | page 2</title></head><body>
<table class="table-profiles"><tbody>
<tr><td class="title"><a href="/computing/staff/3/dr-grace-hopper">Dr Grace Hopper</a></td></tr>
<tr><td class="title"><a href="/computing/staff/2/dr-alan-turing">Dr Alan Turing</a></td></tr>
</tbody></table>
</body></html>`

var computing = School{
	Name:     "School of Computer Science",
	Faculty:  "Faculty of Engineering and Physical Sciences",
	StaffURL: indexPageURL,
}

func TestIndexDiscoverWalksPagination(t *testing.T) {
	t.Parallel()

	pages := &stubPages{pages: map[string]string{
		indexPageURL:             indexPageOne,
		indexPageURL + "?page=2": indexPageTwo,
	}}
	index := NewIndex(pages, nil, 0)

	stubs, err := index.Discover(context.Background(), computing)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(stubs) != 3 {
		t.Fatalf("got %d stubs; want 3 (turing deduplicated): %+v", len(stubs), stubs)
	}
	for _, stub := range stubs {
		if stub.School != computing.Name {
			t.Errorf("stub %q school = %q", stub.ProfileURL, stub.School)
		}
		if stub.Department != computing.Faculty {
			t.Errorf("stub %q department = %q", stub.ProfileURL, stub.Department)
		}
	}
	if pages.fetchCount() != 2 {
		t.Errorf("fetched %d pages; want 2", pages.fetchCount())
	}
}

func TestIndexDiscoverKeepsPartialResultsOnBlock(t *testing.T) {
	t.Parallel()

	pages := &stubPages{
		pages: map[string]string{indexPageURL: indexPageOne},
		errs: map[string]error{
			indexPageURL + "?page=2": &fetch.FetchError{
				Kind:   fetch.KindBlocked,
				URL:    indexPageURL + "?page=2",
				Signal: "challenge status 429",
			},
		},
	}
	index := NewIndex(pages, nil, 0)

	stubs, err := index.Discover(context.Background(), computing)
	if !fetch.IsBlocked(err) {
		t.Fatalf("err = %v; want blocked", err)
	}
	if len(stubs) != 2 {
		t.Errorf("got %d partial stubs; want the 2 from page one", len(stubs))
	}
}

func TestIndexDiscoverStopsOnLoop(t *testing.T) {
	t.Parallel()

	loopOne := "https://eps.leeds.ac.uk/maths/stafflist"
	loopTwo := loopOne + "?page=2"
	pageOne := `<html><head><link rel="next" href="?page=2"></head><body>
<table class="table-profiles"><tbody>
<tr><td class="title"><a href="/maths/staff/1/dr-emmy-noether">Dr Emmy Noether</a></td></tr>
</tbody></table></body></html>`
	pageTwo := `<html><head><link rel="next" href="` + loopOne + `"></head><body>
<table class="table-profiles"><tbody>
<tr><td class="title"><a href="/maths/staff/1/dr-emmy-noether">Dr Emmy Noether</a></td></tr>
</tbody></table></body></html>`

	pages := &stubPages{pages: map[string]string{loopOne: pageOne, loopTwo: pageTwo}}
	index := NewIndex(pages, nil, 0)

	stubs, err := index.Discover(context.Background(), School{Name: "School of Mathematics", StaffURL: loopOne})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if pages.fetchCount() != 2 {
		t.Errorf("fetched %d pages; want 2 (loop must stop)", pages.fetchCount())
	}
	if len(stubs) != 1 {
		t.Errorf("got %d stubs; want 1", len(stubs))
	}
}

func TestIndexDiscoverHonorsPageCeiling(t *testing.T) {
	t.Parallel()

	pages := &stubPages{pages: map[string]string{
		indexPageURL:             indexPageOne,
		indexPageURL + "?page=2": indexPageTwo,
	}}
	index := NewIndex(pages, nil, 1)

	stubs, err := index.Discover(context.Background(), computing)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if pages.fetchCount() != 1 {
		t.Errorf("fetched %d pages; want 1", pages.fetchCount())
	}
	if len(stubs) != 2 {
		t.Errorf("got %d stubs; want 2", len(stubs))
	}
}

func TestLookupSchool(t *testing.T) {
	t.Parallel()

	school, ok := LookupSchool("School of Computer Science")
	if !ok {
		t.Fatal("known school not found")
	}
	if school.StaffURL != "https://eps.leeds.ac.uk/computing/stafflist" {
		t.Errorf("staff url = %q", school.StaffURL)
	}
	if school.Faculty != "Faculty of Engineering and Physical Sciences" {
		t.Errorf("faculty = %q", school.Faculty)
	}

	if _, ok := LookupSchool("School of Time Travel"); ok {
		t.Error("unknown school should not resolve")
	}

	names := SchoolNames()
	if len(names) != len(Schools()) {
		t.Errorf("SchoolNames length %d != Schools length %d", len(names), len(Schools()))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
