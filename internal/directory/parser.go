package directory

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// Selectors the fetch layer should expect in a rendered page. Index pages
// carry the staff table, profile pages the underlined name heading.
const (
	StaffListSelector = "table.table-profiles"
	ProfileSelector   = "h1.heading-underline"
)

var expertiseSep = regexp.MustCompile(`[;,]`)

// ParseStaffList extracts profile stubs from one staff index page. Rows
// without a usable link are skipped; order is preserved and duplicate links
// collapsed. An empty result is not an error: the caller decides whether an
// empty index page is suspicious.
func ParseStaffList(body []byte, pageURL string) ([]lecturer.Stub, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &lecturer.ParseError{URL: pageURL, Reason: "invalid page url"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &lecturer.ParseError{URL: pageURL, Reason: "unparseable html"}
	}

	indexPath := stripQuery(pageURL)
	seen := make(map[string]struct{})
	var stubs []lecturer.Stub

	doc.Find("table.table-profiles tbody tr td.title a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || href == "#" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !strings.HasPrefix(abs, "http://") && !strings.HasPrefix(abs, "https://") {
			return
		}
		// Pagination links of the index itself occasionally leak into the
		// table; anything sharing the index path is not a profile.
		if abs == pageURL || stripQuery(abs) == indexPath {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		stubs = append(stubs, lecturer.Stub{
			ProfileURL: abs,
			Name:       collapseSpace(sel.Text()),
		})
	})

	return stubs, nil
}

// NextPageURL finds the next index page link. Resolution order: the
// <link rel="next"> head element, the pagination Next arrow, then the
// sibling of the active page marker. A candidate pointing back at the
// current page is rejected to avoid loops.
func NextPageURL(body []byte, pageURL string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	candidates := []func() string{
		func() string {
			href, _ := doc.Find(`link[rel="next"]`).First().Attr("href")
			return href
		},
		func() string {
			href, _ := doc.Find(`ul.pagination li a[aria-label="Next"]`).First().Attr("href")
			return href
		},
		func() string {
			active := doc.Find("ul.pagination li.active").First()
			if active.Length() == 0 {
				return ""
			}
			href, _ := active.Next().Find("a").First().Attr("href")
			return href
		},
	}

	for _, candidate := range candidates {
		href := strings.TrimSpace(candidate())
		if href == "" || href == "#" {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		next := base.ResolveReference(ref).String()
		if next == pageURL {
			continue
		}
		return next, true
	}
	return "", false
}

// ParseProfile extracts the structured fields from one staff profile page.
// Only a missing name is fatal; every other field is best-effort.
func ParseProfile(body []byte, profileURL string) (*lecturer.Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &lecturer.ParseError{URL: profileURL, Reason: "unparseable html"}
	}

	profile := &lecturer.Profile{
		Name: collapseSpace(doc.Find(ProfileSelector).First().Text()),
	}
	if profile.Name == "" {
		return nil, &lecturer.ParseError{URL: profileURL, Reason: "missing name heading"}
	}

	doc.Find("ul.list-facts li").Each(func(_ int, li *goquery.Selection) {
		txt := collapseSpace(li.Text())
		lower := strings.ToLower(txt)
		switch {
		case strings.HasPrefix(lower, "position:"):
			profile.Position = valueAfterColon(txt)
		case strings.HasPrefix(lower, "areas of expertise:"):
			profile.Expertise = splitExpertise(valueAfterColon(txt))
		case strings.HasPrefix(lower, "website"):
			li.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				href, _ := a.Attr("href")
				href = strings.TrimSpace(href)
				if strings.Contains(href, "scholar.google") {
					profile.ScholarURL = href
					return false
				}
				return true
			})
		}
	})

	var paragraphs []string
	doc.Find("div.cms p").Each(func(_ int, p *goquery.Selection) {
		if txt := collapseSpace(p.Text()); txt != "" {
			paragraphs = append(paragraphs, txt)
		}
	})
	profile.Bio = strings.Join(paragraphs, "\n\n")

	return profile, nil
}

func splitExpertise(raw string) []string {
	var out []string
	for _, part := range expertiseSep.Split(raw, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func valueAfterColon(txt string) string {
	if idx := strings.Index(txt, ":"); idx >= 0 {
		return strings.TrimSpace(txt[idx+1:])
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripQuery(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
