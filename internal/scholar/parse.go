package scholar

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/lecturer"
)

// Candidate is one entry from an author-search results page.
type Candidate struct {
	Name        string
	ProfileURL  string
	Affiliation string
	Interests   []string
}

var authorSep = regexp.MustCompile(`\s*,\s*|\s+and\s+`)

// ParseAuthorSearch extracts author candidates from a search results page.
// Entries without a profile link are skipped; an empty result set means the
// query found nobody, which is a valid outcome.
func ParseAuthorSearch(body []byte, pageURL string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &lecturer.ParseError{URL: pageURL, Reason: "unparseable author search page"}
	}

	var candidates []Candidate
	doc.Find(".gs_ai_chpr").Each(func(_ int, result *goquery.Selection) {
		nameLink := result.Find(".gs_ai_name a").First()
		href, ok := nameLink.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		candidate := Candidate{
			Name:        collapseSpace(nameLink.Text()),
			ProfileURL:  "https://scholar.google.com" + strings.TrimSpace(href),
			Affiliation: collapseSpace(result.Find(".gs_ai_aff").First().Text()),
		}
		result.Find(".gs_ai_one_int").Each(func(_ int, interest *goquery.Selection) {
			if txt := collapseSpace(interest.Text()); txt != "" {
				candidate.Interests = append(candidate.Interests, txt)
			}
		})
		candidates = append(candidates, candidate)
	})
	return candidates, nil
}

// ParseProfileHeader extracts the affiliation line and declared interests
// from the top of an author profile page.
func ParseProfileHeader(body []byte) (affiliation string, interests []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}
	affiliation = collapseSpace(doc.Find("#gsc_prf_i .gsc_prf_il").First().Text())
	doc.Find("#gsc_prf_int a").Each(func(_ int, interest *goquery.Selection) {
		if txt := collapseSpace(interest.Text()); txt != "" {
			interests = append(interests, txt)
		}
	})
	return affiliation, interests
}

// ParsePublications extracts the publication rows present in body. Rows
// without a title are skipped. hasMore reports whether the listing offers a
// further page (the show-more control is present and enabled).
func ParsePublications(body []byte) (pubs []lecturer.Publication, hasMore bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	doc.Find("tr.gsc_a_tr").Each(func(_ int, row *goquery.Selection) {
		title := collapseSpace(row.Find("a.gsc_a_at").First().Text())
		if title == "" {
			return
		}
		pub := lecturer.Publication{
			Title:   title,
			Year:    parseYear(row.Find(".gsc_a_y span").First().Text()),
			Authors: SplitAuthors(row.Find("td.gsc_a_t div.gs_gray").First().Text()),
		}
		pubs = append(pubs, pub)
	})

	more := doc.Find("#gsc_bpf_more").First()
	if more.Length() > 0 {
		_, disabled := more.Attr("disabled")
		hasMore = !disabled
	}
	return pubs, hasMore
}

// SplitAuthors splits a rendered author line ("J Doe, A Smith and B Lee")
// into individual names.
func SplitAuthors(raw string) []string {
	raw = collapseSpace(raw)
	if raw == "" {
		return nil
	}
	var authors []string
	for _, part := range authorSep.Split(raw, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}

func parseYear(raw string) int {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return year
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
