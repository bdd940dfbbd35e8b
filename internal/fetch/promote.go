package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// spaKeywords mark pages whose content arrives via client-side rendering.
var spaKeywords = []string{
	"window.__initial_state__",
	"window.__nuxt__",
	"__next_data__",
	"data-reactroot",
	"ng-version",
}

// RenderHeuristic decides whether a statically fetched page needs a second
// pass through a JavaScript-capable fetcher.
type RenderHeuristic struct {
	minHTMLBytes int
	keywords     [][]byte
}

// NewRenderHeuristic constructs a heuristic with the configured minimum body
// size. Zero or negative disables the size signal.
func NewRenderHeuristic(minBytes int) *RenderHeuristic {
	keywords := make([][]byte, 0, len(spaKeywords))
	for _, kw := range spaKeywords {
		keywords = append(keywords, []byte(kw))
	}
	return &RenderHeuristic{
		minHTMLBytes: minBytes,
		keywords:     keywords,
	}
}

// ShouldRender inspects a fetched page for signals that the interesting
// content was never in the static response. wantSelectors are the CSS
// selectors the caller expected to find.
func (h *RenderHeuristic) ShouldRender(page *Page, wantSelectors ...string) (bool, string) {
	if h == nil || page == nil || page.UsedHeadless {
		return false, ""
	}
	if h.minHTMLBytes > 0 && len(page.Body) < h.minHTMLBytes {
		return true, fmt.Sprintf("body %d bytes below %d", len(page.Body), h.minHTMLBytes)
	}
	if kw := h.matchKeyword(page.Body); kw != "" {
		return true, fmt.Sprintf("client-render keyword %q", kw)
	}
	if sel := h.missingSelector(page.Body, wantSelectors); sel != "" {
		return true, fmt.Sprintf("missing selector %q", sel)
	}
	return false, ""
}

func (h *RenderHeuristic) matchKeyword(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range h.keywords {
		if bytes.Contains(lowerBody, kw) {
			return string(kw)
		}
	}
	return ""
}

func (h *RenderHeuristic) missingSelector(body []byte, selectors []string) string {
	if len(selectors) == 0 || len(body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "unparseable document"
	}
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return sel
		}
	}
	return ""
}
