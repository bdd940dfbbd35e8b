package fetch

import (
	"strings"
	"testing"
)

func TestShouldRenderShortBody(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(512)
	page := &Page{StatusCode: 200, Body: []byte("<html><body></body></html>")}
	render, reason := h.ShouldRender(page)
	if !render {
		t.Fatal("expected short body to trigger rendering")
	}
	if !strings.Contains(reason, "below") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestShouldRenderClientSideKeyword(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(64)
	body := strings.Repeat("<p>filler content</p>", 50) +
		`<script>window.__NUXT__={state:{}}</script>`
	render, reason := h.ShouldRender(&Page{StatusCode: 200, Body: []byte(body)})
	if !render {
		t.Fatal("expected client-render keyword to trigger rendering")
	}
	if !strings.Contains(reason, "keyword") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestShouldRenderMissingSelector(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(16)
	body := strings.Repeat("<p>static but empty of staff rows</p>", 20)
	render, reason := h.ShouldRender(
		&Page{StatusCode: 200, Body: []byte(body)},
		"table.table-profiles",
	)
	if !render {
		t.Fatal("expected missing selector to trigger rendering")
	}
	if !strings.Contains(reason, "table.table-profiles") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestShouldRenderCompletePage(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(16)
	render, reason := h.ShouldRender(
		&Page{StatusCode: 200, Body: []byte(staffPage)},
		"table.table-profiles",
	)
	if render {
		t.Errorf("complete page should not render headlessly, got reason %q", reason)
	}
}

func TestShouldRenderSkipsHeadlessPages(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(4096)
	page := &Page{StatusCode: 200, Body: []byte("tiny"), UsedHeadless: true}
	if render, _ := h.ShouldRender(page); render {
		t.Error("already-rendered page must not re-render")
	}
}

func TestShouldRenderNilReceiver(t *testing.T) {
	t.Parallel()

	var h *RenderHeuristic
	if render, _ := h.ShouldRender(&Page{Body: []byte("x")}); render {
		t.Error("nil heuristic must never request rendering")
	}
}
