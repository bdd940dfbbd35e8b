// Package identity manages the rotating request identities used by the
// fetch layer. A single pool is shared by all workers; handing out the next
// identity is atomic, and the same identity is never used on two consecutive
// requests to the same host.
package identity

import (
	"fmt"
	"net/http"
	"sync"
)

// Identity is one browser persona: the headers it presents and, optionally,
// the proxy its traffic is routed through.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
	Proxy          string
}

// Headers returns the request headers this identity presents.
func (id Identity) Headers() http.Header {
	h := http.Header{}
	if id.UserAgent != "" {
		h.Set("User-Agent", id.UserAgent)
	}
	if id.AcceptLanguage != "" {
		h.Set("Accept-Language", id.AcceptLanguage)
	}
	return h
}

// Pool rotates identities round-robin. Every call to Next consumes one
// rotation slot, whether or not the fetch it feeds succeeds.
type Pool struct {
	mu         sync.Mutex
	identities []Identity
	cursor     int
	lastByHost map[string]int
}

// NewPool builds a Pool from the given identities, in order. Order is
// significant so tests can pin a deterministic sequence.
func NewPool(identities []Identity) (*Pool, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("identity pool requires at least one identity")
	}
	pool := &Pool{
		identities: make([]Identity, len(identities)),
		lastByHost: make(map[string]int),
	}
	copy(pool.identities, identities)
	return pool, nil
}

// Next pops the next identity for a request to host. With more than one
// identity in the pool the same identity is never returned twice in a row
// for one host; a single-identity pool always returns it.
func (p *Pool) Next(host string) Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.cursor % len(p.identities)
	p.cursor++
	if len(p.identities) > 1 {
		if last, seen := p.lastByHost[host]; seen && last == idx {
			idx = p.cursor % len(p.identities)
			p.cursor++
		}
	}
	p.lastByHost[host] = idx
	return p.identities[idx]
}

// Size reports how many identities the pool rotates over.
func (p *Pool) Size() int {
	return len(p.identities)
}

// Default returns the built-in browser identity set used when the
// configuration does not supply one.
func Default() []Identity {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/605.1.15 (Version/16.5 Safari/605.1.15)",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (Version/17.4 Mobile/15E148 Safari/604.1)",
		"Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/24.0 Chrome/121.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Brave/122",
	}
	identities := make([]Identity, 0, len(userAgents))
	for _, ua := range userAgents {
		identities = append(identities, Identity{
			UserAgent:      ua,
			AcceptLanguage: "en-GB,en;q=0.9",
		})
	}
	return identities
}
