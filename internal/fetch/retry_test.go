package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "synthetic net error" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	testCases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"generic error", errors.New("boom"), 1, true},
		{"generic error mid budget", errors.New("boom"), 2, true},
		{"budget exhausted", errors.New("boom"), 3, false},
		{"context canceled", context.Canceled, 1, false},
		{"wrapped cancellation", fmt.Errorf("visit: %w", context.Canceled), 1, false},
		{"deadline exceeded", context.DeadlineExceeded, 1, false},
		{"net timeout", timeoutErr{timeout: true}, 1, true},
		{"net non-timeout", timeoutErr{timeout: false}, 1, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.ShouldRetry(tc.err, tc.attempt); got != tc.want {
				t.Errorf("ShouldRetry(%v, %d) = %v; want %v", tc.err, tc.attempt, got, tc.want)
			}
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	maxDelay := 400 * time.Millisecond
	p := NewExponentialRetryPolicy(5, base, maxDelay)

	for attempt := 0; attempt < 5; attempt++ {
		expected := float64(base) * math.Pow(2, float64(attempt))
		if expected > float64(maxDelay) {
			expected = float64(maxDelay)
		}
		got := p.Backoff(attempt)
		if got < time.Duration(expected/2) || got > time.Duration(expected) {
			t.Errorf("Backoff(%d) = %v; want within [%v, %v]",
				attempt, got, time.Duration(expected/2), time.Duration(expected))
		}
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	if !p.ShouldRetry(errors.New("boom"), 2) {
		t.Error("expected default budget to allow a second retry")
	}
	if p.ShouldRetry(errors.New("boom"), 3) {
		t.Error("expected default budget to stop at three attempts")
	}
	if got := p.Backoff(0); got < 125*time.Millisecond || got > 250*time.Millisecond {
		t.Errorf("Backoff(0) = %v; want within default base bounds", got)
	}
}
