package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCoolDownEscalation(t *testing.T) {
	t.Parallel()

	c := NewCoolDown(time.Minute, 4*time.Minute, 5)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	wantWindows := []time.Duration{
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		4 * time.Minute,
	}
	for i, want := range wantWindows {
		if err := c.OnBlocked(); err != nil {
			t.Fatalf("OnBlocked #%d: %v", i+1, err)
		}
		if got := c.Window(); got != want {
			t.Errorf("window after block %d = %v; want %v", i+1, got, want)
		}
	}
	if got := c.Escalations(); got != len(wantWindows) {
		t.Errorf("escalations = %d; want %d", got, len(wantWindows))
	}
}

func TestCoolDownCeiling(t *testing.T) {
	t.Parallel()

	c := NewCoolDown(time.Millisecond, time.Second, 2)
	if err := c.OnBlocked(); err != nil {
		t.Fatalf("first block: %v", err)
	}
	if err := c.OnBlocked(); err != nil {
		t.Fatalf("second block: %v", err)
	}
	err := c.OnBlocked()
	if !errors.Is(err, ErrBlockCeiling) {
		t.Fatalf("third block err = %v; want ErrBlockCeiling", err)
	}
}

func TestCoolDownResetOnSuccess(t *testing.T) {
	t.Parallel()

	c := NewCoolDown(time.Minute, 4*time.Minute, 3)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	if err := c.OnBlocked(); err != nil {
		t.Fatal(err)
	}
	if err := c.OnBlocked(); err != nil {
		t.Fatal(err)
	}
	c.OnSuccess()

	if got := c.Escalations(); got != 0 {
		t.Errorf("escalations after success = %d; want 0", got)
	}
	if got := c.Window(); got != 0 {
		t.Errorf("window after success = %v; want 0", got)
	}

	// The next block starts the ladder from the base window again.
	if err := c.OnBlocked(); err != nil {
		t.Fatal(err)
	}
	if got := c.Window(); got != time.Minute {
		t.Errorf("window after reset = %v; want %v", got, time.Minute)
	}
}

func TestCoolDownWait(t *testing.T) {
	t.Parallel()

	c := NewCoolDown(20*time.Millisecond, 100*time.Millisecond, 5)
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("wait with no window: %v", err)
	}

	if err := c.OnBlocked(); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("wait returned after %v; want roughly the armed window", elapsed)
	}

	if err := c.OnBlocked(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wait with canceled ctx = %v; want context.Canceled", err)
	}
}
