package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/vibematch/internal/db"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = clk.now
	return s, clk
}

func TestGetSet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("error = %v, want ErrKeyNotFound", err)
	}

	val := []byte("hello")
	if err := s.SetWithTTL(ctx, "k", val, time.Minute); err != nil {
		t.Fatal(err)
	}
	val[0] = 'j'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, stored value aliases caller slice", got)
	}

	got[0] = 'x'
	again, _ := s.Get(ctx, "k")
	if string(again) != "hello" {
		t.Errorf("got %q, returned value aliases store", again)
	}
}

func TestTTLExpiry(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "short", []byte("1"), time.Second)
	_ = s.SetWithTTL(ctx, "forever", []byte("2"), 0)

	clk.t = clk.t.Add(2 * time.Second)

	if _, err := s.Get(ctx, "short"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("short: error = %v, want ErrKeyNotFound", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("forever: unexpected error %v", err)
	}
}

func TestSweep(t *testing.T) {
	s, clk := newTestStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "a", []byte("1"), time.Second)
	_ = s.SetWithTTL(ctx, "b", []byte("2"), time.Hour)

	clk.t = clk.t.Add(time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if n := s.Sweep(); n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
	if _, err := s.Get(ctx, "b"); err != nil {
		t.Errorf("b: unexpected error %v", err)
	}
}

func TestClose(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "b", []byte("1"), 0)
	s.Close()
	if _, err := s.Get(ctx, "b"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("after Close: error = %v, want ErrKeyNotFound", err)
	}
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	s, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
