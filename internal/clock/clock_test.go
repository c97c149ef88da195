package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if !f.Now().Equal(start) {
		t.Fatalf("now %v", f.Now())
	}
	f.Advance(90 * time.Second)
	if !f.Now().Equal(start.Add(90 * time.Second)) {
		t.Fatalf("now %v after advance", f.Now())
	}
	f.Set(start)
	if !f.Now().Equal(start) {
		t.Fatalf("now %v after set", f.Now())
	}
}

func TestSystemTracksRealTime(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	if got.Before(before) {
		t.Fatalf("system clock went backwards: %v < %v", got, before)
	}
}
