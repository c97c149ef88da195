package storage

import (
	"encoding/json"
	"testing"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMem()
	if !s.Set("k", payload{Name: "focus", Count: 3}) {
		t.Fatal("set failed")
	}
	var got payload
	if !s.Get("k", &got) || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}

	s.Remove("k")
	if s.Get("k", &got) {
		t.Fatal("value survived remove")
	}
}

func TestMemStoreFailWrites(t *testing.T) {
	s := NewMem()
	s.FailWrites = true
	if s.Set("k", payload{}) {
		t.Fatal("write accepted with FailWrites set")
	}
	var got payload
	if s.Get("k", &got) {
		t.Fatal("failed write landed")
	}
}

func TestMemStoreNotifies(t *testing.T) {
	s := NewMem()
	var changes []Change
	cancel := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Set("k", payload{})
	s.Inject("k", json.RawMessage(`{"name":"other"}`))
	s.Remove("k")

	want := []Change{
		{Key: "k"},
		{Key: "k", External: true},
		{Key: "k", Removed: true},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes %+v", changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}

	cancel()
	s.Set("k", payload{})
	if len(changes) != len(want) {
		t.Fatal("cancelled subscriber still notified")
	}
}

func TestMemStoreInjectPlantsRawValue(t *testing.T) {
	s := NewMem()
	s.Inject("k", json.RawMessage(`{"name":"planted","count":7}`))
	var got payload
	if !s.Get("k", &got) || got.Name != "planted" || got.Count != 7 {
		t.Fatalf("got %+v", got)
	}

	s.Inject("bad", json.RawMessage(`{torn`))
	if s.Get("bad", &got) {
		t.Fatal("corrupt injected value reported usable")
	}
}
