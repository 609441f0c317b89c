package live

import (
	"testing"

	"hls-live/internal/hls"
)

func TestInMemoryStore_GetSetDelete(t *testing.T) {
	store := NewInMemoryStore()

	if _, ok := store.GetStream(camKey); ok {
		t.Error("expected not found for empty store")
	}

	app, err := hls.NewApplication("live", defaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	st := newStreamState(camKey, app)
	store.SetStream(st)

	got, ok := store.GetStream(camKey)
	if !ok || got != st {
		t.Errorf("GetStream: ok=%v, got %p want %p", ok, got, st)
	}
	if keys := store.ListStreamKeys(); len(keys) != 1 || keys[0] != camKey {
		t.Errorf("ListStreamKeys = %v", keys)
	}

	store.DeleteStream(camKey)
	if _, ok := store.GetStream(camKey); ok {
		t.Error("stream still present after delete")
	}
}

func TestInMemoryStore_SetStream_replaces(t *testing.T) {
	store := NewInMemoryStore()
	st1 := &StreamState{Key: camKey}
	st2 := &StreamState{Key: camKey}
	store.SetStream(st1)
	store.SetStream(st2)

	got, ok := store.GetStream(camKey)
	if !ok || got != st2 {
		t.Errorf("SetStream should replace: got %p want %p", got, st2)
	}
}
