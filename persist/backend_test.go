package persist

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/respcache/cache"
)

func sampleState() *cache.State {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &cache.State{
		Entries: []cache.Entry{
			{Key: "k1", Query: "POST /v1/chat", Response: []byte(`{"a":1}`), Timestamp: base, Size: 7, Hits: 2},
			{Key: "k2", Query: "GET /v1/models", Response: []byte("plain"), Timestamp: base.Add(time.Second), Size: 5},
			{Key: "k3", Query: "GET /v1/empty", Response: []byte{}, Timestamp: base.Add(2 * time.Second)},
		},
		HitCount:  9,
		MissCount: 4,
	}
}

func assertStateEqual(t *testing.T, got, want *cache.State) {
	t.Helper()

	if got == nil {
		t.Fatal("state = nil")
	}
	if got.HitCount != want.HitCount || got.MissCount != want.MissCount {
		t.Errorf("counters = %d/%d, want %d/%d", got.HitCount, got.MissCount, want.HitCount, want.MissCount)
	}
	if len(got.Entries) != len(want.Entries) {
		t.Fatalf("len(Entries) = %d, want %d", len(got.Entries), len(want.Entries))
	}
	for i := range want.Entries {
		g, w := got.Entries[i], want.Entries[i]
		if g.Key != w.Key || g.Query != w.Query || string(g.Response) != string(w.Response) {
			t.Errorf("entry %d = %q/%q/%q, want %q/%q/%q", i, g.Key, g.Query, g.Response, w.Key, w.Query, w.Response)
		}
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("entry %d timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
		if g.Size != w.Size || g.Hits != w.Hits {
			t.Errorf("entry %d size/hits = %d/%d, want %d/%d", i, g.Size, g.Hits, w.Size, w.Hits)
		}
	}
}

// testBackend runs the behavior every backend shares. b must start empty.
func testBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		st, err := b.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if st != nil {
			t.Errorf("Load() = %+v, want nil", st)
		}
	})

	t.Run("round trip keeps order", func(t *testing.T) {
		want := sampleState()
		if err := b.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := b.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		assertStateEqual(t, got, want)
	})

	t.Run("save replaces", func(t *testing.T) {
		smaller := sampleState()
		smaller.Entries = smaller.Entries[2:]
		smaller.HitCount = 0
		if err := b.Save(ctx, smaller); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := b.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		assertStateEqual(t, got, smaller)
	})

	t.Run("empty state saves", func(t *testing.T) {
		if err := b.Save(ctx, &cache.State{MissCount: 1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := b.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil || len(got.Entries) != 0 || got.MissCount != 1 {
			t.Errorf("Load() = %+v, want no entries and 1 miss", got)
		}
	})
}
