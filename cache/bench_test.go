package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkStore_Hit measures lookup cost on a populated store.
func BenchmarkStore_Hit(b *testing.B) {
	s := NewStore(nil)
	s.Put(Entry{Key: "key", Response: []byte("value"), Timestamp: time.Now()})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Hit("key")
	}
}

// BenchmarkStore_PutEvicting measures insert cost when every insert evicts.
func BenchmarkStore_PutEvicting(b *testing.B) {
	s := NewStore(&Evictor{MaxEntries: 100, MaxAge: time.Hour})
	now := time.Now()
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Put(Entry{Key: keys[i%len(keys)], Timestamp: now})
	}
}

// BenchmarkKeyer_Map measures key derivation for a typical JSON body.
func BenchmarkKeyer_Map(b *testing.B) {
	keyer := NewDefaultKeyer()
	body := map[string]any{
		"model":       "m",
		"temperature": 0.2,
		"messages": []any{
			map[string]any{"role": "user", "content": "hello"},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = keyer.Key("POST /v1/chat", body)
	}
}

// BenchmarkInterceptor_Hit measures the full hit path.
func BenchmarkInterceptor_Hit(b *testing.B) {
	ctx := context.Background()
	ic, _ := NewInterceptor(ctx, InterceptorConfig{Policy: DefaultPolicy()})
	fetch := func(context.Context) ([]byte, error) { return []byte("v"), nil }
	req := Request{Target: "GET /models"}
	_, _ = ic.Handle(ctx, req, fetch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ic.Handle(ctx, req, fetch)
	}
}

// BenchmarkInterceptor_Parallel measures contention on one hot key.
func BenchmarkInterceptor_Parallel(b *testing.B) {
	ctx := context.Background()
	ic, _ := NewInterceptor(ctx, InterceptorConfig{Policy: DefaultPolicy()})
	fetch := func(context.Context) ([]byte, error) { return []byte("v"), nil }
	req := Request{Target: "GET /models"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = ic.Handle(ctx, req, fetch)
		}
	})
}
