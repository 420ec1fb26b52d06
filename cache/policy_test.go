package cache

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxEntries != 100 {
		t.Errorf("MaxEntries = %d, want 100", p.MaxEntries)
	}
	if p.MaxAge != 24*time.Hour {
		t.Errorf("MaxAge = %v, want 24h", p.MaxAge)
	}
	if p.Eviction != EvictFIFO {
		t.Errorf("Eviction = %v, want fifo", p.Eviction)
	}
	if !p.ShouldCache() {
		t.Error("default policy should cache")
	}
	if NoCachePolicy().ShouldCache() {
		t.Error("NoCachePolicy should not cache")
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"no cache", NoCachePolicy(), false},
		{"negative entries", Policy{MaxEntries: -1, MaxAge: time.Hour}, true},
		{"negative age", Policy{MaxEntries: 1, MaxAge: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("error should wrap ErrInvalidPolicy: %v", err)
			}
		})
	}
}

func TestPolicy_Cacheable(t *testing.T) {
	prefixed := DefaultPolicy()
	prefixed.TargetPrefixes = []string{"GET https://api.example.com/", "POST https://api.example.com/v1/embeddings"}

	unsafeOK := DefaultPolicy()
	unsafeOK.AllowUnsafe = true

	tests := []struct {
		name   string
		policy Policy
		req    Request
		want   bool
	}{
		{"plain", DefaultPolicy(), Request{Target: "GET /a"}, true},
		{"streaming", DefaultPolicy(), Request{Target: "GET /a", Streaming: true}, false},
		{"unsafe tag", DefaultPolicy(), Request{Target: "GET /a", Tags: []string{"read", "Write"}}, false},
		{"unsafe allowed", unsafeOK, Request{Target: "GET /a", Tags: []string{"mutation"}}, true},
		{"streaming beats allow unsafe", unsafeOK, Request{Target: "GET /a", Streaming: true}, false},
		{"prefix match", prefixed, Request{Target: "GET https://api.example.com/models"}, true},
		{"second prefix", prefixed, Request{Target: "POST https://api.example.com/v1/embeddings"}, true},
		{"prefix miss", prefixed, Request{Target: "POST https://api.example.com/v1/chat"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Cacheable(tt.req); got != tt.want {
				t.Errorf("Cacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_FilterReplacesRules(t *testing.T) {
	p := DefaultPolicy()
	p.Filter = func(req Request) bool { return req.Target == "only-this" }

	if !p.Cacheable(Request{Target: "only-this", Streaming: true}) {
		t.Error("filter should override the streaming rule")
	}
	if p.Cacheable(Request{Target: "other"}) {
		t.Error("filter should reject other targets")
	}
}

func TestParseEvictionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EvictionPolicy
		wantErr bool
	}{
		{"", EvictFIFO, false},
		{"fifo", EvictFIFO, false},
		{"LRU", EvictLRU, false},
		{"lfu", EvictFIFO, true},
	}
	for _, tt := range tests {
		got, err := ParseEvictionPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEvictionPolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
	if EvictLRU.String() != "lru" || EvictFIFO.String() != "fifo" {
		t.Error("unexpected String() values")
	}
}
