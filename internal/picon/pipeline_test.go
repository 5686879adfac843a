package picon

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu    sync.Mutex
	body  map[string][]byte
	err   map[string]error
	calls map[string]int
	delay time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{body: map[string][]byte{}, err: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) PiconURLFor(ref string) string { return "http://receiver/picon/" + ref + ".png" }

func (f *fakeFetcher) FetchPicon(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	f.calls[ref]++
	body, err, delay := f.body[ref], f.err[ref], f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *fakeFetcher) callCount(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

func TestPipeline_cachesSuccess(t *testing.T) {
	f := newFakeFetcher()
	f.body["1:0:1"] = pngBytes(t, solid(50, 50, color.NRGBA{R: 255, A: 255}))
	p := NewPipeline(f, 0)
	ctx := context.Background()

	first, ok := p.Get(ctx, "1:0:1")
	if !ok {
		t.Fatal("want picon")
	}
	second, ok := p.Get(ctx, "1:0:1")
	if !ok || second != first {
		t.Fatal("second Get should return the cached value")
	}
	if n := f.callCount("1:0:1"); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if v, ok := p.Lookup("1:0:1"); !ok || v != first {
		t.Error("Lookup should see the cached value")
	}
}

func TestPipeline_failureNotCached(t *testing.T) {
	f := newFakeFetcher()
	f.err["1:0:2"] = errors.New("HTTP error! Status: 404")
	p := NewPipeline(f, 0)
	ctx := context.Background()

	if _, ok := p.Get(ctx, "1:0:2"); ok {
		t.Fatal("want miss on fetch error")
	}
	if _, ok := p.Lookup("1:0:2"); ok {
		t.Fatal("failure must not be cached")
	}
	f.mu.Lock()
	delete(f.err, "1:0:2")
	f.body["1:0:2"] = pngBytes(t, solid(10, 20, color.NRGBA{A: 255}))
	f.mu.Unlock()
	if _, ok := p.Get(ctx, "1:0:2"); !ok {
		t.Fatal("retry after failure should succeed")
	}
	if n := f.callCount("1:0:2"); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestPipeline_undecodableNotCached(t *testing.T) {
	f := newFakeFetcher()
	f.body["x"] = []byte("not an image")
	p := NewPipeline(f, 0)
	if _, ok := p.Get(context.Background(), "x"); ok {
		t.Fatal("want miss for undecodable body")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}

func TestPipeline_disabled(t *testing.T) {
	f := newFakeFetcher()
	f.body["1:0:1"] = pngBytes(t, solid(5, 5, color.NRGBA{A: 255}))
	p := NewPipeline(f, 0)
	p.Enabled = false
	if _, ok := p.Get(context.Background(), "1:0:1"); ok {
		t.Fatal("disabled pipeline returned a picon")
	}
	if f.callCount("1:0:1") != 0 {
		t.Fatal("disabled pipeline performed I/O")
	}
}

func TestPipeline_concurrentGetsShareFetch(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 50 * time.Millisecond
	f.body["1:0:3"] = pngBytes(t, solid(30, 60, color.NRGBA{G: 255, A: 255}))
	p := NewPipeline(f, 0)

	var wg sync.WaitGroup
	var hits atomic.Int32
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if v, ok := p.Get(context.Background(), "1:0:3"); ok {
				hits.Add(1)
				results[i] = v
			}
		}(i)
	}
	wg.Wait()
	if hits.Load() != 10 {
		t.Fatalf("hits = %d, want 10", hits.Load())
	}
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatal("callers saw different values")
		}
	}
	if n := f.callCount("1:0:3"); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestPipeline_oversizedPiconNotCached(t *testing.T) {
	f := newFakeFetcher()
	f.body["big"] = headerOnlyPNG(8000, 8000)
	p := NewPipeline(f, 0)
	if _, ok := p.Get(context.Background(), "big"); ok {
		t.Fatal("oversized picon accepted")
	}
	if _, ok := p.Lookup("big"); ok {
		t.Fatal("oversized picon cached")
	}
}
