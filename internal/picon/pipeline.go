// Package picon turns receiver picons into square PNG data URLs and keeps
// them in memory for the life of the process.
package picon

import (
	"context"
	"log"

	"github.com/snapetech/e2catalog/internal/cache"
	"github.com/snapetech/e2catalog/internal/httpclient"
	"github.com/snapetech/e2catalog/internal/metrics"
)

// DefaultHostLimit caps concurrent picon requests to one receiver.
const DefaultHostLimit = 15

// Fetcher downloads raw picon bytes for a service reference.
type Fetcher interface {
	PiconURLFor(serviceRef string) string
	FetchPicon(ctx context.Context, serviceRef string) ([]byte, error)
}

// Pipeline fetches, transforms and caches picons. A successful result is
// kept forever; failures are not cached and the next Get retries.
type Pipeline struct {
	Enabled bool

	src   Fetcher
	cache *cache.Memo[string]
	sem   *httpclient.HostSemaphore
}

// NewPipeline returns an enabled pipeline. hostLimit <= 0 uses DefaultHostLimit.
func NewPipeline(src Fetcher, hostLimit int) *Pipeline {
	if hostLimit <= 0 {
		hostLimit = DefaultHostLimit
	}
	return &Pipeline{
		Enabled: true,
		src:     src,
		cache:   cache.NewMemo[string](),
		sem:     httpclient.NewHostSemaphore(hostLimit),
	}
}

// Get returns the picon data URL for serviceRef, fetching it on a miss.
// ok is false when picons are disabled or the picon could not be loaded.
func (p *Pipeline) Get(ctx context.Context, serviceRef string) (string, bool) {
	if p == nil || !p.Enabled {
		metrics.Picons.WithLabelValues("disabled").Inc()
		return "", false
	}
	if v, ok := p.cache.Lookup(serviceRef); ok {
		metrics.Picons.WithLabelValues("hit").Inc()
		return v, true
	}
	v, ok := p.cache.Get(ctx, serviceRef, func(ctx context.Context) (string, bool) {
		return p.load(ctx, serviceRef)
	})
	if ok {
		metrics.PiconsCached.Set(float64(p.cache.Len()))
	}
	return v, ok
}

// Lookup returns a cached picon without any I/O.
func (p *Pipeline) Lookup(serviceRef string) (string, bool) {
	if p == nil || !p.Enabled {
		return "", false
	}
	return p.cache.Lookup(serviceRef)
}

// Len is the number of cached picons.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return p.cache.Len()
}

func (p *Pipeline) load(ctx context.Context, serviceRef string) (string, bool) {
	release, err := p.sem.Acquire(ctx, p.src.PiconURLFor(serviceRef))
	if err != nil {
		metrics.Picons.WithLabelValues("failed").Inc()
		return "", false
	}
	raw, err := p.src.FetchPicon(ctx, serviceRef)
	release()
	if err != nil {
		log.Printf("Picon fetch failed for %s: %v", serviceRef, err)
		metrics.Picons.WithLabelValues("failed").Inc()
		return "", false
	}
	out, err := Transform(raw)
	if err != nil {
		log.Printf("Picon transform failed for %s: %v", serviceRef, err)
		metrics.Picons.WithLabelValues("failed").Inc()
		return "", false
	}
	metrics.Picons.WithLabelValues("loaded").Inc()
	return out, true
}
