// Package preload warms the picon cache for every channel of every bouquet
// in paced, bounded batches so the receiver is never flooded.
package preload

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/metrics"
)

const (
	DefaultBatchSize = 15
	DefaultDelay     = 200 * time.Millisecond
)

// Directory is the bouquet/channel side the preloader walks.
type Directory interface {
	ListBouquets(ctx context.Context) ([]enigma2.Bouquet, error)
	ListChannels(ctx context.Context, bouquetRef string) ([]enigma2.Channel, error)
}

// Picons loads one picon. Failures are reported as ok=false.
type Picons interface {
	Get(ctx context.Context, serviceRef string) (string, bool)
}

// Stats summarizes one preload run.
type Stats struct {
	Bouquets     int
	BouquetFails int
	Channels     int
	Loaded       int
	Failed       int
	Batches      int
	Duration     time.Duration
}

// Preloader drives the picon pipeline across the whole lineup.
type Preloader struct {
	Dir       Directory
	Picons    Picons
	Enabled   bool
	BatchSize int           // <= 0 uses DefaultBatchSize
	Delay     time.Duration // pacing between batches; < 0 disables

	// Sleep waits between batches; nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns an enabled preloader with default batching.
func New(dir Directory, picons Picons) *Preloader {
	return &Preloader{Dir: dir, Picons: picons, Enabled: true, BatchSize: DefaultBatchSize, Delay: DefaultDelay}
}

// Run preloads every picon once. Individual picon and bouquet failures are
// counted and logged; only a failed bouquet listing or ctx cancellation
// (checked between batches) ends the run early.
func (p *Preloader) Run(ctx context.Context) (st Stats, err error) {
	if !p.Enabled {
		log.Printf("Picons disabled - skipping preload")
		return st, nil
	}
	start := time.Now()
	defer func() {
		st.Duration = time.Since(start)
		metrics.PreloadDuration.Observe(st.Duration.Seconds())
	}()

	log.Printf("Preloading all logos for all bouquets...")
	var bouquets []enigma2.Bouquet
	bouquets, err = p.Dir.ListBouquets(ctx)
	if err != nil {
		log.Printf("Picon preload failed: %v", err)
		return st, err
	}
	for _, b := range bouquets {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Bouquets++
		channels, err := p.Dir.ListChannels(ctx, b.Ref)
		if err != nil {
			st.BouquetFails++
			log.Printf("   Failed to preload %s: %v", b.DisplayName, err)
			continue
		}
		if err := p.preloadBouquet(ctx, b, channels, &st); err != nil {
			return st, err
		}
	}

	log.Printf("Picon preload COMPLETE: %d/%d logos successfully loaded (%d batches)", st.Loaded, st.Channels, st.Batches)
	if st.Failed > 0 {
		log.Printf("   %d logos failed to load (missing picons)", st.Failed)
	}
	return st, nil
}

func (p *Preloader) preloadBouquet(ctx context.Context, b enigma2.Bouquet, channels []enigma2.Channel, st *Stats) error {
	log.Printf("   Preloading %d logos from %s...", len(channels), b.DisplayName)
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	loaded := 0
	for i := 0; i < len(channels); i += size {
		if i > 0 {
			if err := p.sleep(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := channels[i:min(i+size, len(channels))]
		ok := p.runBatch(ctx, batch)
		st.Batches++
		st.Channels += len(batch)
		st.Loaded += ok
		st.Failed += len(batch) - ok
		loaded += ok
		log.Printf("      %s: %d/%d (%d ok, %d failed)", b.DisplayName, i+len(batch), len(channels), ok, len(batch)-ok)
	}
	log.Printf("   %s: %d logos loaded", b.DisplayName, loaded)
	return nil
}

// runBatch fetches every picon in the batch concurrently and waits for all
// of them to settle.
func (p *Preloader) runBatch(ctx context.Context, batch []enigma2.Channel) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, ch := range batch {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			if _, got := p.Picons.Get(ctx, ref); got {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(ch.ServiceRef)
	}
	wg.Wait()
	return ok
}

func (p *Preloader) sleep(ctx context.Context) error {
	if p.Delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunEvery repeats Run on the given interval until ctx is done. The first
// run happens after one interval; startup preloading is the caller's job.
func (p *Preloader) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !p.Enabled {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Scheduled picon preload failed: %v", err)
			}
		}
	}
}
