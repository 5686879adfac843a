// Package directory serves the receiver's bouquet and channel lists from
// TTL caches, refreshing from the receiver when entries expire and falling
// back to the last good list when the receiver is unreachable.
package directory

import (
	"context"
	"time"

	"github.com/snapetech/e2catalog/internal/cache"
	"github.com/snapetech/e2catalog/internal/enigma2"
)

// DefaultTTL is how long bouquet and channel lists are served without refetching.
const DefaultTTL = 300 * time.Second

// Source is the receiver side of the directory.
type Source interface {
	FetchBouquets(ctx context.Context) ([]enigma2.Bouquet, error)
	FetchChannels(ctx context.Context, bouquetRef string) ([]enigma2.Channel, error)
}

// Options control filtering and caching.
type Options struct {
	Prefix              string   // prepended to bouquet names for DisplayName
	IgnoreBouquets      []string // drop bouquets whose ref contains any of these
	IgnoreEmptyBouquets bool     // drop bouquets with no channels (or that fail to load)
	TTL                 time.Duration
	Now                 func() time.Time // nil = time.Now
}

// Directory is safe for concurrent use.
type Directory struct {
	src  Source
	opts Options

	bouquets *cache.TTL[[]enigma2.Bouquet]
	channels *cache.TTL[[]enigma2.Channel]
}

func New(src Source, opts Options) *Directory {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Directory{
		src:      src,
		opts:     opts,
		bouquets: cache.NewTTL[[]enigma2.Bouquet](opts.TTL, opts.Now),
		channels: cache.NewTTL[[]enigma2.Channel](opts.TTL, opts.Now),
	}
}

// FindBouquet returns the bouquet with the given catalog id from the current list.
func (d *Directory) FindBouquet(ctx context.Context, id string) (enigma2.Bouquet, bool, error) {
	bouquets, err := d.ListBouquets(ctx)
	if err != nil {
		return enigma2.Bouquet{}, false, err
	}
	for _, b := range bouquets {
		if b.ID == id {
			return b, true, nil
		}
	}
	return enigma2.Bouquet{}, false, nil
}

// Loaded reports whether a bouquet list has been fetched at least once.
func (d *Directory) Loaded() bool {
	_, ok := d.bouquets.Peek(bouquetsKey)
	return ok
}
