package directory

import (
	"context"
	"log"

	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/metrics"
)

// ListChannels returns the channels of one bouquet, cached per bouquet reference.
// The slice is shared with the cache; callers must not modify it.
func (d *Directory) ListChannels(ctx context.Context, bouquetRef string) ([]enigma2.Channel, error) {
	v, out, err := d.channels.Get(ctx, bouquetRef, func(ctx context.Context) ([]enigma2.Channel, error) {
		channels, err := d.src.FetchChannels(ctx, bouquetRef)
		if err != nil {
			log.Printf("Failed to fetch channels for bouquet: %v", err)
			return nil, err
		}
		return channels, nil
	})
	metrics.DirectoryLookups.WithLabelValues("channels", out.String()).Inc()
	return v, err
}
