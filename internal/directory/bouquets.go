package directory

import (
	"context"
	"log"
	"strings"

	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/metrics"
)

const bouquetsKey = "bouquets"

// ListBouquets returns the filtered bouquet list with DisplayName stamped.
// The slice is shared with the cache; callers must not modify it.
func (d *Directory) ListBouquets(ctx context.Context) ([]enigma2.Bouquet, error) {
	v, out, err := d.bouquets.Get(ctx, bouquetsKey, d.refreshBouquets)
	metrics.DirectoryLookups.WithLabelValues("bouquets", out.String()).Inc()
	return v, err
}

func (d *Directory) refreshBouquets(ctx context.Context) ([]enigma2.Bouquet, error) {
	bouquets, err := d.src.FetchBouquets(ctx)
	if err != nil {
		log.Printf("Failed to fetch bouquets: %v", err)
		return nil, err
	}

	if len(d.opts.IgnoreBouquets) > 0 {
		before := len(bouquets)
		bouquets = d.dropIgnored(bouquets)
		log.Printf("Filtered %d bouquets, keeping %d", before-len(bouquets), len(bouquets))
	}

	if d.opts.IgnoreEmptyBouquets {
		before := len(bouquets)
		bouquets = d.dropEmpty(ctx, bouquets)
		log.Printf("Filtered %d empty bouquets, keeping %d", before-len(bouquets), len(bouquets))
	}

	out := make([]enigma2.Bouquet, len(bouquets))
	for i, b := range bouquets {
		b.DisplayName = d.opts.Prefix + b.Name
		out[i] = b
	}
	log.Printf("Found %d bouquets after filtering:", len(out))
	for _, b := range out {
		log.Printf("   %s (%s)", b.DisplayName, b.Ref)
	}
	return out, nil
}

func (d *Directory) dropIgnored(bouquets []enigma2.Bouquet) []enigma2.Bouquet {
	kept := make([]enigma2.Bouquet, 0, len(bouquets))
	for _, b := range bouquets {
		if !containsAny(b.Ref, d.opts.IgnoreBouquets) {
			kept = append(kept, b)
		}
	}
	return kept
}

// dropEmpty keeps bouquets with at least one channel. A bouquet whose
// channel list cannot be loaded is treated as empty.
func (d *Directory) dropEmpty(ctx context.Context, bouquets []enigma2.Bouquet) []enigma2.Bouquet {
	kept := make([]enigma2.Bouquet, 0, len(bouquets))
	for _, b := range bouquets {
		channels, err := d.ListChannels(ctx, b.Ref)
		switch {
		case err != nil:
			log.Printf("   Ignoring bouquet (failed to load): %s", b.Name)
		case len(channels) == 0:
			log.Printf("   Ignoring empty bouquet: %s", b.Name)
		default:
			kept = append(kept, b)
		}
	}
	return kept
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
