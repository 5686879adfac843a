package addon

import (
	"strings"

	"github.com/snapetech/e2catalog/internal/cache"
	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/metrics"
)

// MetaPrefix starts every meta id this add-on hands out.
const MetaPrefix = "enigma2_"

// Meta is one catalog item.
type Meta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      string   `json:"poster,omitempty"`
	PosterShape string   `json:"posterShape"`
	Genres      []string `json:"genres,omitempty"`
	Description string   `json:"description"`
}

// Entry is what a meta id resolves to when a stream is requested.
type Entry struct {
	Name       string
	ServiceRef string
	BouquetID  string
}

// PiconLookup reads a cached picon. It must not do I/O.
type PiconLookup interface {
	Lookup(serviceRef string) (string, bool)
}

// Mapper turns channels into catalog items and remembers each id for
// stream resolution.
type Mapper struct {
	picons PiconLookup
	index  *cache.Index[Entry]
}

// NewMapper returns a Mapper. indexSize <= 0 keeps every id ever mapped.
func NewMapper(picons PiconLookup, indexSize int) *Mapper {
	return &Mapper{picons: picons, index: cache.NewIndex[Entry](indexSize)}
}

// MetaID derives the catalog id for a channel inside a bouquet.
func MetaID(bouquetID, serviceRef string) string {
	return MetaPrefix + bouquetID + "_" + enigma2.EncodeRef(serviceRef)
}

// MapToMeta builds the catalog item for ch. The poster comes from the picon
// cache only; a miss leaves it empty.
func (m *Mapper) MapToMeta(ch enigma2.Channel, bouquetID string) Meta {
	id := MetaID(bouquetID, ch.ServiceRef)
	meta := Meta{
		ID:          id,
		Type:        "tv",
		Name:        ch.Name,
		PosterShape: "square",
		Description: "Live TV channel",
	}
	if m.picons != nil {
		if poster, ok := m.picons.Lookup(ch.ServiceRef); ok {
			meta.Poster = poster
		}
	}
	if ch.HD {
		meta.Genres = []string{"HD"}
	}
	m.index.Put(id, Entry{Name: ch.Name, ServiceRef: ch.ServiceRef, BouquetID: bouquetID})
	metrics.MetaEntries.Set(float64(m.index.Len()))
	return meta
}

// Resolve returns the channel registered under a meta id.
func (m *Mapper) Resolve(id string) (Entry, bool) {
	if !strings.HasPrefix(id, MetaPrefix) {
		return Entry{}, false
	}
	return m.index.Get(id)
}
