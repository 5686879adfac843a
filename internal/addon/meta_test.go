package addon

import (
	"strings"
	"testing"

	"github.com/snapetech/e2catalog/internal/enigma2"
)

type fakePicons map[string]string

func (f fakePicons) Lookup(ref string) (string, bool) {
	v, ok := f[ref]
	return v, ok
}

func TestMapToMeta(t *testing.T) {
	const ref = "1:0:19:283D:3FB:1:C00000:0:0:0:"
	m := NewMapper(fakePicons{ref: "data:image/png;base64,AAAA"}, 0)
	bid := enigma2.BouquetID(`1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.fav.tv" ORDER BY bouquet`)

	meta := m.MapToMeta(enigma2.Channel{Name: "Das Erste HD", ServiceRef: ref, HD: true}, bid)
	if want := "enigma2_" + bid + "_" + enigma2.EncodeRef(ref); meta.ID != want {
		t.Errorf("ID = %q, want %q", meta.ID, want)
	}
	if meta.Type != "tv" || meta.PosterShape != "square" || meta.Description != "Live TV channel" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Poster != "data:image/png;base64,AAAA" {
		t.Errorf("Poster = %q", meta.Poster)
	}
	if len(meta.Genres) != 1 || meta.Genres[0] != "HD" {
		t.Errorf("Genres = %v", meta.Genres)
	}

	e, ok := m.Resolve(meta.ID)
	if !ok || e.Name != "Das Erste HD" || e.ServiceRef != ref || e.BouquetID != bid {
		t.Fatalf("Resolve = %+v, %v", e, ok)
	}
}

func TestMapToMeta_noPicon(t *testing.T) {
	m := NewMapper(fakePicons{}, 0)
	meta := m.MapToMeta(enigma2.Channel{Name: "Arte", ServiceRef: "1:0:1:1:"}, "bouquet_x")
	if meta.Poster != "" || meta.Genres != nil {
		t.Errorf("meta = %+v", meta)
	}
	if !strings.HasPrefix(meta.ID, "enigma2_bouquet_x_") {
		t.Errorf("ID = %q", meta.ID)
	}
}

func TestResolve_requiresPrefix(t *testing.T) {
	m := NewMapper(nil, 0)
	m.MapToMeta(enigma2.Channel{Name: "A", ServiceRef: "1:0:1:A:"}, "b")
	if _, ok := m.Resolve("tt1234567"); ok {
		t.Error("foreign id resolved")
	}
}

func TestMapper_boundedIndex(t *testing.T) {
	m := NewMapper(nil, 2)
	ids := make([]string, 3)
	for i, ref := range []string{"1:0:1:A:", "1:0:1:B:", "1:0:1:C:"} {
		ids[i] = m.MapToMeta(enigma2.Channel{Name: ref, ServiceRef: ref}, "b").ID
	}
	if _, ok := m.Resolve(ids[0]); ok {
		t.Error("oldest id should be evicted")
	}
	if _, ok := m.Resolve(ids[2]); !ok {
		t.Error("newest id missing")
	}
}
