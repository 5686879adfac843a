package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/snapetech/e2catalog/internal/config"
	"github.com/snapetech/e2catalog/internal/enigma2"
)

const (
	favRef   = `1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.favourites.tv" ORDER BY bouquet`
	emptyRef = `1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.empty.tv" ORDER BY bouquet`
	erste    = "1:0:19:283D:3FB:1:C00000:0:0:0:"
	zdf      = "1:0:19:2B66:3F3:1:C00000:0:0:0:"
)

func fakeReceiver(t *testing.T) *httptest.Server {
	t.Helper()
	var logo bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 220, 132))
	for y := 0; y < 132; y++ {
		for x := 0; x < 220; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	if err := png.Encode(&logo, img); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/web/getservices", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("sRef") {
		case "":
			w.Write([]byte(`<e2servicelist>
<e2service><e2servicereference>` + favRef + `</e2servicereference><e2servicename>Favourites</e2servicename></e2service>
<e2service><e2servicereference>` + emptyRef + `</e2servicereference><e2servicename>Empty</e2servicename></e2service>
</e2servicelist>`))
		case favRef:
			w.Write([]byte(`<e2servicelist>
<e2service><e2servicereference>` + erste + `</e2servicereference><e2servicename>Das Erste HD</e2servicename></e2service>
<e2service><e2servicereference>` + zdf + `</e2servicereference><e2servicename>ZDF</e2servicename></e2service>
</e2servicelist>`))
		default:
			w.Write([]byte(`<e2servicelist></e2servicelist>`))
		}
	})
	mux.HandleFunc("/picon/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/picon/"+enigma2.PiconFilename(erste)+".png" {
			w.Header().Set("Content-Type", "image/png")
			w.Write(logo.Bytes())
			return
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, receiver *httptest.Server) *config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(receiver.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	cfg := &config.Config{
		Host:                host,
		Port:                p,
		StreamPort:          8002,
		PiconURL:            receiver.URL,
		CatalogPrefix:       "E2 - ",
		IgnoreEmptyBouquets: true,
		CacheTTL:            5 * time.Minute,
		LineupTimeout:       5 * time.Second,
		PiconTimeout:        3 * time.Second,
		PiconsEnabled:       true,
		PreloadBatch:        15,
		PreloadDelay:        time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestApp_startPreloadsAndServes(t *testing.T) {
	receiver := fakeReceiver(t)
	a := newApp(testConfig(t, receiver))
	if err := a.start(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.picons.Lookup(erste); !ok {
		t.Fatal("picon for Das Erste HD not preloaded")
	}
	if _, ok := a.picons.Lookup(zdf); ok {
		t.Fatal("missing picon must not be cached")
	}

	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	var m struct {
		Catalogs []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"catalogs"`
	}
	err = json.NewDecoder(resp.Body).Decode(&m)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Catalogs) != 1 || m.Catalogs[0].Name != "E2 - Favourites" {
		t.Fatalf("catalogs = %+v (empty bouquet should be dropped)", m.Catalogs)
	}

	resp, err = http.Get(srv.URL + "/catalog/tv/" + m.Catalogs[0].ID + ".json")
	if err != nil {
		t.Fatal(err)
	}
	var cat struct {
		Metas []struct {
			ID     string   `json:"id"`
			Poster string   `json:"poster"`
			Genres []string `json:"genres"`
		} `json:"metas"`
	}
	err = json.NewDecoder(resp.Body).Decode(&cat)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Metas) != 2 {
		t.Fatalf("metas = %+v", cat.Metas)
	}
	if !strings.HasPrefix(cat.Metas[0].Poster, "data:image/png;base64,") || len(cat.Metas[0].Genres) != 1 {
		t.Errorf("first meta = %+v", cat.Metas[0])
	}
	if cat.Metas[1].Poster != "" {
		t.Errorf("ZDF poster = %q, want none", cat.Metas[1].Poster)
	}

	resp, err = http.Get(srv.URL + "/stream/tv/" + cat.Metas[1].ID + ".json")
	if err != nil {
		t.Fatal(err)
	}
	var st struct {
		Streams []struct {
			URL string `json:"url"`
		} `json:"streams"`
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	host := strings.Split(strings.TrimPrefix(receiver.URL, "http://"), ":")[0]
	if len(st.Streams) != 1 || st.Streams[0].URL != "http://"+host+":8002/"+zdf {
		t.Errorf("streams = %+v", st.Streams)
	}
}

func TestApp_startFailsWithoutReceiver(t *testing.T) {
	receiver := fakeReceiver(t)
	cfg := testConfig(t, receiver)
	receiver.Close()
	if err := newApp(cfg).start(context.Background(), true); err == nil {
		t.Fatal("want error when the receiver is unreachable")
	}
}

func TestApp_list(t *testing.T) {
	receiver := fakeReceiver(t)
	a := newApp(testConfig(t, receiver))
	var out bytes.Buffer
	if err := a.list(context.Background(), &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("output:\n%s", out.String())
	}
	if fields := strings.Fields(lines[1]); len(fields) < 4 || fields[3] != "2" {
		t.Errorf("row = %q, want 2 channels for E2 - Favourites", lines[1])
	}
}
