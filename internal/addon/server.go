// Package addon serves the bouquet directory as a catalog add-on: a
// manifest with one catalog per bouquet, channel metas with picon posters,
// and live stream URLs on the receiver.
package addon

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/snapetech/e2catalog/internal/enigma2"
	"github.com/snapetech/e2catalog/internal/metrics"
)

const (
	ManifestID      = "enigma2.multi.bouquet.addon"
	ManifestVersion = "2.6.0"
)

// Directory is the read side of the bouquet and channel caches.
type Directory interface {
	ListBouquets(ctx context.Context) ([]enigma2.Bouquet, error)
	ListChannels(ctx context.Context, bouquetRef string) ([]enigma2.Channel, error)
	FindBouquet(ctx context.Context, id string) (enigma2.Bouquet, bool, error)
	Loaded() bool
}

// Streamer builds playable URLs on the receiver.
type Streamer interface {
	StreamURLFor(serviceRef string) string
}

// Server is the add-on HTTP surface.
type Server struct {
	Host    string // receiver host, shown in the manifest
	Dir     Directory
	Mapper  *Mapper
	Streams Streamer
}

type manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	Catalogs    []manifestCatalog `json:"catalogs"`
}

type manifestCatalog struct {
	Type  string       `json:"type"`
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Extra []catalogArg `json:"extra"`
}

type catalogArg struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"isRequired"`
}

type stream struct {
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	BehaviorHints behaviorHints `json:"behaviorHints"`
}

type behaviorHints struct {
	Binge bool `json:"binge"`
}

// Handler returns the routed add-on handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(allowCORS)

	r.Get("/healthz", s.serveHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(compressBrotli)
		r.Get("/manifest.json", s.serveManifest)
		r.Get("/catalog/{type}/{id}/{extra}", s.serveCatalog)
		r.Get("/catalog/{type}/{id}", s.serveCatalog)
		r.Get("/stream/{type}/{id}", s.serveStream)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Addon running on %s", addr)
		log.Printf("Manifest: http://localhost%s/manifest.json", displayAddr(addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("Shutting down addon ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Addon shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}

func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request) {
	m := manifest{
		ID:          ManifestID,
		Version:     ManifestVersion,
		Name:        "Enigma2 TV (" + s.Host + ")",
		Description: "Live TV from Enigma2 receiver at " + s.Host + " - Multiple Bouquets",
		Resources:   []string{"catalog", "stream"},
		Types:       []string{"tv"},
		Catalogs:    []manifestCatalog{},
	}
	bouquets, err := s.Dir.ListBouquets(r.Context())
	if err != nil {
		log.Printf("Manifest without catalogs: %v", err)
	}
	for _, b := range bouquets {
		m.Catalogs = append(m.Catalogs, manifestCatalog{
			Type:  "tv",
			ID:    b.ID,
			Name:  b.DisplayName,
			Extra: []catalogArg{{Name: "search", IsRequired: false}},
		})
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) serveCatalog(w http.ResponseWriter, r *http.Request) {
	metas := s.catalog(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "extra"))
	writeJSON(w, http.StatusOK, map[string][]Meta{"metas": metas})
}

// catalog never fails: any error yields an empty list.
func (s *Server) catalog(ctx context.Context, id, extra string) []Meta {
	id, extra = trimJSON(id, extra)
	metas := []Meta{}
	if id == "" {
		return metas
	}
	b, ok, err := s.Dir.FindBouquet(ctx, id)
	if err != nil {
		log.Printf("Error in catalog handler: %v", err)
		return metas
	}
	if !ok {
		log.Printf("Bouquet not found: %s", id)
		return metas
	}
	channels, err := s.Dir.ListChannels(ctx, b.Ref)
	if err != nil {
		log.Printf("Error in catalog handler: %v", err)
		return metas
	}
	term := strings.ToLower(searchTerm(extra))
	posters := 0
	for _, ch := range channels {
		if term != "" && !strings.Contains(strings.ToLower(ch.Name), term) {
			continue
		}
		m := s.Mapper.MapToMeta(ch, b.ID)
		if m.Poster != "" {
			posters++
		}
		metas = append(metas, m)
	}
	log.Printf("Serving %d channels from %s (%d with preloaded logos)", len(metas), b.DisplayName, posters)
	return metas
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	id, _ := trimJSON(chi.URLParam(r, "id"), "")
	streams := []stream{}
	if e, ok := s.Mapper.Resolve(id); ok {
		u := s.Streams.StreamURLFor(e.ServiceRef)
		log.Printf("[Stream] %s: %s", e.Name, u)
		streams = append(streams, stream{Title: e.Name + " (Live)", URL: u, BehaviorHints: behaviorHints{Binge: true}})
	}
	writeJSON(w, http.StatusOK, map[string][]stream{"streams": streams})
}

// serveHealth returns 503 {"status":"loading"} until the bouquet list has
// been loaded once, then 200 {"status":"ok"}.
func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	if !s.Dir.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// trimJSON strips the ".json" suffix from whichever path segment is last.
func trimJSON(id, extra string) (string, string) {
	if extra != "" {
		return id, strings.TrimSuffix(extra, ".json")
	}
	return strings.TrimSuffix(id, ".json"), ""
}

// searchTerm reads search= from the extra segment ("search=news&skip=0").
func searchTerm(extra string) string {
	if extra == "" {
		return ""
	}
	q, err := url.ParseQuery(extra)
	if err != nil {
		return ""
	}
	return q.Get("search")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
