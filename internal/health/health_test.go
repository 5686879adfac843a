package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckReceiver_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/getservices" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<?xml version="1.0"?><e2servicelist><e2service><e2servicereference>1:7:1</e2servicereference></e2service></e2servicelist>`))
	}))
	defer srv.Close()
	if err := CheckReceiver(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("CheckReceiver: %v", err)
	}
}

func TestCheckReceiver_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	if err := CheckReceiver(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestCheckReceiver_notOpenWebif(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>router login</html>"))
	}))
	defer srv.Close()
	if err := CheckReceiver(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-OpenWebif body")
	}
}

func TestCheckReceiver_emptyURL(t *testing.T) {
	if err := CheckReceiver(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCheckEndpoints_ok(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	if err := CheckEndpoints(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckEndpoints: %v", err)
	}
}

func TestCheckEndpoints_loading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	if err := CheckEndpoints(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error while add-on is loading")
	}
}
