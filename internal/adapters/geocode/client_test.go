package geocode_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"terrenos/internal/adapters/geocode"
)

func TestSearch_FirstResultWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("limit") != "1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("q") != "Villarrica, Chile" {
			t.Errorf("q = %q", q.Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"-39.2856","lon":"-72.2279"},{"lat":"0","lon":"0"}]`))
	}))
	defer srv.Close()

	c := geocode.New(srv.URL, 100)
	lat, lng, err := c.Search(context.Background(), "Villarrica, Chile")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if lat != -39.2856 || lng != -72.2279 {
		t.Fatalf("coords = %v,%v", lat, lng)
	}
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, _, err := geocode.New(srv.URL, 100).Search(context.Background(), "nowhere at all")
	if !errors.Is(err, geocode.ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestSearch_BadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"not-a-number","lon":"-72.1"}]`))
	}))
	defer srv.Close()

	_, _, err := geocode.New(srv.URL, 100).Search(context.Background(), "x")
	if !errors.Is(err, geocode.ErrBadCoords) {
		t.Fatalf("err = %v, want ErrBadCoords", err)
	}
}

func TestSearch_RetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"lat":"-41.47","lon":"-72.94"}]`))
	}))
	defer srv.Close()

	lat, _, err := geocode.New(srv.URL, 100).Search(context.Background(), "Puerto Montt")
	if err != nil {
		t.Fatalf("search after retries: %v", err)
	}
	if lat != -41.47 {
		t.Fatalf("lat = %v", lat)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestSearch_GivesUpOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, _, err := geocode.New(srv.URL, 100).Search(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", got)
	}
}
