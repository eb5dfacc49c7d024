package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"backend-ridelink/internal/shared/apperr"
)

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func TestSearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "cafe central" {
			t.Errorf("unexpected query %q", q)
		}
		w.Write([]byte(`[
			{"display_name": "Cafe Central, Berlin", "lat": "52.52", "lon": "13.405"},
			{"display_name": "Cafe Central, Wien", "lat": "48.210", "lon": "16.365"},
			{"display_name": "Broken Row", "lat": "not-a-number", "lon": "0"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, newFakeKV())
	places, err := client.Search(context.Background(), "cafe central")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 parseable places, got %d", len(places))
	}
	if places[0].DisplayName != "Cafe Central, Berlin" || places[0].Lat != 52.52 {
		t.Fatalf("unexpected place: %+v", places[0])
	}

	// second identical query is served from cache
	if _, err := client.Search(context.Background(), "cafe central"); err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits.Load())
	}
}

func TestSearchQueryTooShort(t *testing.T) {
	client := NewClient("http://unused", nil)
	_, err := client.Search(context.Background(), "ab")
	if apperr.Classify(err).Code != apperr.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSearchUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // transport failure

	client := NewClient(srv.URL, nil)
	_, err := client.Search(context.Background(), "cafe central")
	if apperr.Classify(err).Code != apperr.CodeNetwork {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Search(context.Background(), "cafe central")
	if apperr.Classify(err).Code != apperr.CodeNetwork {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"display_name": "Unter den Linden 1, Berlin", "lat": "52.517", "lon": "13.389"}`))
	}))
	defer srv.Close()

	kv := newFakeKV()
	client := NewClient(srv.URL, kv)
	place, err := client.Reverse(context.Background(), 52.517, 13.389)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if place.DisplayName != "Unter den Linden 1, Berlin" {
		t.Fatalf("unexpected place: %+v", place)
	}
	if len(kv.data) == 0 {
		t.Fatalf("expected reverse result cached")
	}
}

func TestReverseNoPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Reverse(context.Background(), 0, 0)
	if apperr.Classify(err).Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
