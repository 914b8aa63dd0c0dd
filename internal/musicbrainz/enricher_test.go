package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llehouerou/scrobbled/internal/pipeline"
)

const searchBody = `{
  "recordings": [{
    "id": "rec-1",
    "title": "Song",
    "score": 100,
    "length": 215000,
    "artist-credit": [{"name": "Band", "joinphrase": ""}],
    "releases": [{
      "id": "rel-1",
      "title": "Album",
      "status": "Official",
      "artist-credit": [{"name": "Band"}],
      "release-group": {"id": "rg-1", "primary-type": "Album"}
    }]
  }]
}`

func newTestServer(t *testing.T, coverStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/recording"):
			q := r.URL.Query().Get("query")
			if !strings.Contains(q, `recording:"Song"`) || !strings.Contains(q, `artist:"Band"`) {
				http.Error(w, "bad query "+q, http.StatusBadRequest)
				return
			}
			if r.Header.Get("User-Agent") == "" {
				http.Error(w, "missing user agent", http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(searchBody))
		case strings.HasPrefix(r.URL.Path, "/release/rel-1/front-500"):
			w.WriteHeader(coverStatus)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    srv.URL,
		coverURL:   srv.URL,
	}
}

func TestEnricher_Lookup(t *testing.T) {
	srv := newTestServer(t, http.StatusOK)
	e := NewEnricher(newTestClient(srv))

	info, err := e.Lookup(context.Background(), pipeline.Query{Artist: "Band", Track: "Song"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.RecordingMBID != "rec-1" {
		t.Errorf("RecordingMBID = %q", info.RecordingMBID)
	}
	if info.Album != "Album" || info.AlbumMBID != "rel-1" {
		t.Errorf("Album = %q (%q)", info.Album, info.AlbumMBID)
	}
	if info.Duration != 215*time.Second {
		t.Errorf("Duration = %v", info.Duration)
	}
	if info.TrackArtURL != srv.URL+"/release/rel-1/front-500" {
		t.Errorf("TrackArtURL = %q", info.TrackArtURL)
	}
}

func TestEnricher_NoCoverArt(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound)
	e := NewEnricher(newTestClient(srv))

	info, err := e.Lookup(context.Background(), pipeline.Query{Artist: "Band", Track: "Song"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TrackArtURL != "" {
		t.Errorf("TrackArtURL = %q, want empty", info.TrackArtURL)
	}
	if info.RecordingMBID != "rec-1" {
		t.Errorf("RecordingMBID = %q", info.RecordingMBID)
	}
}

func TestEnricher_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"recordings": [{"id": "x", "score": 40}]}`))
	}))
	defer srv.Close()

	_, err := NewEnricher(newTestClient(srv)).Lookup(context.Background(), pipeline.Query{Artist: "A", Track: "T"})
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("err = %v, want pipeline.ErrNotFound", err)
	}
}
