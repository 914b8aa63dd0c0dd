package listenbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

var testInfo = song.Info{
	Artist:         "Band",
	Track:          "Song",
	Album:          "Album",
	AlbumArtist:    "Various",
	Duration:       215,
	OriginURL:      "https://music.example.com/watch?v=1",
	ConnectorLabel: "Example Music",
	StartedAt:      time.Unix(1700000000, 0),
}

type fakeAPI struct {
	mu          sync.Mutex
	submissions []submission
	auth        []string
	status      int
	body        string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{status: http.StatusOK, body: `{"status": "ok"}`}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /1/submit-listens", func(w http.ResponseWriter, r *http.Request) {
		var sub submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submissions = append(f.submissions, sub)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		status, body := f.status, f.body
		f.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("GET /1/validate-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Token good" {
			_, _ = w.Write([]byte(`{"valid": true, "user_name": "alice", "message": "Token valid."}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid": false, "message": "Token invalid."}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) received() ([]submission, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.submissions...), append([]string(nil), f.auth...)
}

func (f *fakeAPI) setResponse(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func TestService_Scrobble(t *testing.T) {
	api, srv := newFakeAPI(t)
	svc := NewService(NewClient(srv.URL), "tok", nil, nil)

	r, err := svc.Scrobble(context.Background(), testInfo)
	require.NoError(t, err)
	assert.Equal(t, service.ResultOK, r)

	subs, auth := api.received()
	require.Len(t, subs, 1)
	sub := subs[0]
	assert.Equal(t, "single", sub.ListenType)
	assert.Equal(t, "Token tok", auth[0])
	require.Len(t, sub.Payload, 1)
	assert.Equal(t, int64(1700000000), sub.Payload[0].ListenedAt)

	meta := sub.Payload[0].TrackMetadata
	assert.Equal(t, "Band", meta.ArtistName)
	assert.Equal(t, "Song", meta.TrackName)
	assert.Equal(t, "Album", meta.ReleaseName)
	assert.Equal(t, "Various", meta.AdditionalInfo.ReleaseArtistName)
	assert.Equal(t, int64(215000), meta.AdditionalInfo.DurationMs)
	assert.Equal(t, "Example Music", meta.AdditionalInfo.MusicServiceName)
	assert.Equal(t, testInfo.OriginURL, meta.AdditionalInfo.OriginURL)
}

func TestService_NowPlayingHasNoTimestamp(t *testing.T) {
	api, srv := newFakeAPI(t)
	svc := NewService(NewClient(srv.URL), "tok", nil, nil)

	r, err := svc.SendNowPlaying(context.Background(), testInfo)
	require.NoError(t, err)
	assert.Equal(t, service.ResultOK, r)

	subs, _ := api.received()
	require.Len(t, subs, 1)
	assert.Equal(t, "playing_now", subs[0].ListenType)
	assert.Zero(t, subs[0].Payload[0].ListenedAt)
}

func TestService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{"bad request", http.StatusBadRequest, `{"code": 400, "error": "invalid"}`, true},
		{"unauthorized", http.StatusUnauthorized, `{"code": 401, "error": "bad token"}`, true},
		{"server error", http.StatusInternalServerError, `oops`, false},
		{"status not ok", http.StatusOK, `{"status": "error"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, srv := newFakeAPI(t)
			api.setResponse(tt.status, tt.body)
			svc := NewService(NewClient(srv.URL), "tok", nil, nil)

			_, err := svc.Scrobble(context.Background(), testInfo)
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, errors.Is(err, service.ErrAuth))
		})
	}
}

func TestService_ThroughAggregator(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.setResponse(http.StatusUnauthorized, `{"error": "bad token"}`)

	store := state.NewMock()
	require.NoError(t, store.SaveSession(ServiceID, "alice", "tok"))
	svc := NewService(NewClient(srv.URL), "", store, nil)

	agg := service.NewAggregator(nil, []service.Service{svc})
	results := agg.Scrobble(context.Background(), testInfo)

	assert.Equal(t, service.ResultErrorAuth, results[ServiceID])
	assert.False(t, svc.IsAuthenticated(context.Background()), "rejected token is unlinked")
}

func TestService_LoveIsIgnored(t *testing.T) {
	svc := NewService(NewClient("http://unused.invalid"), "tok", nil, nil)
	r, err := svc.ToggleLove(context.Background(), testInfo, true)
	require.NoError(t, err)
	assert.Equal(t, service.ResultIgnore, r)
}

func TestService_Authentication(t *testing.T) {
	store := state.NewMock()
	svc := NewService(NewClient(""), "", store, nil)
	assert.False(t, svc.IsAuthenticated(context.Background()))

	require.NoError(t, store.SaveSession(ServiceID, "alice", "tok"))
	assert.True(t, svc.IsAuthenticated(context.Background()))

	configured := NewService(NewClient(""), "cfg", store, nil)
	require.NoError(t, configured.InvalidateSession(context.Background()))
	assert.False(t, configured.IsAuthenticated(context.Background()), "rejected configured token")
}

func TestService_RejectedTokenLeavesFanOut(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.setResponse(http.StatusUnauthorized, `{"code": 401, "error": "bad token"}`)
	svc := NewService(NewClient(srv.URL), "cfg", nil, nil)
	agg := service.NewAggregator(nil, []service.Service{svc})

	results := agg.Scrobble(context.Background(), testInfo)
	assert.Equal(t, service.ResultErrorAuth, results[ServiceID])

	results = agg.SendNowPlaying(context.Background(), testInfo)
	assert.Empty(t, results, "service is excluded after its token was rejected")
	subs, _ := api.received()
	assert.Len(t, subs, 1)

	r, err := svc.Scrobble(context.Background(), testInfo)
	assert.Equal(t, service.ResultErrorAuth, r)
	assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}

func TestService_RelinkAfterRejection(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := state.NewMock()
	require.NoError(t, store.SaveSession(ServiceID, "alice", "old"))
	svc := NewService(NewClient(srv.URL), "", store, nil)

	require.NoError(t, svc.InvalidateSession(context.Background()))
	assert.False(t, svc.IsAuthenticated(context.Background()))

	_, err := Link(context.Background(), NewClient(srv.URL), store, "good")
	require.NoError(t, err)
	assert.True(t, svc.IsAuthenticated(context.Background()))
}

func TestLink(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := state.NewMock()
	client := NewClient(srv.URL)

	name, err := Link(context.Background(), client, store, "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	sess, err := store.GetSession(ServiceID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "good", sess.SessionKey)

	_, err = Link(context.Background(), client, store, "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
