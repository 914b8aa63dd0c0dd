package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/llehouerou/scrobbled/internal/connectors"
	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/notify"
	"github.com/llehouerou/scrobbled/internal/pipeline"
	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/service/servicetest"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

const (
	exampleURL = "https://music.example.com/watch?v=1"
	otherURL   = "https://other.example.org/track/2"
	plainURL   = "https://news.example.net/"
)

type testOptions struct {
	nowPlaying   bool
	unrecognized bool
}

func (testOptions) ScrobblePercent(string) int              { return 50 }
func (testOptions) ScrobblePodcasts(string) bool            { return true }
func (o testOptions) NowPlayingNotifications(string) bool   { return o.nowPlaying }
func (o testOptions) UnrecognizedNotifications(string) bool { return o.unrecognized }

type fakeNotifier struct {
	mu     sync.Mutex
	nextID uint32
	shown  []notify.Notification
	closed []uint32
}

func (n *fakeNotifier) Notify(notif notify.Notification) (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, notif)
	if notif.ReplacesID != 0 {
		return notif.ReplacesID, nil
	}
	n.nextID++
	return n.nextID, nil
}

func (n *fakeNotifier) Close(id uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, id)
	return nil
}

func (n *fakeNotifier) snapshot() ([]notify.Notification, []uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.shown...), append([]uint32(nil), n.closed...)
}

type fixture struct {
	tr       *Tracker
	svc      *servicetest.Fake
	notifier *fakeNotifier
}

func newFixture(t *testing.T, opts testOptions) *fixture {
	t.Helper()
	reg, err := connectors.New([]connectors.Definition{
		{ID: "example", Label: "Example", Matches: []string{"*://music.example.com/*"}},
		{ID: "other", Label: "Other", Matches: []string{"*://other.example.org/*"}},
	}, nil)
	require.NoError(t, err)

	store := state.NewMock()
	svc := servicetest.New("fake")
	n := &fakeNotifier{}
	tr := New(Config{
		Registry: reg,
		Options:  opts,
		Pipelines: func(string) controller.Processor {
			return pipeline.New(nil, 0, pipeline.Standard(store, nil, false)...)
		},
		Scrobbler: service.NewAggregator(nil, []service.Service{svc}),
		Edits:     store,
		Notifier:  n,
		Logger:    zaptest.NewLogger(t),
	})
	return &fixture{tr: tr, svc: svc, notifier: n}
}

func (f *fixture) entry(t *testing.T, id string) (mode controller.Mode, connectorID string, s *song.Info) {
	t.Helper()
	e, err := f.tr.Entry(context.Background(), id)
	require.NoError(t, err)
	return e.Mode, e.ConnectorID, e.Song
}

var playingAT = song.Snapshot{Artist: "A", Track: "T", Album: "L", Duration: 200, IsPlaying: true}

func TestTracker_OpenAndPlay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{nowPlaying: true})
		defer f.tr.Close()
		ctx := context.Background()

		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		mode, conn, s := f.entry(t, "c1")
		assert.Equal(t, controller.ModeBase, mode)
		assert.Equal(t, "example", conn)
		assert.Nil(t, s)

		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		mode, _, s = f.entry(t, "c1")
		assert.Equal(t, controller.ModePlaying, mode)
		require.NotNil(t, s)
		assert.Equal(t, "A", s.Artist)
		assert.Equal(t, "Example", s.ConnectorLabel)

		shown, _ := f.notifier.snapshot()
		require.Len(t, shown, 1)
		assert.Equal(t, "T", shown[0].Title)
		assert.Equal(t, "A - L - on Example", shown[0].Body)

		time.Sleep(101 * time.Second)
		synctest.Wait()

		mode, _, s = f.entry(t, "c1")
		assert.Equal(t, controller.ModeScrobbled, mode)
		require.NotNil(t, s)
		assert.True(t, s.IsScrobbled)
		assert.Len(t, f.svc.Scrobbles(), 1)
	})
}

func TestTracker_NotificationsFollowOptions(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{nowPlaying: false, unrecognized: true})
		defer f.tr.Close()

		require.NoError(t, f.tr.OpenContext(context.Background(), "c1", exampleURL))
		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		shown, _ := f.notifier.snapshot()
		assert.Empty(t, shown, "now playing notifications are off")

		require.NoError(t, f.tr.Snapshot("c1", song.Snapshot{Track: "T", UniqueID: "x", Duration: 200, IsPlaying: true}))
		synctest.Wait()

		mode, _, _ := f.entry(t, "c1")
		assert.Equal(t, controller.ModeUnknown, mode)
		shown, _ = f.notifier.snapshot()
		require.Len(t, shown, 1)
		assert.Equal(t, "Song not recognized", shown[0].Title)
		assert.Equal(t, notify.UrgencyNormal, shown[0].Urgency)
	})
}

func TestTracker_UnsupportedPage(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{})
		defer f.tr.Close()

		require.NoError(t, f.tr.OpenContext(context.Background(), "c1", plainURL))
		mode, conn, s := f.entry(t, "c1")
		assert.Equal(t, controller.ModeUnsupported, mode)
		assert.Empty(t, conn)
		assert.Nil(t, s)
		entries, err := f.tr.Entries(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries, "unsupported contexts are not stored")

		assert.ErrorIs(t, f.tr.Snapshot("c1", playingAT), ErrUnsupported)
		assert.ErrorIs(t, f.tr.Skip("c1"), ErrUnsupported)
		_, err = f.tr.Love(context.Background(), "c1", true)
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestTracker_Navigate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{})
		defer f.tr.Close()
		ctx := context.Background()

		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		// Same connector: the song survives.
		require.NoError(t, f.tr.NavigateContext(ctx, "c1", "https://music.example.com/watch?v=2"))
		e, err := f.tr.Entry(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, controller.ModePlaying, e.Mode)
		assert.Equal(t, "https://music.example.com/watch?v=2", e.URL)
		assert.NotNil(t, e.Song)

		// Other connector: fresh controller.
		require.NoError(t, f.tr.NavigateContext(ctx, "c1", otherURL))
		synctest.Wait()
		mode, conn, s := f.entry(t, "c1")
		assert.Equal(t, controller.ModeBase, mode)
		assert.Equal(t, "other", conn)
		assert.Nil(t, s)

		// Off a supported page: the stored entry is pruned.
		require.NoError(t, f.tr.NavigateContext(ctx, "c1", plainURL))
		synctest.Wait()
		entries, err := f.tr.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		e, err = f.tr.Entry(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, controller.ModeUnsupported, e.Mode)
		assert.Equal(t, plainURL, e.URL)
		assert.Nil(t, e.Song)

		// Back on a supported page.
		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		mode, conn, _ = f.entry(t, "c1")
		assert.Equal(t, controller.ModeBase, mode)
		assert.Equal(t, "example", conn)

		assert.ErrorIs(t, f.tr.NavigateContext(ctx, "missing", exampleURL), ErrUnknownContext)
	})
}

func TestTracker_NotificationSlotSurvivesNavigation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{nowPlaying: true})
		defer f.tr.Close()
		ctx := context.Background()

		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		require.NoError(t, f.tr.NavigateContext(ctx, "c1", otherURL))
		require.NoError(t, f.tr.Snapshot("c1", song.Snapshot{Artist: "B", Track: "U", Duration: 200, IsPlaying: true}))
		synctest.Wait()

		shown, _ := f.notifier.snapshot()
		require.Len(t, shown, 2)
		assert.Zero(t, shown[0].ReplacesID)
		assert.Equal(t, uint32(1), shown[1].ReplacesID, "the new page reuses the notification")
	})
}

func TestTracker_CloseContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{nowPlaying: true})
		defer f.tr.Close()
		ctx := context.Background()

		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		require.NoError(t, f.tr.OpenContext(ctx, "c2", otherURL))
		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		require.NoError(t, f.tr.CloseContext(ctx, "c1"))
		synctest.Wait()

		entries, err := f.tr.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "c2", entries[0].ContextID)

		_, closed := f.notifier.snapshot()
		assert.Equal(t, []uint32{1}, closed)

		assert.ErrorIs(t, f.tr.CloseContext(ctx, "c1"), ErrUnknownContext)
		assert.ErrorIs(t, f.tr.Snapshot("c1", playingAT), ErrUnknownContext)
		_, err = f.tr.Entry(ctx, "c1")
		assert.ErrorIs(t, err, ErrUnknownContext)

		// Nothing is scrobbled for a closed context.
		time.Sleep(5 * time.Minute)
		synctest.Wait()
		assert.Empty(t, f.svc.Scrobbles())
	})
}

func TestTracker_Passthrough(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{})
		defer f.tr.Close()
		ctx := context.Background()

		require.NoError(t, f.tr.OpenContext(ctx, "c1", exampleURL))
		assert.ErrorIs(t, f.tr.Skip("c1"), controller.ErrNoSong)
		assert.ErrorIs(t, f.tr.Retry("c1"), controller.ErrNoSong)

		require.NoError(t, f.tr.Snapshot("c1", playingAT))
		synctest.Wait()

		results, err := f.tr.Love(ctx, "c1", true)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeSuccess, results.Outcome())
		synctest.Wait()
		_, _, s := f.entry(t, "c1")
		require.NotNil(t, s)
		require.NotNil(t, s.IsLoved)
		assert.True(t, *s.IsLoved)

		require.NoError(t, f.tr.Edit("c1", song.Edit{Artist: "B"}))
		synctest.Wait()
		_, _, s = f.entry(t, "c1")
		require.NotNil(t, s)
		assert.Equal(t, "B", s.Artist)
		assert.True(t, s.IsCorrectedByUser)

		require.NoError(t, f.tr.ResetEdit("c1"))
		synctest.Wait()
		_, _, s = f.entry(t, "c1")
		require.NotNil(t, s)
		assert.Equal(t, "A", s.Artist)

		require.NoError(t, f.tr.Skip("c1"))
		synctest.Wait()
		mode, _, _ := f.entry(t, "c1")
		assert.Equal(t, controller.ModeSkipped, mode)

		require.NoError(t, f.tr.SetEnabled("c1", false))
		synctest.Wait()
		mode, _, s = f.entry(t, "c1")
		assert.Equal(t, controller.ModeDisabled, mode)
		assert.Nil(t, s)
	})
}

func TestTracker_ConcurrentContexts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{})
		defer f.tr.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("c%d", i)
				assert.NoError(t, f.tr.OpenContext(ctx, id, exampleURL))
				assert.NoError(t, f.tr.Snapshot(id, song.Snapshot{
					Artist: "A", Track: fmt.Sprintf("T%d", i), Duration: 200, IsPlaying: true,
				}))
			}()
		}
		wg.Wait()
		synctest.Wait()

		entries, err := f.tr.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 20)
		for _, e := range entries {
			assert.Equal(t, controller.ModePlaying, e.Mode, e.ContextID)
			require.NotNil(t, e.Song, e.ContextID)
		}
	})
}

func TestTracker_Closed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t, testOptions{})
		require.NoError(t, f.tr.OpenContext(context.Background(), "c1", exampleURL))
		f.tr.Close()

		assert.ErrorIs(t, f.tr.OpenContext(context.Background(), "c2", exampleURL), ErrClosed)
		assert.ErrorIs(t, f.tr.Snapshot("c1", playingAT), ErrUnknownContext)
	})
}
