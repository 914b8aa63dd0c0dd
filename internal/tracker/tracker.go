// Package tracker owns the controller of every open context and mirrors
// their state into the context store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/connectors"
	"github.com/llehouerou/scrobbled/internal/contextstore"
	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/notify"
	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
)

const artTimeout = 5 * time.Second

var (
	// ErrUnknownContext is returned for a context that was never opened or
	// was closed.
	ErrUnknownContext = errors.New("unknown context")
	// ErrUnsupported is returned when the context shows a page no connector
	// handles.
	ErrUnsupported = errors.New("context is not on a supported site")
	// ErrClosed is returned once the tracker was closed.
	ErrClosed = errors.New("tracker closed")

	errStale = errors.New("stale context")
)

// Options are the user options consulted by the tracker and its
// controllers.
type Options interface {
	controller.Options
	NowPlayingNotifications(connectorID string) bool
	UnrecognizedNotifications(connectorID string) bool
}

// PipelineFunc returns the processing pipeline used for a connector.
type PipelineFunc func(connectorID string) controller.Processor

// Config holds the collaborators of a tracker.
type Config struct {
	Registry  *connectors.Registry
	Options   Options
	Pipelines PipelineFunc
	Scrobbler controller.Scrobbler
	Edits     controller.EditStore
	// Backend defaults to an in-memory backend.
	Backend contextstore.Backend
	// Notifier may be nil to disable notifications.
	Notifier notify.Notifier
	// Art may be nil, in which case notifications have no cover.
	Art    *notify.ArtCache
	Logger *zap.Logger
}

type tracked struct {
	id        string
	url       string // guarded by Tracker.mu
	connector connectors.Connector
	ctrl      *controller.Controller // nil on unsupported pages
	done      chan struct{}
	// slot is shared by every page of the context; nil without a notifier.
	slot *notify.Slot
}

// stop closes the controller and waits for its watcher.
func (tc *tracked) stop() {
	if tc.ctrl == nil {
		return
	}
	tc.ctrl.Close()
	<-tc.done
}

// Tracker maps context IDs to controllers.
type Tracker struct {
	registry  *connectors.Registry
	opts      Options
	pipelines PipelineFunc
	scrobbler controller.Scrobbler
	edits     controller.EditStore
	notifier  notify.Notifier
	art       *notify.ArtCache
	logger    *zap.Logger
	store     *contextstore.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	contexts map[string]*tracked
	closed   bool
}

// New creates a tracker.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := cfg.Backend
	if backend == nil {
		backend = contextstore.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		registry:  cfg.Registry,
		opts:      cfg.Options,
		pipelines: cfg.Pipelines,
		scrobbler: cfg.Scrobbler,
		edits:     cfg.Edits,
		notifier:  cfg.Notifier,
		art:       cfg.Art,
		logger:    logger.Named("tracker"),
		ctx:       ctx,
		cancel:    cancel,
		contexts:  make(map[string]*tracked),
	}
	t.store = contextstore.New(backend, t, logger)
	return t
}

// IsActive reports whether the context is open on a supported page. Entries
// of other contexts are pruned from the store.
func (t *Tracker) IsActive(_ context.Context, contextID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tc, ok := t.contexts[contextID]
	return ok && tc.ctrl != nil
}

// OpenContext starts tracking a context showing rawURL. Opening a known
// context behaves like NavigateContext.
func (t *Tracker) OpenContext(ctx context.Context, contextID, rawURL string) error {
	return t.navigate(ctx, contextID, rawURL, true)
}

// NavigateContext records that a context now shows rawURL. The controller
// and its song survive navigation within the same connector.
func (t *Tracker) NavigateContext(ctx context.Context, contextID, rawURL string) error {
	return t.navigate(ctx, contextID, rawURL, false)
}

func (t *Tracker) navigate(ctx context.Context, contextID, rawURL string, create bool) error {
	conn, supported := t.registry.ByURL(rawURL)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	old, known := t.contexts[contextID]
	if !known && !create {
		t.mu.Unlock()
		return ErrUnknownContext
	}
	if known && (old.ctrl != nil) == supported && old.connector.ID == conn.ID {
		old.url = rawURL
		t.mu.Unlock()
		return t.sync(ctx, old)
	}
	tc := t.start(contextID, rawURL, conn, supported)
	if known {
		tc.slot = old.slot
	} else if t.notifier != nil {
		tc.slot = notify.NewSlot(t.notifier)
	}
	t.contexts[contextID] = tc
	t.mu.Unlock()

	if known {
		old.stop()
	}
	t.logger.Debug("context attached",
		zap.String("context", contextID),
		zap.String("connector", conn.ID),
		zap.Bool("supported", supported),
	)
	return t.sync(ctx, tc)
}

// start creates the controller of a context and its watcher. Called with
// t.mu held.
func (t *Tracker) start(contextID, rawURL string, conn connectors.Connector, supported bool) *tracked {
	tc := &tracked{id: contextID, url: rawURL, done: make(chan struct{})}
	if !supported {
		close(tc.done)
		return tc
	}
	tc.connector = conn
	tc.ctrl = controller.New(controller.Config{
		Connector: controller.Connector{ID: conn.ID, Label: conn.Label},
		Options:   t.opts,
		Pipeline:  t.pipelines(conn.ID),
		Scrobbler: t.scrobbler,
		Edits:     t.edits,
		Logger:    t.logger.With(zap.String("context", contextID)),
	})
	sub := tc.ctrl.Subscribe()
	go t.watch(tc, sub)
	return tc
}

// CloseContext stops tracking a context and removes its entry.
func (t *Tracker) CloseContext(ctx context.Context, contextID string) error {
	t.mu.Lock()
	tc, ok := t.contexts[contextID]
	delete(t.contexts, contextID)
	t.mu.Unlock()
	if !ok {
		return ErrUnknownContext
	}

	tc.stop()
	if tc.slot != nil {
		if err := tc.slot.Clear(); err != nil {
			t.logger.Debug("close notification", zap.String("context", contextID), zap.Error(err))
		}
	}
	return t.store.Remove(ctx, contextID)
}

// Snapshot feeds a playback snapshot to the controller of a context.
func (t *Tracker) Snapshot(contextID string, snap song.Snapshot) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.OnSnapshot(snap)
}

// Skip stops scrobbling the current song of a context.
func (t *Tracker) Skip(contextID string) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.SkipCurrentSong()
}

// Love loves or unloves the current song of a context.
func (t *Tracker) Love(ctx context.Context, contextID string, loved bool) (service.Results, error) {
	c, err := t.controller(contextID)
	if err != nil {
		return nil, err
	}
	return c.ToggleLove(ctx, loved)
}

// Edit applies a user correction to the current song of a context.
func (t *Tracker) Edit(contextID string, edit song.Edit) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.SetUserSongData(edit)
}

// ResetEdit drops the user correction of the current song of a context.
func (t *Tracker) ResetEdit(contextID string) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.ResetSongData()
}

// Retry submits again a failed scrobble.
func (t *Tracker) Retry(contextID string) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.RetryScrobble()
}

// SetEnabled enables or disables scrobbling in a context.
func (t *Tracker) SetEnabled(contextID string, enabled bool) error {
	c, err := t.controller(contextID)
	if err != nil {
		return err
	}
	return c.SetEnabled(enabled)
}

// Entries returns the state of every context open on a supported page.
func (t *Tracker) Entries(ctx context.Context) ([]contextstore.Entry, error) {
	return t.store.Get(ctx)
}

// Entry returns the state of one context. An open context on an unsupported
// page has no stored entry and reads as Unsupported.
func (t *Tracker) Entry(ctx context.Context, contextID string) (contextstore.Entry, error) {
	e, ok, err := t.store.Lookup(ctx, contextID)
	if err != nil {
		return contextstore.Entry{}, err
	}
	if ok {
		return e, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	tc, open := t.contexts[contextID]
	if !open || tc.ctrl != nil {
		return contextstore.Entry{}, ErrUnknownContext
	}
	return contextstore.Entry{ContextID: contextID, Mode: controller.ModeUnsupported, URL: tc.url}, nil
}

// Close stops every controller. Entries are kept in the backend.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	all := make([]*tracked, 0, len(t.contexts))
	for _, tc := range t.contexts {
		all = append(all, tc)
	}
	t.contexts = make(map[string]*tracked)
	t.mu.Unlock()

	for _, tc := range all {
		tc.stop()
	}
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) controller(contextID string) (*controller.Controller, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tc, ok := t.contexts[contextID]
	if !ok {
		return nil, ErrUnknownContext
	}
	if tc.ctrl == nil {
		return nil, ErrUnsupported
	}
	return tc.ctrl, nil
}

// current returns the URL of tc if it is still the tracked state of its
// context.
func (t *Tracker) current(tc *tracked) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.contexts[tc.id] != tc {
		return "", false
	}
	return tc.url, true
}

// sync writes the state of tc into the store. The entry of an unsupported
// context is dropped by the store's pruning.
func (t *Tracker) sync(ctx context.Context, tc *tracked) error {
	if tc.ctrl == nil {
		_, err := t.store.Get(ctx)
		return err
	}
	err := t.store.Update(ctx, tc.id, func(e contextstore.Entry) (contextstore.Entry, error) {
		u, ok := t.current(tc)
		if !ok {
			return e, errStale
		}
		e.URL = u
		e.Mode = tc.ctrl.Mode()
		e.ConnectorID = tc.connector.ID
		e.Song = tc.ctrl.CurrentSong()
		return e, nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update context %s: %w", tc.id, err)
	}
	return nil
}

// watch mirrors controller events into the store until the controller is
// closed.
func (t *Tracker) watch(tc *tracked, sub *controller.Subscription) {
	defer close(tc.done)
	for {
		select {
		case <-sub.Done:
			return
		case <-sub.Reset:
		case <-sub.ModeChanged:
		case <-sub.SongUpdated:
		case e := <-sub.NowPlaying:
			t.notifyNowPlaying(tc, e.Song)
		case e := <-sub.Unrecognized:
			t.notifyUnrecognized(tc, e.Song)
		}
		if err := t.sync(t.ctx, tc); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn("failed to store context state",
				zap.String("context", tc.id),
				zap.Error(err),
			)
		}
	}
}

func (t *Tracker) notifyNowPlaying(tc *tracked, info song.Info) {
	if tc.slot == nil || !t.opts.NowPlayingNotifications(tc.connector.ID) {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		var icon string
		if t.art != nil {
			ctx, cancel := context.WithTimeout(t.ctx, artTimeout)
			defer cancel()
			p, err := t.art.Path(ctx, info.TrackArt)
			if err != nil {
				t.logger.Debug("cover unavailable", zap.String("url", info.TrackArt), zap.Error(err))
			}
			icon = p
		}
		t.show(tc, notify.NowPlaying(info, icon))
	}()
}

func (t *Tracker) notifyUnrecognized(tc *tracked, info song.Info) {
	if tc.slot == nil || !t.opts.UnrecognizedNotifications(tc.connector.ID) {
		return
	}
	t.show(tc, notify.Unrecognized(info))
}

// show displays n in place of the previous notification of the context.
func (t *Tracker) show(tc *tracked, n notify.Notification) {
	if err := tc.slot.Show(n); err != nil {
		t.logger.Warn("notification failed", zap.String("context", tc.id), zap.Error(err))
	}
}
