// Package controller runs the per-context state machine deciding when a song
// started, when it may be scrobbled and what mode the context shows.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/timer"
)

var (
	// ErrNoSong is returned by operations that need a current song.
	ErrNoSong = errors.New("no current song")
	// ErrInvalidSong is returned when the current song was not recognized.
	ErrInvalidSong = errors.New("current song is not recognized")
	// ErrUnknownMode is returned when parsing an unknown mode name.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrClosed is returned once the controller was closed.
	ErrClosed = errors.New("controller closed")
	// ErrNotRetryable is returned when retrying a scrobble that did not fail.
	ErrNotRetryable = errors.New("scrobble is not retryable")
)

// Options is the read-only view of user options consulted by a controller.
type Options interface {
	ScrobblePercent(connectorID string) int
	ScrobblePodcasts(connectorID string) bool
}

// Processor runs the processing pipeline on a song. It returns false when
// ctx was cancelled.
type Processor interface {
	Process(ctx context.Context, s *song.Song) bool
}

// Scrobbler fans song operations out to the scrobbling services.
type Scrobbler interface {
	SendNowPlaying(ctx context.Context, info song.Info) service.Results
	Scrobble(ctx context.Context, info song.Info) service.Results
	// Resubmit retries a scrobble, skipping services whose previous result
	// needs no retry.
	Resubmit(ctx context.Context, info song.Info, previous service.Results) service.Results
	ToggleLove(ctx context.Context, info song.Info, loved bool) service.Results
}

// EditStore persists user edits by song fingerprint.
type EditStore interface {
	SaveEdit(fingerprint string, e song.Edit) error
	RemoveEdit(fingerprint string) error
}

// Connector identifies the site a controller tracks.
type Connector struct {
	ID    string
	Label string
}

// Config holds the collaborators of a controller.
type Config struct {
	Connector Connector
	Options   Options
	Pipeline  Processor
	Scrobbler Scrobbler
	// Edits may be nil, in which case edits only live in memory.
	Edits    EditStore
	Disabled bool
	Logger   *zap.Logger
}

// view is the state published to readers after every transition.
type view struct {
	mode    Mode
	song    *song.Info
	enabled bool
}

// Controller owns the song of one context. Every transition runs on a single
// goroutine; exported methods are safe for concurrent use.
type Controller struct {
	conn      Connector
	opts      Options
	pipeline  Processor
	scrobbler Scrobbler
	edits     EditStore
	logger    *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	inbox     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the run goroutine.
	enabled    bool
	mode       Mode
	song       *song.Song
	playback   *timer.Timer
	replay     *timer.Timer
	songGen    uint64
	procGen    uint64
	cancelProc context.CancelFunc
	replayDue  bool
	attempted  bool

	// lastResults holds the results of the last scrobble attempt.
	lastResults service.Results

	viewMu sync.RWMutex
	view   view

	subsMu sync.RWMutex
	subs   []*Subscription
}

// New creates a controller and starts its event loop.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		conn:      cfg.Connector,
		opts:      cfg.Options,
		pipeline:  cfg.Pipeline,
		scrobbler: cfg.Scrobbler,
		edits:     cfg.Edits,
		logger:    logger.Named("controller").With(zap.String("connector", cfg.Connector.ID)),
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		enabled:   !cfg.Disabled,
		mode:      ModeBase,
		playback:  timer.New(),
		replay:    timer.New(),
	}
	if cfg.Disabled {
		c.mode = ModeDisabled
	}
	c.publish()
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.inbox:
			fn()
			c.publish()
		case <-c.done:
			c.resetState()
			c.publish()
			c.cancel()
			return
		}
	}
}

// call runs fn on the event loop and waits for its result. The published
// view is current when call returns.
func (c *Controller) call(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- func() {
		err := fn()
		c.publish()
		reply <- err
	}:
	case <-c.done:
		return ErrClosed
	}
	return <-reply
}

// post runs fn on the event loop. It is dropped once the controller closed.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// fail logs a rejected operation and returns err.
func (c *Controller) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		c.logger.Debug("operation on closed controller", zap.String("op", op))
		return err
	}
	c.logger.Error("operation rejected", zap.String("op", op), zap.Error(err))
	return err
}

func (c *Controller) publish() {
	var info *song.Info
	if c.song != nil {
		i := c.song.Info()
		info = &i
	}
	c.viewMu.Lock()
	c.view = view{mode: c.mode, song: info, enabled: c.enabled}
	c.viewMu.Unlock()
}

// Connector returns the connector the controller tracks.
func (c *Controller) Connector() Connector {
	return c.conn
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view.mode
}

// CurrentSong returns the current song, or nil.
func (c *Controller) CurrentSong() *song.Info {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	if c.view.song == nil {
		return nil
	}
	info := *c.view.song
	return &info
}

// IsEnabled reports whether snapshots are processed.
func (c *Controller) IsEnabled() bool {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view.enabled
}

// OnSnapshot feeds a playback snapshot reported by the observer.
func (c *Controller) OnSnapshot(snap song.Snapshot) error {
	return c.fail("snapshot", c.call(func() error {
		c.onSnapshot(snap)
		return nil
	}))
}

// SetEnabled enables or disables the controller. Disabling drops the
// current song.
func (c *Controller) SetEnabled(enabled bool) error {
	return c.fail("set enabled", c.call(func() error {
		if enabled == c.enabled {
			return nil
		}
		c.enabled = enabled
		if enabled {
			c.setMode(ModeBase)
			return nil
		}
		c.resetState()
		c.setMode(ModeDisabled)
		return nil
	}))
}

// SkipCurrentSong stops tracking the current song until a new one starts.
func (c *Controller) SkipCurrentSong() error {
	return c.fail("skip", c.call(func() error {
		if c.song == nil {
			return ErrNoSong
		}
		c.skipCurrentSong()
		return nil
	}))
}

// SetUserSongData applies and persists a user correction, then processes
// the song again.
func (c *Controller) SetUserSongData(edit song.Edit) error {
	return c.fail("set user data", c.call(func() error {
		if c.song == nil {
			return ErrNoSong
		}
		if c.song.Flags.IsScrobbled {
			return song.ErrAlreadyScrobbled
		}
		if err := c.saveEdit(edit); err != nil {
			return err
		}
		if err := c.song.SetUserOverrides(edit); err != nil {
			return err
		}
		c.unprocess()
		c.processSong()
		return nil
	}))
}

// ResetSongData drops user corrections of the current song, then processes
// it again.
func (c *Controller) ResetSongData() error {
	return c.fail("reset song data", c.call(func() error {
		if c.song == nil {
			return ErrNoSong
		}
		if c.song.Flags.IsScrobbled {
			return song.ErrAlreadyScrobbled
		}
		if c.edits != nil {
			if err := c.edits.RemoveEdit(c.song.Fingerprint()); err != nil {
				return fmt.Errorf("remove edit: %w", err)
			}
		}
		c.song.ResetInfo()
		c.unprocess()
		c.processSong()
		return nil
	}))
}

// ToggleLove loves or unloves the current song on every service. The
// services are called from the caller's goroutine.
func (c *Controller) ToggleLove(ctx context.Context, loved bool) (service.Results, error) {
	var (
		info song.Info
		gen  uint64
	)
	err := c.call(func() error {
		if c.song == nil {
			return ErrNoSong
		}
		if !c.song.IsValid() {
			return ErrInvalidSong
		}
		info, gen = c.song.Info(), c.songGen
		return nil
	})
	if err != nil {
		return nil, c.fail("toggle love", err)
	}

	results := c.scrobbler.ToggleLove(ctx, info, loved)
	c.logger.Info("love toggled", zap.Bool("loved", loved), zap.Stringer("outcome", results.Outcome()))
	if results.Outcome() != service.OutcomeSuccess {
		return results, nil
	}
	_ = c.call(func() error { //nolint:errcheck // closed controllers have no song to update
		if gen != c.songGen || c.song == nil {
			return nil
		}
		c.song.SetLoveStatus(loved)
		c.emitSongUpdated()
		return nil
	})
	return results, nil
}

// RetryScrobble submits again a song whose scrobble failed.
func (c *Controller) RetryScrobble() error {
	return c.fail("retry scrobble", c.call(func() error {
		if c.song == nil {
			return ErrNoSong
		}
		if c.mode != ModeErr || c.song.Flags.IsScrobbled || !c.playback.IsExpired() || c.lastResults == nil {
			return ErrNotRetryable
		}
		c.submit(c.lastResults)
		return nil
	}))
}

// Subscribe creates a new event subscription.
func (c *Controller) Subscribe() *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	sub := newSubscription()
	c.subs = append(c.subs, sub)
	return sub
}

// Close drops the current song, stops the event loop and closes every
// subscription. In-flight service calls are abandoned.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, sub := range c.subs {
		sub.close()
	}
	c.subs = nil
}

func (c *Controller) onSnapshot(snap song.Snapshot) {
	if !c.enabled {
		return
	}
	if snap.IsEmpty() {
		if c.song != nil {
			c.reset()
		}
		return
	}

	if c.song == nil || c.isNewSong(snap) || c.replayDue {
		replaying := c.replayDue && c.song != nil && !c.isNewSong(snap)
		if !snap.IsPlaying {
			c.reset()
			return
		}
		c.processNewState(snap, replaying)
		return
	}
	c.processCurrentState(snap)
}

func (c *Controller) isNewSong(snap song.Snapshot) bool {
	p := c.song.Parsed
	return p.Artist != snap.Artist ||
		p.Track != snap.Track ||
		p.Album != snap.Album ||
		p.UniqueID != snap.UniqueID
}

func (c *Controller) reset() {
	c.resetState()
	c.setMode(ModeBase)
}

// resetState drops the song and invalidates every pending async result.
func (c *Controller) resetState() {
	var prev *song.Info
	if c.song != nil {
		info := c.song.Info()
		prev = &info
	}
	c.broadcast(func(s *Subscription) { send(s.resetCh, Reset{Previous: prev}) })

	c.playback.Reset()
	c.replay.Reset()
	c.cancelProcessing()
	c.songGen++
	c.song = nil
	c.replayDue = false
	c.attempted = false
	c.lastResults = nil
}

func (c *Controller) processNewState(snap song.Snapshot, replaying bool) {
	c.resetState()

	s := song.New(snap, c.conn.ID, c.conn.Label)
	s.Flags.IsReplaying = replaying
	c.song = s
	c.logger.Info("new song",
		zap.String("artist", snap.Artist),
		zap.String("track", snap.Track),
		zap.Bool("replaying", replaying))

	if snap.IsPodcast && !c.opts.ScrobblePodcasts(c.conn.ID) {
		c.logger.Info("podcast skipped")
		c.skipCurrentSong()
		return
	}

	gen := c.songGen
	c.playback.Start(func() {
		go c.post(func() {
			if gen == c.songGen {
				c.scrobbleSong()
			}
		})
	})
	c.replay.Start(func() {
		go c.post(func() {
			if gen == c.songGen {
				c.logger.Debug("replay due")
				c.replayDue = true
			}
		})
	})

	c.processSong()
}

func (c *Controller) processCurrentState(snap song.Snapshot) {
	s := c.song
	if s.Flags.IsSkipped {
		return
	}

	wasPlaying := s.Parsed.IsPlaying
	s.Parsed.CurrentTime = snap.CurrentTime
	s.Parsed.IsPlaying = snap.IsPlaying
	s.Parsed.TrackArt = snap.TrackArt

	if d := snap.DurationValue(); d > 0 && d != s.Parsed.DurationValue() {
		s.Parsed.Duration = snap.Duration
		if s.IsValid() {
			s.Processed.Duration = d
			c.updateTimers(d)
		}
		c.emitSongUpdated()
	}

	if wasPlaying == snap.IsPlaying {
		return
	}
	if !snap.IsPlaying {
		c.playback.Pause()
		c.replay.Pause()
		return
	}

	c.playback.Resume()
	c.replay.Resume()
	if !s.Flags.IsMarkedAsPlaying && s.IsValid() {
		c.setSongNowPlaying()
		return
	}
	c.setMode(c.mode)
}

// processSong runs the pipeline on a copy of the song and applies the result
// only if the song is still current.
func (c *Controller) processSong() {
	c.setMode(ModeLoading)
	c.cancelProcessing()

	c.procGen++
	gen, pgen := c.songGen, c.procGen
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelProc = cancel
	work := c.song.Clone()

	go func() {
		c.pipeline.Process(ctx, work)
		c.post(func() {
			if gen != c.songGen || pgen != c.procGen || c.song == nil {
				c.logger.Debug("stale pipeline result discarded")
				return
			}
			c.cancelProcessing()
			c.onProcessed(work)
		})
	}()
}

func (c *Controller) cancelProcessing() {
	if c.cancelProc != nil {
		c.cancelProc()
		c.cancelProc = nil
	}
}

func (c *Controller) onProcessed(work *song.Song) {
	s := c.song
	s.MergeProcessed(work)

	if s.Flags.IsSkipped {
		c.setMode(ModeSkipped)
		c.emitSongUpdated()
		return
	}

	if s.IsValid() {
		s.Flags.IsMarkedAsPlaying = false
		c.updateTimers(s.Duration())

		switch {
		case s.Parsed.IsPlaying && !c.playback.IsExpired():
			c.setSongNowPlaying()
		case s.Parsed.IsPlaying:
			// Scrobbling is already due; the timer callback takes over.
			s.Flags.IsMarkedAsPlaying = true
			c.setMode(ModePlaying)
			c.emitNowPlaying(false)
		default:
			c.setMode(ModeBase)
		}
	} else {
		c.logger.Info("song not recognized", zap.String("fingerprint", s.Fingerprint()))
		c.setMode(ModeUnknown)
		info := s.Info()
		c.broadcast(func(sub *Subscription) { send(sub.unrecognizedCh, Unrecognized{Song: info}) })
	}
	c.emitSongUpdated()
}

// unprocess drops derived data so the song can go through the pipeline
// again. Timers keep counting but lose their deadline.
func (c *Controller) unprocess() {
	c.song.ResetData()
	_ = c.playback.ClearDeadline() //nolint:errcheck // stopped timers have no deadline
	_ = c.replay.ClearDeadline()   //nolint:errcheck // same
}

func (c *Controller) updateTimers(d time.Duration) {
	if c.playback.IsExpired() {
		c.logger.Warn("attempt to update expired playback timer")
		return
	}

	delay, ok := timer.ScrobbleDelay(d, c.opts.ScrobblePercent(c.conn.ID))
	if !ok {
		c.logger.Info("song too short to scrobble", zap.Duration("duration", d))
		return
	}
	if err := c.playback.Update(delay); err != nil {
		c.logger.Warn("update playback timer", zap.Error(err))
	}
	if d > 0 {
		if err := c.replay.Update(d); err != nil {
			c.logger.Warn("update replay timer", zap.Error(err))
		}
	}
	c.logger.Debug("timers updated", zap.Duration("scrobble_after", delay), zap.Duration("duration", d))
}

func (c *Controller) setSongNowPlaying() {
	s := c.song
	s.Flags.IsMarkedAsPlaying = true
	info := s.Info()
	gen, pgen := c.songGen, c.procGen

	go func() {
		results := c.scrobbler.SendNowPlaying(c.ctx, info)
		c.post(func() {
			if gen != c.songGen || pgen != c.procGen || c.song == nil {
				return
			}
			// A scrobble or skip happening meanwhile owns the mode.
			if c.song.Flags.IsSkipped || c.attempted {
				return
			}
			ok := results.Outcome() == service.OutcomeSuccess
			if ok {
				c.setMode(ModePlaying)
			} else {
				c.setMode(ModeErr)
			}
			c.emitNowPlaying(ok)
		})
	}()
}

func (c *Controller) scrobbleSong() {
	s := c.song
	if s == nil || s.Flags.IsSkipped || s.Flags.IsScrobbled {
		return
	}
	if !s.IsValid() {
		c.logger.Debug("playback timer fired for unrecognized song")
		return
	}
	c.submit(nil)
}

// submit scrobbles the current song. A non-nil previous makes it a retry of
// that attempt.
func (c *Controller) submit(previous service.Results) {
	c.attempted = true
	info := c.song.Info()
	gen := c.songGen
	c.logger.Info("scrobbling", zap.String("artist", info.Artist), zap.String("track", info.Track),
		zap.Bool("retry", previous != nil))

	go func() {
		var results service.Results
		if previous == nil {
			results = c.scrobbler.Scrobble(c.ctx, info)
		} else {
			results = c.scrobbler.Resubmit(c.ctx, info, previous)
		}
		c.post(func() {
			if gen != c.songGen || c.song == nil {
				return
			}
			c.lastResults = results
			switch results.Outcome() {
			case service.OutcomeSuccess:
				c.song.Flags.IsScrobbled = true
				c.setMode(ModeScrobbled)
				c.emitSongUpdated()
			case service.OutcomeDeclined:
				c.setMode(ModeIgnored)
			default:
				c.logger.Warn("scrobble failed", zap.Any("results", results))
				c.setMode(ModeErr)
			}
		})
	}()
}

func (c *Controller) skipCurrentSong() {
	c.song.Flags.IsSkipped = true
	c.playback.Reset()
	c.replay.Reset()
	c.setMode(ModeSkipped)
	c.emitSongUpdated()
}

func (c *Controller) saveEdit(edit song.Edit) error {
	if c.edits == nil {
		return nil
	}
	fp := c.song.Fingerprint()
	if edit.IsZero() {
		if err := c.edits.RemoveEdit(fp); err != nil {
			return fmt.Errorf("remove edit: %w", err)
		}
		return nil
	}
	if err := c.edits.SaveEdit(fp, edit); err != nil {
		return fmt.Errorf("save edit: %w", err)
	}
	return nil
}

func (c *Controller) setMode(m Mode) {
	prev := c.mode
	c.mode = m
	if prev != m {
		c.logger.Debug("mode changed", zap.Stringer("from", prev), zap.Stringer("to", m))
	}
	var info *song.Info
	if c.song != nil {
		i := c.song.Info()
		info = &i
	}
	c.broadcast(func(s *Subscription) {
		send(s.modeCh, ModeChange{Previous: prev, Current: m, Song: info})
	})
}

func (c *Controller) emitNowPlaying(ok bool) {
	info := c.song.Info()
	c.broadcast(func(s *Subscription) { send(s.nowPlayingCh, NowPlaying{Song: info, Sent: ok}) })
}

func (c *Controller) emitSongUpdated() {
	info := c.song.Info()
	c.broadcast(func(s *Subscription) { send(s.songCh, SongUpdate{Song: info}) })
}

// broadcast publishes the view first so a subscriber reacting to an event
// never reads an older state.
func (c *Controller) broadcast(fn func(*Subscription)) {
	c.publish()
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, s := range c.subs {
		fn(s)
	}
}
