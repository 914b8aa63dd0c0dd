package controller

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	Reset        <-chan Reset
	NowPlaying   <-chan NowPlaying
	Unrecognized <-chan Unrecognized
	ModeChanged  <-chan ModeChange
	SongUpdated  <-chan SongUpdate
	Done         <-chan struct{}

	// Internal write channels
	resetCh        chan Reset
	nowPlayingCh   chan NowPlaying
	unrecognizedCh chan Unrecognized
	modeCh         chan ModeChange
	songCh         chan SongUpdate
	doneCh         chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		resetCh:        make(chan Reset, eventBufferSize),
		nowPlayingCh:   make(chan NowPlaying, eventBufferSize),
		unrecognizedCh: make(chan Unrecognized, eventBufferSize),
		modeCh:         make(chan ModeChange, eventBufferSize),
		songCh:         make(chan SongUpdate, eventBufferSize),
		doneCh:         make(chan struct{}),
	}
	s.Reset = s.resetCh
	s.NowPlaying = s.nowPlayingCh
	s.Unrecognized = s.unrecognizedCh
	s.ModeChanged = s.modeCh
	s.SongUpdated = s.songCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// send delivers an event without blocking; events are dropped when the
// subscriber's buffer is full.
func send[T any](ch chan T, e T) {
	select {
	case ch <- e:
	default:
	}
}
