// Package notify shows desktop notifications about the songs being
// scrobbled.
package notify

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned by New when no notification server can be
// reached.
var ErrUnavailable = errors.New("notifications unavailable")

// Urgency is the freedesktop urgency hint.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification is one desktop notification.
type Notification struct {
	Title string
	Body  string
	// Icon is a local file path or an icon name.
	Icon string
	// Timeout in milliseconds; -1 lets the server decide.
	Timeout int32
	// ReplacesID is the notification updated in place, 0 for a new one.
	ReplacesID uint32
	Urgency    Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify shows n and returns its server ID, 0 when nothing was shown.
	Notify(n Notification) (uint32, error)
	Close(id uint32) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(Notification) (uint32, error) { return 0, nil }
func (Nop) Close(uint32) error                  { return nil }

// Slot is a single place on screen: every notification shown through it
// replaces the previous one. Safe for concurrent use.
type Slot struct {
	notifier Notifier

	mu sync.Mutex
	id uint32
}

// NewSlot returns a slot over notifier.
func NewSlot(notifier Notifier) *Slot {
	return &Slot{notifier: notifier}
}

// Show displays n in place of the notification currently in the slot.
func (s *Slot) Show(n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ReplacesID = s.id
	id, err := s.notifier.Notify(n)
	if err != nil {
		return err
	}
	if id != 0 {
		s.id = id
	}
	return nil
}

// Clear closes the notification in the slot, if any.
func (s *Slot) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == 0 {
		return nil
	}
	id := s.id
	s.id = 0
	return s.notifier.Close(id)
}
