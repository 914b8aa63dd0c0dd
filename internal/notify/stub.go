//go:build !linux

package notify

// New reports ErrUnavailable: desktop notifications are only sent over the
// Linux session bus.
func New() (Notifier, error) {
	return nil, ErrUnavailable
}
