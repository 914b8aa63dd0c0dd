// internal/controller/mode.go
package controller

import "fmt"

// Mode is the state of a controller. Exactly one mode is active at a time.
type Mode int

const (
	ModeBase Mode = iota
	ModeDisabled
	ModeLoading
	ModePlaying
	ModeScrobbled
	ModeSkipped
	ModeIgnored
	ModeUnknown
	ModeErr
	ModeUnsupported
)

var modeNames = [...]string{
	ModeBase:        "Base",
	ModeDisabled:    "Disabled",
	ModeLoading:     "Loading",
	ModePlaying:     "Playing",
	ModeScrobbled:   "Scrobbled",
	ModeSkipped:     "Skipped",
	ModeIgnored:     "Ignored",
	ModeUnknown:     "Unknown",
	ModeErr:         "Err",
	ModeUnsupported: "Unsupported",
}

// String returns the mode name.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= 0 && int(m) < len(modeNames)
}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return ModeBase, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
