//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpSongSkip,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpSongSkip,
			err:      errors.New("no current song"),
			expected: "Failed to skip song: no current song",
		},
		{
			name:     "edit operation",
			op:       OpSongEdit,
			err:      errors.New("song already scrobbled"),
			expected: "Failed to edit song: song already scrobbled",
		},
		{
			name:     "account operation",
			op:       OpAuthLink,
			err:      errors.New("invalid user token"),
			expected: "Failed to link account: invalid user token",
		},
		{
			name:     "pending operation",
			op:       OpPendingFlush,
			err:      errors.New("network error"),
			expected: "Failed to submit pending scrobbles: network error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpContextOpen,
			context:  "tab-1",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpContextOpen,
			context:  "tab-1",
			err:      errors.New("unknown context"),
			expected: "Failed to open context 'tab-1': unknown context",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpAuthUnlink,
			context:  "",
			err:      errors.New("not linked"),
			expected: "Failed to unlink account: not linked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}
