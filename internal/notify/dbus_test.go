//go:build linux

package notify

import (
	"os"
	"testing"
)

func newSessionNotifier(t *testing.T) Notifier {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}
	n, err := New()
	if err != nil {
		t.Skipf("no notification server: %v", err)
	}
	return n
}

func TestSlotOverSessionBus(t *testing.T) {
	n := newSessionNotifier(t)
	slot := NewSlot(n)

	if err := slot.Show(Notification{Title: "First", Body: "Band - Record", Timeout: 2000}); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	first := slot.id
	if first == 0 {
		t.Fatal("Show() left no notification id")
	}

	if err := slot.Show(Notification{Title: "Second", Body: "Band - Record", Timeout: 1000}); err != nil {
		t.Fatalf("second Show() error: %v", err)
	}
	if slot.id != first {
		t.Errorf("replacing notification got id=%d, want id=%d", slot.id, first)
	}

	if err := slot.Clear(); err != nil {
		t.Errorf("Clear() error: %v", err)
	}
}
