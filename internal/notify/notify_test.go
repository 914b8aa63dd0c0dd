package notify

import (
	"errors"
	"testing"

	"github.com/llehouerou/scrobbled/internal/song"
)

type recordingNotifier struct {
	nextID uint32
	shown  []Notification
	closed []uint32
	err    error
}

func (r *recordingNotifier) Notify(n Notification) (uint32, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.shown = append(r.shown, n)
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	r.nextID++
	return r.nextID, nil
}

func (r *recordingNotifier) Close(id uint32) error {
	r.closed = append(r.closed, id)
	return nil
}

func TestSlot_ReplacesPrevious(t *testing.T) {
	r := &recordingNotifier{}
	slot := NewSlot(r)

	for _, title := range []string{"One", "Two", "Three"} {
		if err := slot.Show(Notification{Title: title}); err != nil {
			t.Fatalf("Show(%q) error: %v", title, err)
		}
	}

	want := []uint32{0, 1, 1}
	for i, n := range r.shown {
		if n.ReplacesID != want[i] {
			t.Errorf("notification %d ReplacesID = %d, want %d", i, n.ReplacesID, want[i])
		}
	}

	if err := slot.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := slot.Clear(); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
	if len(r.closed) != 1 || r.closed[0] != 1 {
		t.Errorf("closed = %v, want [1]", r.closed)
	}

	_ = slot.Show(Notification{Title: "Four"})
	if last := r.shown[len(r.shown)-1]; last.ReplacesID != 0 {
		t.Errorf("after Clear ReplacesID = %d, want 0", last.ReplacesID)
	}
}

func TestSlot_KeepsIDOnFailure(t *testing.T) {
	r := &recordingNotifier{}
	slot := NewSlot(r)
	_ = slot.Show(Notification{Title: "One"})

	r.err = errors.New("server gone")
	if err := slot.Show(Notification{Title: "Two"}); err == nil {
		t.Fatal("expected error")
	}

	r.err = nil
	_ = slot.Show(Notification{Title: "Three"})
	if last := r.shown[len(r.shown)-1]; last.ReplacesID != 1 {
		t.Errorf("ReplacesID = %d, want 1", last.ReplacesID)
	}
}

func TestSlot_Nop(t *testing.T) {
	slot := NewSlot(Nop{})
	if err := slot.Show(Notification{Title: "One"}); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	if err := slot.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
}

func TestNowPlaying(t *testing.T) {
	n := NowPlaying(song.Info{Artist: "Band", Track: "Song", Album: "Record", ConnectorLabel: "Radio"}, "/tmp/a.jpg")
	if n.Title != "Song" {
		t.Errorf("Title = %q, want %q", n.Title, "Song")
	}
	if n.Body != "Band - Record - on Radio" {
		t.Errorf("Body = %q", n.Body)
	}
	if n.Icon != "/tmp/a.jpg" {
		t.Errorf("Icon = %q", n.Icon)
	}

	n = NowPlaying(song.Info{Artist: "Band", Track: "Song"}, "")
	if n.Body != "Band" {
		t.Errorf("Body without album = %q", n.Body)
	}
}

func TestUnrecognized(t *testing.T) {
	n := Unrecognized(song.Info{ConnectorLabel: "Radio"})
	if n.Urgency != UrgencyNormal {
		t.Errorf("Urgency = %d, want UrgencyNormal", n.Urgency)
	}
	if n.Title == "" || n.Body == "" {
		t.Error("empty notification")
	}
}
