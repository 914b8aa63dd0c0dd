package connectors

import (
	"errors"
	"testing"
)

func TestConnector_MatchesURL(t *testing.T) {
	reg, err := New([]Definition{
		{ID: "yt", Matches: []string{"*://www.youtube.com/*"}},
		{ID: "bc", Matches: []string{"*://*.bandcamp.com/*"}},
		{ID: "radio", Matches: []string{"https://radio.example.com/player/*"}},
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		url    string
		wantID string
	}{
		{"https://www.youtube.com/watch?v=abc", "yt"},
		{"http://www.youtube.com/", "yt"},
		{"https://www.youtube.com", "yt"},
		{"https://music.youtube.com/watch", ""},
		{"https://artist.bandcamp.com/track/song", "bc"},
		{"https://bandcamp.com/discover", "bc"},
		{"https://evilbandcamp.com/", ""},
		{"https://radio.example.com/player/live#top", "radio"},
		{"http://radio.example.com/player/live", ""},
		{"https://radio.example.com/about", ""},
		{"ftp://www.youtube.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			c, ok := reg.ByURL(tt.url)
			if tt.wantID == "" {
				if ok {
					t.Errorf("ByURL(%q) = %q, want no match", tt.url, c.ID)
				}
				return
			}
			if !ok || c.ID != tt.wantID {
				t.Errorf("ByURL(%q) = %q, %v, want %q", tt.url, c.ID, ok, tt.wantID)
			}
		})
	}
}

func TestNew_DisabledAndOverride(t *testing.T) {
	defs := append([]Definition{}, Builtin...)
	defs = append(defs, Definition{ID: "youtube", Label: "My YouTube", Matches: []string{"*://yt.example.com/*"}})

	reg, err := New(defs, []string{"spotify"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, ok := reg.ByID("spotify"); ok {
		t.Error("disabled connector still registered")
	}
	c, ok := reg.ByID("youtube")
	if !ok || c.Label != "My YouTube" {
		t.Errorf("ByID(youtube) = %+v, want override", c)
	}
	if _, ok := reg.ByURL("https://www.youtube.com/watch"); ok {
		t.Error("overridden patterns still match")
	}
	if len(reg.All()) != len(Builtin)-1 {
		t.Errorf("All() has %d connectors, want %d", len(reg.All()), len(Builtin)-1)
	}
}

func TestNew_InvalidPatterns(t *testing.T) {
	patterns := []string{
		"www.youtube.com/*",
		"*://www.youtube.com",
		"ws://host/*",
		"*://ho*st/*",
	}
	for _, p := range patterns {
		_, err := New([]Definition{{ID: "x", Matches: []string{p}}}, nil)
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("New(%q) error = %v, want ErrInvalidPattern", p, err)
		}
	}
}
