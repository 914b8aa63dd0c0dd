package notify

import (
	"strings"

	"github.com/llehouerou/scrobbled/internal/song"
)

const defaultTimeout = 5000

// NowPlaying builds the notification shown when a song starts.
func NowPlaying(info song.Info, icon string) Notification {
	var body []string
	if info.Artist != "" {
		body = append(body, info.Artist)
	}
	if info.Album != "" {
		body = append(body, info.Album)
	}
	if info.ConnectorLabel != "" {
		body = append(body, "on "+info.ConnectorLabel)
	}
	return Notification{
		Title:   info.Track,
		Body:    strings.Join(body, " - "),
		Icon:    icon,
		Timeout: defaultTimeout,
		Urgency: UrgencyLow,
	}
}

// Unrecognized builds the notification shown when a song was not
// recognized.
func Unrecognized(info song.Info) Notification {
	body := "The song could not be recognized; edit it to scrobble it."
	if info.ConnectorLabel != "" {
		body = "The song playing on " + info.ConnectorLabel + " could not be recognized; edit it to scrobble it."
	}
	return Notification{
		Title:   "Song not recognized",
		Body:    body,
		Timeout: defaultTimeout,
		Urgency: UrgencyNormal,
	}
}
