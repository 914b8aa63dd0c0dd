// Package connectors maps page URLs to the sites scrobbled tracks.
package connectors

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidPattern is returned for a malformed match pattern.
var ErrInvalidPattern = errors.New("invalid match pattern")

// Definition declares a connector.
type Definition struct {
	ID      string
	Label   string
	Matches []string
}

// Connector is a compiled definition.
type Connector struct {
	ID      string
	Label   string
	Matches []string

	patterns []*regexp.Regexp
}

// Builtin lists the connectors known without configuration.
var Builtin = []Definition{
	{ID: "youtube", Label: "YouTube", Matches: []string{"*://www.youtube.com/*", "*://m.youtube.com/*"}},
	{ID: "youtube-music", Label: "YouTube Music", Matches: []string{"*://music.youtube.com/*"}},
	{ID: "soundcloud", Label: "SoundCloud", Matches: []string{"*://soundcloud.com/*"}},
	{ID: "bandcamp", Label: "Bandcamp", Matches: []string{"*://*.bandcamp.com/*"}},
	{ID: "deezer", Label: "Deezer", Matches: []string{"*://www.deezer.com/*"}},
	{ID: "spotify", Label: "Spotify", Matches: []string{"*://open.spotify.com/*"}},
	{ID: "eggs", Label: "Eggs", Matches: []string{"*://eggs.mu/*"}},
}

// Registry holds the enabled connectors in lookup order.
type Registry struct {
	connectors []Connector
}

// New compiles defs. Definitions whose ID is listed in disabled are left
// out; a later definition replaces an earlier one with the same ID.
func New(defs []Definition, disabled []string) (*Registry, error) {
	r := &Registry{}
	for _, d := range defs {
		if d.ID == "" {
			return nil, errors.New("connector without id")
		}
		if slices.Contains(disabled, d.ID) {
			continue
		}
		c, err := compile(d)
		if err != nil {
			return nil, err
		}
		if i := slices.IndexFunc(r.connectors, func(x Connector) bool { return x.ID == d.ID }); i >= 0 {
			r.connectors[i] = c
			continue
		}
		r.connectors = append(r.connectors, c)
	}
	return r, nil
}

func compile(d Definition) (Connector, error) {
	c := Connector{ID: d.ID, Label: d.Label, Matches: slices.Clone(d.Matches)}
	if c.Label == "" {
		c.Label = d.ID
	}
	for _, m := range d.Matches {
		re, err := compilePattern(m)
		if err != nil {
			return Connector{}, fmt.Errorf("connector %s: %w", d.ID, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// compilePattern turns a "<scheme>://<host>/<path>" match pattern into a
// regexp. The scheme "*" matches http and https, a host "*.example.com"
// matches the domain and its subdomains, and "*" in the path matches
// anything.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q: missing scheme", ErrInvalidPattern, pattern)
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok || host == "" {
		return nil, fmt.Errorf("%w: %q: missing path", ErrInvalidPattern, pattern)
	}

	var b strings.Builder
	b.WriteString("^")
	switch scheme {
	case "*":
		b.WriteString("https?")
	case "http", "https":
		b.WriteString(scheme)
	default:
		return nil, fmt.Errorf("%w: %q: unsupported scheme", ErrInvalidPattern, pattern)
	}
	b.WriteString("://")

	switch {
	case host == "*":
		b.WriteString("[^/]+")
	case strings.HasPrefix(host, "*."):
		b.WriteString(`([^/]+\.)?`)
		b.WriteString(regexp.QuoteMeta(host[2:]))
	case strings.Contains(host, "*"):
		return nil, fmt.Errorf("%w: %q: wildcard inside host", ErrInvalidPattern, pattern)
	default:
		b.WriteString(regexp.QuoteMeta(host))
	}

	b.WriteString("/")
	b.WriteString(strings.ReplaceAll(regexp.QuoteMeta(path), `\*`, ".*"))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// MatchesURL reports whether the connector handles rawURL.
func (c Connector) MatchesURL(rawURL string) bool {
	u, _, _ := strings.Cut(rawURL, "#")
	if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://"), "/") {
		u += "/"
	}
	for _, re := range c.patterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// ByURL returns the first connector handling rawURL.
func (r *Registry) ByURL(rawURL string) (Connector, bool) {
	for _, c := range r.connectors {
		if c.MatchesURL(rawURL) {
			return c, true
		}
	}
	return Connector{}, false
}

// ByID returns the connector with the given ID.
func (r *Registry) ByID(id string) (Connector, bool) {
	i := slices.IndexFunc(r.connectors, func(c Connector) bool { return c.ID == id })
	if i < 0 {
		return Connector{}, false
	}
	return r.connectors[i], true
}

// All returns every enabled connector.
func (r *Registry) All() []Connector {
	return slices.Clone(r.connectors)
}
