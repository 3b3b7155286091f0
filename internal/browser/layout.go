package browser

import "strings"

// Layout describes how the client presents the dialog.
type Layout struct {
	// TV selects the remote-control layout: full-screen dialog, and the
	// whole card is the activation target.
	TV bool `json:"tv"`
	// Slow marks memory-constrained clients, which get smaller pages and
	// downscaled previews.
	Slow bool `json:"slow"`
	// ExternalLinks allows linking a card image to the full-size original.
	ExternalLinks bool `json:"external_links"`
}

// Dialog sizes passed to the dialog shell.
const (
	DialogSmall      = "small"
	DialogFullscreen = "fullscreen"
)

// DialogSize returns the dialog presentation for this layout.
func (l Layout) DialogSize() string {
	if l.TV {
		return DialogFullscreen
	}
	return DialogSmall
}

// ParseLayout reads a comma separated list of layout flags such as
// "tv,slow". Unknown flags are ignored. "desktop" is the default layout
// and enables external links.
func ParseLayout(s string) Layout {
	l := Layout{ExternalLinks: true}
	for _, f := range strings.Split(strings.ToLower(s), ",") {
		switch strings.TrimSpace(f) {
		case "tv":
			l.TV = true
			l.ExternalLinks = false
		case "slow":
			l.Slow = true
		case "nolinks":
			l.ExternalLinks = false
		}
	}
	return l
}
