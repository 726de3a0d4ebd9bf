package tui

import (
	"os"
	"strings"
	"sync/atomic"
)

// glyphTable holds every non-ASCII affordance the views draw. Some fonts
// render block and box glyphs badly; PAGECAL_TUI_GLYPHS=ascii swaps the table.
type glyphTable struct {
	edge   string // event category stripe
	bar    string // dashboard bar fill
	bullet string
	hrule  string
	lock   string // read-only field marker
}

var (
	unicodeGlyphs = glyphTable{edge: "▌", bar: "█", bullet: "•", hrule: "─", lock: "🔒"}
	asciiGlyphs   = glyphTable{edge: "|", bar: "#", bullet: "*", hrule: "-", lock: "(ro)"}

	activeGlyphs atomic.Pointer[glyphTable]
)

func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PAGECAL_TUI_GLYPHS"))) {
	case "ascii":
		activeGlyphs.Store(&asciiGlyphs)
	case "", "unicode", "utf8":
		activeGlyphs.Store(&unicodeGlyphs)
	}
}

func glyphs() *glyphTable {
	if g := activeGlyphs.Load(); g != nil {
		return g
	}
	return &unicodeGlyphs
}

func glyphEdge() string   { return glyphs().edge }
func glyphBar() string    { return glyphs().bar }
func glyphBullet() string { return glyphs().bullet }
func glyphHRule() string  { return glyphs().hrule }
func glyphLock() string   { return glyphs().lock }
