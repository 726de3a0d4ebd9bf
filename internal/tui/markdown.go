package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"pagecal/internal/publish"
)

// mdCache keeps one glamour renderer per style and wrap width. Building one
// is slow, and WithAutoStyle would query the terminal background, which
// blocks on some terminals, so styles are always explicit.
type mdCache struct {
	mu sync.Mutex
	m  map[string]*glamour.TermRenderer
}

var previewRenderers = &mdCache{m: map[string]*glamour.TermRenderer{}}

func (c *mdCache) get(style string, width int) (*glamour.TermRenderer, error) {
	key := style + ":" + strconv.Itoa(width)
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.m[key]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(glamour.WithStyles(markdownStyleConfig(style)), glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	c.m[key] = r
	return r, nil
}

// renderContent renders page content for the preview pane. Rich-text markup
// is flattened to markdown first; plain text and markdown pass through.
func renderContent(content string, width int) string {
	md := publish.ContentMarkdown(content)
	if md == "" {
		return ""
	}
	r, err := previewRenderers.get(markdownStyle(), max(width, 10))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// markdownStyleConfig starts from glamour's stock light or dark style and
// recolours it with the TUI palette so the preview matches the panels.
func markdownStyleConfig(style string) ansi.StyleConfig {
	light := strings.EqualFold(strings.TrimSpace(style), "light")
	cfg := styles.DarkStyleConfig
	if light {
		cfg = styles.LightStyleConfig
	}
	pick := func(c lipgloss.AdaptiveColor) *string {
		v := c.Dark
		if light {
			v = c.Light
		}
		return &v
	}
	yes, no := true, false

	fg, accent := pick(colorSurfaceFg), pick(colorAccent)
	for _, b := range []*ansi.StylePrimitive{
		&cfg.Text, &cfg.Heading.StylePrimitive,
		&cfg.H1.StylePrimitive, &cfg.H2.StylePrimitive, &cfg.H3.StylePrimitive,
		&cfg.Code.StylePrimitive, &cfg.CodeBlock.StylePrimitive,
	} {
		b.Color = fg
	}
	cfg.Link.Color, cfg.LinkText.Color = accent, accent
	cfg.Link.Underline = &yes
	// Emphasis keeps the surrounding text colour.
	cfg.Strong.Color, cfg.Emph.Color = nil, nil
	cfg.BlockQuote.Faint = &no

	var margin uint
	cfg.Document.Margin = &margin
	return cfg
}

// markdownStyle picks light or dark: PAGECAL_TUI_MD_STYLE, then the TUI theme
// override, then COLORFGBG ("fg;bg", bg >= 7 is light), then lipgloss's guess.
func markdownStyle() string {
	for _, key := range []string{"PAGECAL_TUI_MD_STYLE", "PAGECAL_TUI_THEME"} {
		if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v == "light" || v == "dark" {
			return v
		}
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil && bg >= 0 {
			if bg >= 7 {
				return "light"
			}
			return "dark"
		}
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
