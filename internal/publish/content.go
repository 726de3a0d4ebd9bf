package publish

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"pagecal/internal/editor"
)

var (
	reImg       = regexp.MustCompile(`(?i)<img\b[^>]*?\bsrc\s*=\s*["']([^"']*)["'][^>]*>`)
	reBlockEnd  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|blockquote|pre|tr)>|<br\s*/?>`)
	reListItem  = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	reStrong    = regexp.MustCompile(`(?i)</?(strong|b)>`)
	reEm        = regexp.MustCompile(`(?i)</?(em|i)>`)
	reManyBlank = regexp.MustCompile(`\n{3,}`)
	reMDImage   = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

	stripPolicy = bluemonday.StrictPolicy()
)

// ContentMarkdown returns page content as markdown. Rich-text markup is
// flattened; plain text and markdown pass through.
func ContentMarkdown(content string) string {
	if editor.LooksLikeMarkup(content) {
		return HTMLToMarkdown(content)
	}
	return strings.TrimSpace(content)
}

// HTMLToMarkdown is a lossy flattening: block structure, emphasis and image
// sources survive; everything else becomes text.
func HTMLToMarkdown(s string) string {
	s = reImg.ReplaceAllString(s, "\n\n![]($1)\n\n")
	s = reListItem.ReplaceAllString(s, "\n- ")
	s = reBlockEnd.ReplaceAllString(s, "\n\n")
	s = reStrong.ReplaceAllString(s, "**")
	s = reEm.ReplaceAllString(s, "_")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = reManyBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// resolveImages rewrites markdown image targets through resolve.
func resolveImages(md string, resolve func(string) string) string {
	if resolve == nil {
		return md
	}
	return reMDImage.ReplaceAllStringFunc(md, func(m string) string {
		sub := reMDImage.FindStringSubmatch(m)
		return "![" + sub[1] + "](" + resolve(sub[2]) + ")"
	})
}
