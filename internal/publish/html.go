package publish

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownRenderer = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			emoji.Emoji,
		),
		// Raw HTML passthrough stays off (no html.WithUnsafe).
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	ugcPolicy = bluemonday.UGCPolicy()

	documentTmpl = template.Must(template.New("doc").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{max-width:48rem;margin:2rem auto;padding:0 1rem;font-family:sans-serif;line-height:1.5}img{max-width:100%}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(ugcPolicy.SanitizeBytes(b.Bytes()))
}

// RenderHTMLDocument wraps rendered markdown in a standalone page.
func RenderHTMLDocument(title, md string) ([]byte, error) {
	var buf bytes.Buffer
	err := documentTmpl.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: renderMarkdownHTML(md)})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func htmlPageLink(id int64) string {
	return fmt.Sprintf("pages/%d.html", id)
}
