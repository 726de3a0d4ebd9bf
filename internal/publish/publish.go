// Package publish writes a range of pages as a static markdown tree: an
// index.md agenda and one file per page.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagecal/internal/model"
)

type WriteOptions struct {
	RenderOptions
	Title     string
	Overwrite bool
	// HTML also writes index.html and pages/<id>.html.
	HTML bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

func WriteRange(pages []model.Page, start, end time.Time, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --dir")
	}
	if end.Before(start) {
		return WriteResult{}, errors.New("range end is before its start")
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(filepath.Join(toDir, "pages"), 0o755); err != nil {
		return WriteResult{}, err
	}

	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "Week of " + start.In(opt.loc()).Format("2 January 2006")
	}
	indexPath := filepath.Join(toDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(title, start, end, pages, opt.RenderOptions)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on the first error; files already written stay.
	written := []string{indexPath}
	for _, p := range sortedPages(pages) {
		path := filepath.Join(toDir, filepath.FromSlash(PageFileName(p.ID)))
		if err := writeFile(path, []byte(RenderPageMarkdown(p, opt.RenderOptions)), opt.Overwrite); err != nil {
			return WriteResult{Written: written}, err
		}
		written = append(written, path)
	}
	if !opt.HTML {
		return WriteResult{Written: written}, nil
	}

	htmlOpt := opt.RenderOptions
	htmlOpt.PageLink = htmlPageLink
	doc, err := RenderHTMLDocument(title, RenderIndexMarkdown(title, start, end, pages, htmlOpt))
	if err != nil {
		return WriteResult{Written: written}, err
	}
	indexHTML := filepath.Join(toDir, "index.html")
	if err := writeFile(indexHTML, doc, opt.Overwrite); err != nil {
		return WriteResult{Written: written}, err
	}
	written = append(written, indexHTML)
	for _, p := range sortedPages(pages) {
		doc, err := RenderHTMLDocument(p.Title, RenderPageMarkdown(p, opt.RenderOptions))
		if err != nil {
			return WriteResult{Written: written}, err
		}
		path := filepath.Join(toDir, filepath.FromSlash(htmlPageLink(p.ID)))
		if err := writeFile(path, doc, opt.Overwrite); err != nil {
			return WriteResult{Written: written}, err
		}
		written = append(written, path)
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
