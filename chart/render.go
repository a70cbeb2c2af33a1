package chart

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
)

//go:embed templates
var templatesDir embed.FS

const templateName = "barchart.html"

type Renderer struct {
	tmpl       *template.Template
	liveReload bool
}

func NewRenderer(liveReload bool) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesDir, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, liveReload: liveReload}, nil
}

func (r *Renderer) Render(w io.Writer, doc Document) error {
	doc.LiveReload = r.liveReload
	if err := r.tmpl.ExecuteTemplate(w, templateName, doc); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return nil
}

// WriteFile renders doc and replaces path in a single rename, so readers see
// either the previous chart or the new one. Returns the number of bytes written.
func (r *Renderer) WriteFile(path string, doc Document) (int, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create chart directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := f.Write(buf.Bytes())
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write chart: %w", err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		return 0, fmt.Errorf("chmod chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close chart: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return 0, fmt.Errorf("replace chart: %w", err)
	}
	return n, nil
}
