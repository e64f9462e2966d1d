// Package render produces the HTML for frontend pages. Handlers treat
// rendering as an opaque function from page data to a string, so the
// template engine can be swapped (or faked in tests) without touching
// request logic or caching.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer turns named page data into a rendered document.
type Renderer interface {
	RenderPage(name string, data any) (string, error)
}

// HTMLRenderer renders the embedded html/template set.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded templates.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	printer := message.NewPrinter(language.English)
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"formatCount": func(n int64) string {
			return printer.Sprintf("%d", n)
		},
		"joinTags": func(tags []string) string {
			return strings.Join(tags, ", ")
		},
	}

	tmpl, err := template.New("pages").Funcs(funcs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// RenderPage executes the named page template.
func (r *HTMLRenderer) RenderPage(name string, data any) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.ExecuteTemplate(&sb, name+".html.tmpl", data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return sb.String(), nil
}
