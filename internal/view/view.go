// Package view renders the HTML pages. Templates are embedded in the binary
// and parsed once at startup; each page is combined with the shared layout.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/carlog/carlog/internal/model"
)

// Page names.
const (
	PageHome         = "home"
	PageRegister     = "register"
	PageLogin        = "login"
	PageDashboard    = "dashboard"
	PageAddService   = "add_service"
	PageViewServices = "view_services"
	PageError        = "error"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data passed to every template.
type Page struct {
	Title   string
	User    *model.User
	Flashes []model.Flash
	Records []*model.MaintenanceRecord
	// Form holds values to refill inputs after a failed submission.
	Form map[string]string
	// Today is the default value of date inputs.
	Today string
	// Status and Message describe error pages.
	Status  int
	Message string
}

// Renderer executes page templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"alertClass": func(category string) string {
		switch category {
		case model.FlashSuccess, model.FlashDanger, model.FlashInfo:
			return "alert-" + category
		default:
			return "alert-info"
		}
	},
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	return newFromFS(templateFS, "templates")
}

func newFromFS(fsys fs.FS, dir string) (*Renderer, error) {
	layout := path.Join(dir, "layout.html")

	names, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layout {
			continue
		}
		page := strings.TrimSuffix(path.Base(name), ".html")
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		pages[page] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page name with the given status. The template is executed
// into a buffer first so a failure never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data *Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if data == nil {
		data = &Page{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
