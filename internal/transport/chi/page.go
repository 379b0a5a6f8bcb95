package chi

import (
	"embed"
	"html/template"
	"io"

	"github.com/kailas-cloud/vibematch/internal/domain/view/render"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// pageData is what the page template sees.
type pageData struct {
	ViewID string
	render.Page
}

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() *pageRenderer {
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		// Suggestion gradients are compile-time constants.
		"gradient": func(s string) template.CSS { return template.CSS(s) }, //nolint:gosec // constant input
	}).ParseFS(templateFS, "templates/*.html.tmpl"))
	return &pageRenderer{tmpl: tmpl}
}

// Render writes the page for view id.
func (p *pageRenderer) Render(w io.Writer, id string, page render.Page) error {
	return p.tmpl.ExecuteTemplate(w, "page.html.tmpl", pageData{ViewID: id, Page: page})
}
