package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates/*.html
var viewsFS embed.FS

var pageTmpl *template.Template

// loadTemplatesFromFS loads page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	pageTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type WelcomeData struct {
	Routes []string
}

// Routes listed on the landing page, in display order.
var Routes = []string{
	"/api/v1.0/precipitation",
	"/api/v1.0/stations",
	"/api/v1.0/tobs",
	"/api/v1.0/<start>",
	"/api/v1.0/<start>/<end>",
}

func RenderWelcome(w io.Writer, data *WelcomeData) error {
	if pageTmpl == nil {
		return errors.New("welcome template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "welcome.html", data)
}
