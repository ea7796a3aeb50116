package gateway

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// templates holds the login and home pages, parsed once at startup.
var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// loginData renders the login page. Logout and Invalid surface the
// post-redirect indicators.
type loginData struct {
	Logout  bool
	Invalid bool
}

// homeData renders the home page with the apps the user may access.
type homeData struct {
	Username string
	Apps     []appLink
}

type appLink struct {
	Name        string
	Description string
	URL         string
}

// renderTemplate executes a page template. A render failure after the
// header is written cannot be recovered, so it is only logged.
func (s *Server) renderTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("rendering template", "template", name, "error", err)
	}
}
