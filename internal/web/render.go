package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/internal/session"
)

const csrfFieldName = "csrf_token"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var embeddedStatic embed.FS

var staticFS = mustSub(embeddedStatic, "static")

var pages = parsePages("home", "login", "denied", "dashboard", "promoters")

// parsePages pairs the shared layout with each page so every page can define
// its own title and content blocks.
func parsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return out
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

type flash struct {
	Kind    string
	Message string
}

type pageData struct {
	Page      string
	Session   *models.Session
	CSRFField template.HTML
	Flash     string
	FlashKind string
	Year      int
	Content   any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, content any) {
	s.renderFlash(w, r, status, page, content, flash{})
}

func (s *Server) renderFlash(w http.ResponseWriter, r *http.Request, status int, page string, content any, f flash) {
	tmpl, ok := pages[page]
	if !ok {
		s.log.Error("unknown page template", "page", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Page:      page,
		Session:   session.FromContext(r.Context()),
		CSRFField: csrf.TemplateField(r),
		Flash:     f.Message,
		FlashKind: f.Kind,
		Year:      s.now().Year(),
		Content:   content,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("render page", "page", page, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode json", "err", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeFieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Fields: fields})
}
