package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

var pageTemplates = []string{
	"landing.html",
	"public.html",
	"unauthorized.html",
	"dashboard.html",
	"waiting.html",
	"transition.html",
	"diagnostic.html",
}

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// PageData is the model of every server-rendered page.
type PageData struct {
	AppName string
	Title   string
	Error   string

	// Refresh, when set, makes the page reload itself at that URL after a second.
	Refresh   string
	ReloadURL string

	IsAuthenticated bool
	Name            string
	Email           string
	Role            string
	DocumentNumber  string
	Dashboard       string
}

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "layout.html", name)
}

func loadTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("[server loadTemplates] %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

func (s *Server) renderPage(w http.ResponseWriter, name string, status int, data PageData) {
	tmpl, ok := s.templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("Unknown template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}
