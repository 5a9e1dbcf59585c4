// Package handler contains the HTTP handlers for the portfolio tracker.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (URL params, query, JSON body)
//  2. Call the service layer
//  3. Write the response (status code, headers, body)
//
// Handlers hold no business rules. They depend on small interfaces
// (Portfolio, Market, Authenticator, IdentityProvider) so tests can pass
// fakes instead of the real services.
package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/sakif/portfolio-tracker/internal/auth"
)

// PageHandler renders the two HTML pages. Templates are parsed once at
// startup and reused for every request.
type PageHandler struct {
	index     *template.Template
	portfolio *template.Template
	logger    *slog.Logger
}

// NewPageHandler parses the page templates from templateDir.
//
// TEMPLATE COMPOSITION:
// base.html defines the page shell with a {{template "content" .}}
// placeholder, and each page file fills it with {{define "content"}}. Every
// page is parsed together with base.html into its own template set, because
// two pages in one set would both define "content".
func NewPageHandler(templateDir string, logger *slog.Logger) (*PageHandler, error) {
	parse := func(page string) (*template.Template, error) {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, page),
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		return tmpl, nil
	}

	index, err := parse("index.html")
	if err != nil {
		return nil, err
	}
	portfolio, err := parse("portfolio.html")
	if err != nil {
		return nil, err
	}

	return &PageHandler{index: index, portfolio: portfolio, logger: logger}, nil
}

type pageData struct {
	Title    string
	LoggedIn bool
}

// HandleIndex serves the landing page.
//
// HTTP: GET /   (OptionalAuth: shows "open portfolio" when logged in)
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	_, loggedIn := auth.UserIDFromContext(r.Context())
	h.render(w, h.index, pageData{Title: "Portfolio Tracker", LoggedIn: loggedIn})
}

// HandlePortfolio serves the portfolio page.
//
// HTTP: GET /portfolio   (RequireLogin: anonymous users go to /login)
func (h *PageHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.portfolio, pageData{Title: "My Portfolio", LoggedIn: true})
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleHealth reports that the process is up.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
