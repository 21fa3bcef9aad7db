package server

import (
	"embed"
	"html/template"

	"github.com/dustin/go-humanize"

	"github.com/uxsense/backend/report"
	"github.com/uxsense/backend/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"score":     report.FormatScore,
	"hostname":  report.Hostname,
	"thousands": thousands,
	"inc":       func(i int) int { return i + 1 },
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

// thousands formats n with comma separators
func thousands(n int) string {
	return humanize.Comma(int64(n))
}

// pageData is passed to every template
type pageData struct {
	Title  string
	User   session.UserIdentity
	View   session.View
	Notice string
	Error  string
	Model  string

	// login form echo
	Email string
	Name  string
}
