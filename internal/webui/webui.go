// Package webui renders the legacy connect page. The page predates the JSON
// API and is kept only for old tester builds; new clients use /presence and
// /users.
package webui

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// PageData is embedded into the page for the in-browser provider client.
type PageData struct {
	APIKey    string
	SessionID string
	Token     string
}

func Render(w io.Writer, data PageData) error {
	return pageTemplate.Execute(w, data)
}
