// Package web holds the pages rendered by the verification endpoint
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses every page. It panics on a broken template since they
// are compiled into the binary.
func Templates() *template.Template {
	return template.Must(template.ParseFS(files, "templates/*.html"))
}
