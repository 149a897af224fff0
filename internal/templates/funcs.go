package templates

import (
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateFuncMap returns all helper functions for HTML templates.
func TemplateFuncMap() template.FuncMap {
	fm := sprig.HtmlFuncMap()
	fm["splitTrim"] = splitTrim
	return fm
}

// TextFuncMap returns all helper functions for prompt templates.
func TextFuncMap() texttemplate.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["splitTrim"] = splitTrim
	return fm
}

// splitTrim splits s on sep, trims every item and drops empty ones.
func splitTrim(sep, s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
