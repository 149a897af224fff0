package templates

import (
	"html/template"
	"io/fs"
	"path"
	texttemplate "text/template"
)

// ParsePageTemplates parses the preview and sandbox pages.
func ParsePageTemplates(webFS fs.FS, funcMap template.FuncMap) *template.Template {
	return template.Must(
		template.New("pages").
			Funcs(funcMap).
			ParseFS(webFS,
				path.Join("web/templates", "preview.gohtml"),
				path.Join("web/templates", "sandbox.gohtml"),
			),
	)
}

// ParsePromptTemplates parses the LLM prompt templates.
func ParsePromptTemplates(webFS fs.FS, funcMap texttemplate.FuncMap) *texttemplate.Template {
	return texttemplate.Must(
		texttemplate.New("prompts").
			Funcs(funcMap).
			ParseFS(webFS, path.Join("web/templates", "prompt.tmpl")),
	)
}
