package prompt

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// renderContext is the data handed to templates/base.tmpl.
type renderContext struct {
	ModeDisplayName     string
	ModeSectionTemplate string
	WindowTokens        int
	Tier                model.Tier
	CheckpointSummaries []model.CheckpointSummary
}

// renderer parses the embedded templates once, in the same
// include-function style as sysprompt.Renderer, and caches the parsed
// set for reuse across render calls.
type renderer struct {
	tmpl *template.Template
}

func newRenderer() (*renderer, error) {
	var selfRef *template.Template
	root := template.New("templates").Funcs(template.FuncMap{
		"include": func(name string, data any) (string, error) {
			var buf strings.Builder
			if err := selfRef.ExecuteTemplate(&buf, name, data); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
	})
	selfRef = root

	paths := []string{baseTemplate}
	for _, mode := range []string{"assistant", "planning", "developer", "debugger"} {
		paths = append(paths, sectionTemplateFor(mode))
	}

	for _, path := range paths {
		data, err := templateFS.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read template %s", path)
		}
		if _, err := root.New(path).Parse(string(data)); err != nil {
			return nil, errors.Wrapf(err, "parse template %s", path)
		}
	}

	return &renderer{tmpl: root}, nil
}

func (r *renderer) render(ctx renderContext) (string, error) {
	var buf strings.Builder
	if err := r.tmpl.ExecuteTemplate(&buf, baseTemplate, ctx); err != nil {
		return "", errors.Wrap(err, "execute base template")
	}
	return buf.String(), nil
}
