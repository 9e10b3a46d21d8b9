// Package prompt implements the mode-aware PromptAssembler (spec §4.6)
// and the ModeStateMachine that drives it. Template embedding and
// rendering are adapted from the teacher's pkg/sysprompt (constants.go's
// embed.FS, renderer.go's text/template + "include" helper), narrowed
// from sysprompt's many feature-flag toggles to a single axis of
// variation: the active Mode selects which section template is
// included in the base prompt.
package prompt

import "embed"

//go:embed templates/base.tmpl templates/sections/*.tmpl
var templateFS embed.FS

const baseTemplate = "templates/base.tmpl"

// sectionTemplateFor maps a Mode to the path of its section template,
// mirroring sysprompt's per-provider template selection in system.go.
func sectionTemplateFor(mode string) string {
	return "templates/sections/" + mode + ".tmpl"
}
