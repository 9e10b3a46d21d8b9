package prompt

import (
	"github.com/ctxengine/ctxengine/pkg/model"
)

// modeDisplayNames mirrors the teacher's PromptConfig feature-display
// approach (sysprompt/config.go) at the scale this engine needs: one
// label per Mode rather than a feature-flag list.
var modeDisplayNames = map[model.Mode]string{
	model.ModeAssistant: "Assistant",
	model.ModePlanning:  "Planning",
	model.ModeDeveloper: "Developer",
	model.ModeDebugger:  "Debugger",
}

// Assembler renders the system prompt for a session's current mode and
// window size (spec §4.6: "produces the system prompt from the current
// Mode and the checkpoint summaries currently active").
type Assembler struct {
	r *renderer
}

// NewAssembler builds an Assembler, parsing the embedded templates.
func NewAssembler() (*Assembler, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Assembler{r: r}, nil
}

// Assemble renders the system prompt for mode, windowTokens, and the
// checkpoint summaries currently held in ActiveContext.
func (a *Assembler) Assemble(mode model.Mode, windowTokens int, checkpoints []model.CheckpointSummary) (string, error) {
	displayName, ok := modeDisplayNames[mode]
	if !ok {
		displayName = string(mode)
	}
	return a.r.render(renderContext{
		ModeDisplayName:     displayName,
		ModeSectionTemplate: sectionTemplateFor(string(mode)),
		WindowTokens:        windowTokens,
		Tier:                model.TierForWindow(windowTokens),
		CheckpointSummaries: checkpoints,
	})
}
