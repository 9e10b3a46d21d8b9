package compression

import (
	"fmt"
	"strings"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// summarizationInstruction is adapted from the teacher's CompactPrompt
// (pkg/llm/prompts/prompts.go): the same "analyze, then structure a
// summary that preserves everything a continuation needs" shape, scaled
// down from a coding-agent's section list (files touched, errors and
// fixes, tool use) to a plain conversational context, since this engine
// has no tool-execution history to account for.
const summarizationInstruction = `Summarize the conversation excerpt below, preserving everything a continuation would need: the user's goals, decisions made, facts established, and open threads.

Target roughly %.0f%% of the excerpt's original length. Do not add commentary about the summarization itself — produce only the summary text.`

// buildSummarizationPrompt renders the instruction text for a given
// target ratio. It returns the instruction only; the messages to
// summarize are not part of it.
func buildSummarizationPrompt(targetRatio float64) string {
	return fmt.Sprintf(summarizationInstruction, targetRatio*100)
}

// renderTranscript renders a message range as flat text, one
// "role: content" line per message.
func renderTranscript(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
