package ask

import (
	"fmt"
	"strings"
)

// formatInstruction is appended to every system prompt so answers render as
// structured markup in the chat surface.
const formatInstruction = "Format your answer as structured Markdown: use headings, lists, and code blocks where they aid readability."

// contextSeparator divides retrieved chunk texts in the prompt.
const contextSeparator = "\n\n---\n\n"

// composeSystem returns the effective system prompt.
func composeSystem(systemPrompt string) string {
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return formatInstruction
	}
	return systemPrompt + "\n\n" + formatInstruction
}

// composeUser builds the user-facing prompt. With context chunks the
// question is grounded on them; without, the question is passed through.
func composeUser(contexts []string, question string) string {
	if len(contexts) == 0 {
		return question
	}
	return fmt.Sprintf(
		"Use the following context to answer the question.\n\nContext:\n%s\n\nQuestion: %s",
		strings.Join(contexts, contextSeparator), question)
}
