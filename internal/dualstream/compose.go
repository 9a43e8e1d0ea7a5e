package dualstream

import (
	"fmt"
	"strings"
)

// Compose builds the merged prompt sent to the agent. Section order is a
// contract with the downstream prompt: Speech, Additional Input, Code,
// Explanation. Empty sections are omitted; the Additional Input section
// appears only when explicit text differs from the tracked speech content.
func Compose(speech, extraText, code, language, explanation string) string {
	var sections []string
	if speech != "" {
		sections = append(sections, "Speech: "+speech)
	}
	if extraText != "" && extraText != speech {
		sections = append(sections, "Additional Input: "+extraText)
	}
	if code != "" {
		sections = append(sections, fmt.Sprintf("Code (%s):\n```%s\n%s\n```", language, language, code))
	}
	if explanation != "" {
		sections = append(sections, "Explanation: "+explanation)
	}
	if len(sections) == 0 {
		return "No content provided"
	}
	return strings.Join(sections, "\n\n")
}
