package llm

import (
	"fmt"
	"strings"

	"github.com/triagestack/triage-engine/internal/extract"
	"github.com/triagestack/triage-engine/internal/models"
)

// BuildPrompt renders the analysis prompt for one event. The output is
// deterministic for identical inputs so cached signatures stay meaningful.
func BuildPrompt(event models.ErrorEvent, code models.CodeContext) string {
	var b strings.Builder

	b.WriteString("You are a senior engineer performing root-cause analysis of a production error.\n\n")
	fmt.Fprintf(&b, "Service: %s\n", event.Service)
	fmt.Fprintf(&b, "Error type: %s\n", event.ErrorType)
	fmt.Fprintf(&b, "Message: %s\n", event.Message)
	if event.FilePath != "" {
		fmt.Fprintf(&b, "Location: %s:%d\n", event.FilePath, event.Line)
	}

	if frame, ok := extract.TopFrame(event.StackTrace, event.FilePath); ok && frame.Function != "" {
		fmt.Fprintf(&b, "Failing function: %s\n", frame.Function)
	}
	if event.StackTrace != "" {
		b.WriteString("\nStack trace:\n")
		b.WriteString(strings.TrimSpace(event.StackTrace))
		b.WriteString("\n")
	}

	if code.Snippet != "" {
		fmt.Fprintf(&b, "\nSource context (%s, branch %s):\n", code.Repository, code.Branch)
		b.WriteString(code.Snippet)
		b.WriteString("\n")
	}

	b.WriteString("\nAnswer using exactly these labeled sections:\n")
	b.WriteString("ROOT CAUSE: <one paragraph>\n")
	b.WriteString("SUGGESTIONS:\n- <one fix per line>\n")
	fmt.Fprintf(&b, "CATEGORY: <one of: %s>\n", strings.Join(models.Categories, ", "))
	b.WriteString("IMPACT: <LOW|MEDIUM|HIGH|CRITICAL>\n")
	b.WriteString("TAGS: <comma separated>\n")
	b.WriteString("REFERENCES:\n- <links or docs, one per line>\n")
	b.WriteString("CONFIDENCE: <0.0-1.0>\n")

	return b.String()
}
