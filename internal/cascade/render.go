package cascade

import (
	"strings"
	"unicode/utf8"
)

// NoContextMessage is rendered in place of an empty context.
const NoContextMessage = "No relevant screen history was found for this question."

const (
	frameTimeLayout = "2006-01-02 15:04"
	previewLimit    = 200
	previewIndent   = "  "
)

// Render formats a context as sectioned plain text for a language model.
// Only non-empty tiers get a section; sections are separated by one blank line.
func Render(c *Context) string {
	if c == nil || c.IsEmpty() {
		return NoContextMessage
	}

	var b strings.Builder
	first := true
	for _, t := range Tiers {
		frames := c.Frames(t)
		if len(frames) == 0 {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false

		b.WriteString(t.Label())
		b.WriteString(":\n")
		for _, f := range frames {
			writeFrame(&b, f)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeFrame(b *strings.Builder, f Frame) {
	parts := []string{"[" + f.Timestamp.Format(frameTimeLayout) + "]"}
	if f.AppName != "" {
		parts = append(parts, f.AppName)
	}
	if f.WindowTitle != "" {
		parts = append(parts, "- "+f.WindowTitle)
	}
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n")

	b.WriteString(previewIndent)
	b.WriteString(`"`)
	b.WriteString(preview(f.Text))
	b.WriteString("\"\n")
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLimit {
		return text
	}
	return string([]rune(text)[:previewLimit]) + Ellipsis
}
