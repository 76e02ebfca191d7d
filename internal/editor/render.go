package editor

import (
	"fmt"
	"strings"

	"github.com/snarg/transcript-editor/internal/transcript"
)

// Render returns the sequence as one line with the word at index current
// wrapped in brackets. current outside the sequence highlights nothing.
func Render(words []transcript.Word, current int) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == current {
			b.WriteByte('[')
			b.WriteString(w.Text)
			b.WriteByte(']')
			continue
		}
		b.WriteString(w.Text)
	}
	return b.String()
}

// RenderTable lists each word with its id and timing, one per line.
func RenderTable(words []transcript.Word) string {
	var b strings.Builder
	for _, w := range words {
		fmt.Fprintf(&b, "%4d  %-16s %6dms %5dms\n", w.ID, w.Text, w.StartTime, w.Duration)
	}
	return b.String()
}
