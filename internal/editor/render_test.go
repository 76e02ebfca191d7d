package editor

import (
	"strings"
	"testing"

	"github.com/snarg/transcript-editor/internal/transcript"
)

func TestRender(t *testing.T) {
	words := transcript.Seed()[:3]
	tests := []struct {
		name    string
		current int
		want    string
	}{
		{"none", -1, "Hello world This"},
		{"first", 0, "[Hello] world This"},
		{"last", 2, "Hello world [This]"},
		{"out_of_range", 3, "Hello world This"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(words, tt.current); got != tt.want {
				t.Errorf("Render(_, %d) = %q, want %q", tt.current, got, tt.want)
			}
		})
	}

	if got := Render(nil, 0); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(transcript.Seed())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 12 {
		t.Fatalf("lines = %d, want 12", len(lines))
	}
	if !strings.Contains(lines[3], "4  is") || !strings.Contains(lines[3], "1500ms") {
		t.Errorf("line 4 = %q, want id 4 word is at 1500ms", lines[3])
	}
}
