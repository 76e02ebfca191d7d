package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/snarg/transcript-editor/internal/transcript"
	"gopkg.in/yaml.v3"
)

// Load reads a word sequence from a JSON or YAML file. The format is chosen
// by extension: .yaml and .yml are YAML, everything else is JSON. The result
// is validated before it is returned.
func Load(path string) ([]transcript.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	words, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return words, nil
}

// Parse decodes a word sequence in the given format ("json" or "yaml").
func Parse(data []byte, format string) ([]transcript.Word, error) {
	var words []transcript.Word
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", format)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no words", transcript.ErrInvalidSequence)
	}
	if err := transcript.Validate(words); err != nil {
		return nil, err
	}
	return words, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
