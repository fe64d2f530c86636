package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bus-router/internal/transit"
)

// Load reads a schedule file, choosing the format by extension: .yml and
// .yaml are YAML, anything else is the plain text format.
func Load(path string) ([]transit.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []transit.Line
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		lines, err = ParseYAML(f)
	default:
		lines, err = ParseText(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}
