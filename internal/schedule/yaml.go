package schedule

import (
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"bus-router/internal/transit"
)

// File is the YAML schedule document.
type File struct {
	Lines []LineSpec `yaml:"lines" validate:"required,min=1,dive"`
}

// LineSpec describes one line; gaps are in minutes.
type LineSpec struct {
	ID    int    `yaml:"id" validate:"gt=0"`
	Stops []int  `yaml:"stops" validate:"required,min=1"`
	Gaps  []int  `yaml:"gaps" validate:"required,eqfield=Stops,dive,gte=0"`
	Start string `yaml:"start" validate:"required"`
	Fare  int    `yaml:"fare" validate:"gte=0"`
}

// ParseYAML decodes and validates a YAML schedule.
func ParseYAML(r io.Reader) ([]transit.Line, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("schedule: empty document")
		}
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	v := validator.New()
	if err := v.Struct(f); err != nil {
		return nil, fmt.Errorf("validate schedule: %w", err)
	}
	return f.ToLines()
}

// ToLines converts the document into validated lines.
func (f File) ToLines() ([]transit.Line, error) {
	lines := make([]transit.Line, 0, len(f.Lines))
	for _, spec := range f.Lines {
		start, err := transit.ParseClock(spec.Start)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", spec.ID, err)
		}
		gaps := make([]time.Duration, len(spec.Gaps))
		for i, g := range spec.Gaps {
			gaps[i] = time.Duration(g) * time.Minute
		}
		lines = append(lines, transit.Line{
			ID:           spec.ID,
			Stops:        append([]int(nil), spec.Stops...),
			Gaps:         gaps,
			ServiceStart: start,
			Fare:         spec.Fare,
		})
	}
	if err := transit.ValidateLines(lines); err != nil {
		return nil, err
	}
	return lines, nil
}
