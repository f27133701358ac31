// package progress turns raw extractor output lines into [models.ProgressEvent] values
package progress

import (
	"strings"

	"github.com/desertthunder/audiograb/internal/models"
)

// Strategy parses one line. ok is false when the strategy has no opinion about the line.
type Strategy func(line string) (ev models.ProgressEvent, ok bool)

// Pipeline tries each strategy in order and returns the first match, or an empty event.
type Pipeline []Strategy

// DefaultPipeline tries the machine-readable schema first and falls back to text heuristics.
var DefaultPipeline = Pipeline{jsonStrategy, ParseText}

// Parse runs the pipeline over line. It never fails: noise yields an empty event.
func (p Pipeline) Parse(line string) models.ProgressEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.ProgressEvent{}
	}
	for _, strategy := range p {
		if ev, ok := strategy(line); ok {
			return ev
		}
	}
	return models.ProgressEvent{}
}

// ParseLine parses a single logical line with [DefaultPipeline].
func ParseLine(line string) models.ProgressEvent {
	return DefaultPipeline.Parse(line)
}

func jsonStrategy(line string) (models.ProgressEvent, bool) {
	if !strings.HasPrefix(line, "{") {
		return models.ProgressEvent{}, false
	}
	return ParseJSON(line)
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
