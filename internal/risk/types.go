// Package risk ranks how critical each code entity is relative to a
// proposed change site, using only graph structure. The ranking is
// deterministic: same graph and seed, same output.
package risk

import "github.com/codeatlas-ai/codeatlas/internal/models"

// Level is the criticality of one impacted entity.
type Level string

const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

// rank orders levels for sorting, highest first.
func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 0
	case LevelMedium:
		return 1
	default:
		return 2
	}
}

// Assessment is one entity's criticality with a human-readable reason.
type Assessment struct {
	EntityID      string `json:"entity_id"`
	Name          string `json:"name"`
	FilePath      string `json:"file_path"`
	Level         Level  `json:"level"`
	Distance      int    `json:"distance"`
	FanIn         int    `json:"fan_in"`
	Justification string `json:"justification"`
}

// Ranking is the full result for one seed entity.
type Ranking struct {
	Seed        string       `json:"seed"`
	Assessments []Assessment `json:"assessments"`
}

// impact records how the reverse traversal reached an entity.
type impact struct {
	id       string
	distance int
	kinds    map[models.RelationKind]bool
}
