package risk

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultFanInThreshold marks an entity highly depended-upon when more
// than this many edges point at it.
const DefaultFanInThreshold = 5

// DefaultTestPattern matches conventional test file locations. Entities
// in test code never rank above LOW regardless of structure.
const DefaultTestPattern = `(^|/)(tests?|__tests__|testing)(/|$)|_test\.|\.test\.|(^|/)test_`

const maxImpactDepth = 2

// Ranker assigns criticality levels to the entities impacted by a change
// to one seed entity.
type Ranker struct {
	fanInThreshold int
	testPattern    *regexp.Regexp
	logger         *logrus.Logger
}

// NewRanker creates a ranker. fanInThreshold <= 0 selects the default;
// testPattern empty selects the default pattern.
func NewRanker(fanInThreshold int, testPattern string, logger *logrus.Logger) (*Ranker, error) {
	if fanInThreshold <= 0 {
		fanInThreshold = DefaultFanInThreshold
	}
	if testPattern == "" {
		testPattern = DefaultTestPattern
	}
	re, err := regexp.Compile(testPattern)
	if err != nil {
		return nil, fmt.Errorf("compile test pattern: %w", err)
	}
	return &Ranker{fanInThreshold: fanInThreshold, testPattern: re, logger: logger}, nil
}

// Rank resolves the seed and classifies every entity that depends on it.
// Results are sorted by level (HIGH first), then by entity id, so the
// ranking is stable across runs.
func (r *Ranker) Rank(g *graph.Graph, seed string) (*Ranking, error) {
	root, err := g.Resolve(seed)
	if err != nil {
		return nil, err
	}

	impacted := impactedSet(g, root.ID, maxImpactDepth)
	ranking := &Ranking{Seed: root.ID}

	for _, imp := range impacted {
		entity, ok := g.Entity(imp.id)
		if !ok {
			continue
		}
		level, why := r.classify(g, entity, imp, root)
		ranking.Assessments = append(ranking.Assessments, Assessment{
			EntityID:      entity.ID,
			Name:          entity.Name,
			FilePath:      entity.FilePath,
			Level:         level,
			Distance:      imp.distance,
			FanIn:         g.FanIn(entity.ID),
			Justification: why,
		})
	}

	sort.Slice(ranking.Assessments, func(i, j int) bool {
		a, b := ranking.Assessments[i], ranking.Assessments[j]
		if a.Level != b.Level {
			return a.Level.rank() < b.Level.rank()
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.EntityID < b.EntityID
	})

	r.logger.WithFields(logrus.Fields{
		"seed":     root.ID,
		"impacted": len(ranking.Assessments),
	}).Debug("criticality ranking complete")
	return ranking, nil
}

// classify applies the level rules in order. The test-path cap runs last
// and overrides everything above it.
func (r *Ranker) classify(g *graph.Graph, entity *models.Entity, imp *impact, seed *models.Entity) (Level, string) {
	level, why := LevelLow, fmt.Sprintf("depends on %s at distance %d", seed.Name, imp.distance)

	if imp.distance <= 2 && (imp.kinds[models.RelationCalls] || imp.kinds[models.RelationImports]) {
		level = LevelMedium
		why = fmt.Sprintf("reaches %s within %d hops through call or import chains", seed.Name, imp.distance)
	}
	if imp.distance == 1 && (imp.kinds[models.RelationCalls] || imp.kinds[models.RelationInherits]) {
		level = LevelHigh
		if imp.kinds[models.RelationInherits] {
			why = fmt.Sprintf("directly inherits from %s", seed.Name)
		} else {
			why = fmt.Sprintf("directly calls %s", seed.Name)
		}
	}
	if fanIn := g.FanIn(entity.ID); fanIn > r.fanInThreshold {
		level = LevelHigh
		why = fmt.Sprintf("depended on by %d other entities (threshold %d) and affected by %s", fanIn, r.fanInThreshold, seed.Name)
	}

	if r.testPattern.MatchString(entity.FilePath) {
		return LevelLow, fmt.Sprintf("test code: %s", why)
	}
	return level, why
}
