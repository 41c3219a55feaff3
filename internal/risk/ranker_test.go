package risk

import (
	"io"
	"testing"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRanker(t *testing.T, fanIn int) *Ranker {
	t.Helper()
	r, err := NewRanker(fanIn, "", quietLogger())
	require.NoError(t, err)
	return r
}

func entity(id, file string) models.Entity {
	return models.Entity{ID: id, Name: id, Qualified: id, Kind: models.EntityFunction, FilePath: file}
}

func TestRankDirectCallerIsHigh(t *testing.T) {
	g := graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			entity("target", "core.py"),
			entity("caller", "api.py"),
		},
		Edges: []models.Edge{
			{Kind: models.RelationCalls, SourceID: "caller", TargetID: "target"},
		},
	})

	ranking, err := newTestRanker(t, 5).Rank(g, "target")
	require.NoError(t, err)
	require.Len(t, ranking.Assessments, 1)

	a := ranking.Assessments[0]
	assert.Equal(t, "caller", a.EntityID)
	assert.Equal(t, LevelHigh, a.Level)
	assert.Contains(t, a.Justification, "directly calls")
}

func TestRankSubclassIsHigh(t *testing.T) {
	g := graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			entity("Base", "base.py"),
			entity("Child", "child.py"),
		},
		Edges: []models.Edge{
			{Kind: models.RelationInherits, SourceID: "Child", TargetID: "Base"},
		},
	})

	ranking, err := newTestRanker(t, 5).Rank(g, "Base")
	require.NoError(t, err)
	require.Len(t, ranking.Assessments, 1)
	assert.Equal(t, LevelHigh, ranking.Assessments[0].Level)
	assert.Contains(t, ranking.Assessments[0].Justification, "inherits")
}

func TestRankTwoHopImporterIsMedium(t *testing.T) {
	// indirect -> middle -> target, both links imports/calls.
	g := graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			entity("target", "core.py"),
			entity("middle", "mid.py"),
			entity("indirect", "outer.py"),
		},
		Edges: []models.Edge{
			{Kind: models.RelationImports, SourceID: "middle", TargetID: "target"},
			{Kind: models.RelationImports, SourceID: "indirect", TargetID: "middle"},
		},
	})

	ranking, err := newTestRanker(t, 5).Rank(g, "target")
	require.NoError(t, err)
	require.Len(t, ranking.Assessments, 2)

	levels := map[string]Level{}
	for _, a := range ranking.Assessments {
		levels[a.EntityID] = a.Level
	}
	// A direct import is not a direct call, so it stays MEDIUM.
	assert.Equal(t, LevelMedium, levels["middle"])
	assert.Equal(t, LevelMedium, levels["indirect"])
}

func TestRankFanInThreshold(t *testing.T) {
	doc := &models.GraphDocument{
		Entities: []models.Entity{
			entity("target", "core.py"),
			entity("hub", "hub.py"),
		},
		Edges: []models.Edge{
			{Kind: models.RelationImports, SourceID: "hub", TargetID: "target"},
		},
	}
	// Many entities depend on hub, pushing it over the threshold.
	for _, id := range []string{"u1", "u2", "u3"} {
		doc.Entities = append(doc.Entities, entity(id, id+".py"))
		doc.Edges = append(doc.Edges, models.Edge{
			Kind: models.RelationCalls, SourceID: id, TargetID: "hub",
		})
	}
	g := graph.New(doc)

	ranking, err := newTestRanker(t, 2).Rank(g, "target")
	require.NoError(t, err)

	var hub *Assessment
	for i := range ranking.Assessments {
		if ranking.Assessments[i].EntityID == "hub" {
			hub = &ranking.Assessments[i]
		}
	}
	require.NotNil(t, hub)
	assert.Equal(t, LevelHigh, hub.Level)
	assert.Equal(t, 3, hub.FanIn)
}

func TestRankTestPathAlwaysLow(t *testing.T) {
	g := graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			entity("target", "core.py"),
			{ID: "test_caller", Name: "test_caller", Qualified: "test_caller",
				Kind: models.EntityFunction, FilePath: "tests/test_core.py"},
		},
		Edges: []models.Edge{
			{Kind: models.RelationCalls, SourceID: "test_caller", TargetID: "target"},
		},
	})

	ranking, err := newTestRanker(t, 5).Rank(g, "target")
	require.NoError(t, err)
	require.Len(t, ranking.Assessments, 1)

	// A direct caller would be HIGH, but test code is capped.
	a := ranking.Assessments[0]
	assert.Equal(t, LevelLow, a.Level)
	assert.Contains(t, a.Justification, "test code")
}

func TestRankDeterministic(t *testing.T) {
	doc := &models.GraphDocument{Entities: []models.Entity{entity("target", "core.py")}}
	for _, id := range []string{"c", "a", "b"} {
		doc.Entities = append(doc.Entities, entity(id, id+".py"))
		doc.Edges = append(doc.Edges, models.Edge{
			Kind: models.RelationCalls, SourceID: id, TargetID: "target",
		})
	}
	g := graph.New(doc)
	r := newTestRanker(t, 5)

	first, err := r.Rank(g, "target")
	require.NoError(t, err)
	second, err := r.Rank(g, "target")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var ids []string
	for _, a := range first.Assessments {
		ids = append(ids, a.EntityID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRankCloserDependentSortsFirstWithinLevel(t *testing.T) {
	// Both dependents land on MEDIUM, but zz_direct is one hop away
	// while aa_indirect is two. Proximity wins over lexical order.
	g := graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			entity("target", "core.py"),
			entity("zz_direct", "zz.py"),
			entity("aa_indirect", "aa.py"),
		},
		Edges: []models.Edge{
			{Kind: models.RelationImports, SourceID: "zz_direct", TargetID: "target"},
			{Kind: models.RelationImports, SourceID: "aa_indirect", TargetID: "zz_direct"},
		},
	})

	ranking, err := newTestRanker(t, 5).Rank(g, "target")
	require.NoError(t, err)
	require.Len(t, ranking.Assessments, 2)

	assert.Equal(t, "zz_direct", ranking.Assessments[0].EntityID)
	assert.Equal(t, 1, ranking.Assessments[0].Distance)
	assert.Equal(t, "aa_indirect", ranking.Assessments[1].EntityID)
	assert.Equal(t, 2, ranking.Assessments[1].Distance)
	assert.Equal(t, ranking.Assessments[0].Level, ranking.Assessments[1].Level)
}

func TestRankUnknownSeed(t *testing.T) {
	g := graph.New(&models.GraphDocument{})
	_, err := newTestRanker(t, 5).Rank(g, "ghost")
	assert.Error(t, err)
}
