package agent

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/llm"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/risk"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays canned responses; the last one repeats when the
// script runs out. It records the most recent request for transcript
// assertions.
type scriptedClient struct {
	responses []*llm.Response
	err       error
	calls     int
	lastReq   llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	return c.responses[idx], nil
}

func (c *scriptedClient) Close() error { return nil }

type stubGraphs struct {
	g *graph.Graph
}

func (s *stubGraphs) Graph(models.RepositoryHandle) (*graph.Graph, error) {
	return s.g, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, string, int) ([]search.Passage, error) {
	return nil, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testGraph() *graph.Graph {
	return graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			{ID: "lib.py::util", Name: "util", Qualified: "util", Kind: models.EntityFunction, FilePath: "lib.py"},
			{ID: "app.py::main", Name: "main", Qualified: "main", Kind: models.EntityFunction, FilePath: "app.py"},
		},
		Edges: []models.Edge{
			{Kind: models.RelationCalls, SourceID: "app.py::main", TargetID: "lib.py::util", Line: 3},
		},
	})
}

func newTestSession(t *testing.T, client llm.Client, maxIterations int, sink EventSink) *Session {
	t.Helper()
	graphs := &stubGraphs{g: testGraph()}
	registry := tools.NewRegistry(graphs, stubSearcher{}, 0, quietLogger())
	ranker, err := risk.NewRanker(0, "", quietLogger())
	require.NoError(t, err)
	orch := New(client, registry, graphs, ranker, maxIterations, quietLogger())
	handle := models.RepositoryHandle{Name: "demo", Path: t.TempDir(), Hash: "abc", Collection: "CodeAtlas_abc"}
	return orch.NewSession(handle, sink)
}

func queryGraphCall(entity string) llm.ToolCall {
	return llm.ToolCall{Name: "query_graph", Args: map[string]any{"entity": entity}}
}

func TestAskAnswersWithCriticality(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Text: "Let me inspect the graph.", Calls: []llm.ToolCall{queryGraphCall("util")}},
		{Text: "util is a leaf helper called only from main."},
	}}
	var states []State
	session := newTestSession(t, client, 0, func(e Event) { states = append(states, e.State) })

	answer, err := session.Ask(context.Background(), "how is util used?", AskOptions{Criticality: true})
	require.NoError(t, err)

	assert.Equal(t, "util is a leaf helper called only from main.", answer.Text)
	assert.False(t, answer.Incomplete)
	assert.Equal(t, 2, answer.Iterations)

	require.Len(t, answer.Trace, 1)
	assert.Equal(t, "query_graph", answer.Trace[0].Tool)
	assert.Empty(t, answer.Trace[0].Error)
	assert.Contains(t, answer.Trace[0].Observation, "lib.py::util")

	require.NotNil(t, answer.Criticality)
	assert.Equal(t, "lib.py::util", answer.Criticality.Seed)
	require.Len(t, answer.Criticality.Assessments, 1)
	assert.Equal(t, risk.LevelHigh, answer.Criticality.Assessments[0].Level)

	assert.Equal(t, []State{
		StateThinking, StateActing, StateObserving, StateThinking, StateAnswered,
	}, states)
}

func TestAskHaltsAtIterationLimit(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Calls: []llm.ToolCall{queryGraphCall("util")}},
	}}
	var states []State
	session := newTestSession(t, client, 3, func(e Event) { states = append(states, e.State) })

	answer, err := session.Ask(context.Background(), "endless question", AskOptions{Criticality: true})
	require.NoError(t, err)

	assert.True(t, answer.Incomplete)
	assert.Equal(t, 3, answer.Iterations)
	assert.Contains(t, answer.Text, "limit of 3 iterations")
	assert.Contains(t, answer.Text, "called query_graph")
	assert.Equal(t, StateHalted, states[len(states)-1])

	// One THINKING per iteration, nothing duplicated.
	thinking := 0
	for _, s := range states {
		if s == StateThinking {
			thinking++
		}
	}
	assert.Equal(t, 3, thinking)

	// The ranking still rides on a halted answer.
	require.NotNil(t, answer.Criticality)
	assert.Equal(t, "lib.py::util", answer.Criticality.Seed)
}

func TestAskCriticalityOnlyWhenRequested(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Calls: []llm.ToolCall{queryGraphCall("util")}},
		{Text: "util is called from main."},
	}}
	session := newTestSession(t, client, 0, nil)

	answer, err := session.Ask(context.Background(), "how is util used?", AskOptions{})
	require.NoError(t, err)
	assert.Nil(t, answer.Criticality)
}

func TestAskToolFailureBecomesObservation(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Calls: []llm.ToolCall{{Name: "teleport", Args: map[string]any{"to": "prod"}}}},
		{Text: "I could not do that, but here is what I know."},
	}}
	var states []State
	session := newTestSession(t, client, 0, func(e Event) { states = append(states, e.State) })

	answer, err := session.Ask(context.Background(), "anything", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, "I could not do that, but here is what I know.", answer.Text)
	require.Len(t, answer.Trace, 1)
	assert.Contains(t, answer.Trace[0].Error, "unknown tool")

	// The failed call surfaces as its own transition, not a disguised
	// observation.
	assert.Equal(t, []State{
		StateThinking, StateActing, StateToolError, StateThinking, StateAnswered,
	}, states)

	// The failure went back to the model as an observation turn.
	var lastResults []llm.ToolResult
	for _, turn := range client.lastReq.Turns {
		if len(turn.Results) > 0 {
			lastResults = turn.Results
		}
	}
	require.Len(t, lastResults, 1)
	assert.Contains(t, lastResults[0].Content, "Error:")
}

func TestAskModelErrorFails(t *testing.T) {
	client := &scriptedClient{err: errors.New("backend down")}
	var states []State
	session := newTestSession(t, client, 0, func(e Event) { states = append(states, e.State) })

	_, err := session.Ask(context.Background(), "anything", AskOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	assert.Equal(t, StateFailed, states[len(states)-1])
}

func TestFollowUpKeepsTranscript(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Text: "first answer"},
	}}
	session := newTestSession(t, client, 0, nil)

	_, err := session.Ask(context.Background(), "first question", AskOptions{})
	require.NoError(t, err)
	_, err = session.Ask(context.Background(), "second question", AskOptions{})
	require.NoError(t, err)

	turns := client.lastReq.Turns
	require.Len(t, turns, 3)
	assert.Contains(t, turns[0].Text, "first question")
	assert.Equal(t, "first answer", turns[1].Text)
	assert.Contains(t, turns[2].Text, "second question")
}
