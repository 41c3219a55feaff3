// Package agent runs the bounded think/act/observe loop that answers
// questions about one repository using the tool catalog and an LLM
// backend. Every session is pinned to exactly one repository handle;
// nothing an agent does can touch another repository's graph, files, or
// search collection.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeatlas-ai/codeatlas/internal/llm"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/risk"
	"github.com/codeatlas-ai/codeatlas/internal/tools"
	"github.com/sirupsen/logrus"
)

// DefaultMaxIterations bounds one Ask. The model is expected to answer
// well before this; the bound exists so a confused model cannot loop
// forever.
const DefaultMaxIterations = 10

// ToolTrace records one executed tool call for transparency in the final
// answer.
type ToolTrace struct {
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Answer is the outcome of one Ask. Incomplete marks a halted loop whose
// text is a partial summary rather than a model conclusion.
type Answer struct {
	Text        string        `json:"text"`
	Incomplete  bool          `json:"incomplete"`
	Iterations  int           `json:"iterations"`
	Criticality *risk.Ranking `json:"criticality,omitempty"`
	Trace       []ToolTrace   `json:"trace,omitempty"`
}

// Orchestrator creates sessions. It is safe for concurrent use; the
// per-repository isolation lives in the session, which carries its handle
// into every tool execution.
type Orchestrator struct {
	llm           llm.Client
	registry      *tools.Registry
	graphs        tools.GraphProvider
	ranker        *risk.Ranker
	maxIterations int
	logger        *logrus.Logger
}

// New creates an orchestrator. maxIterations <= 0 selects the default.
func New(client llm.Client, registry *tools.Registry, graphs tools.GraphProvider, ranker *risk.Ranker, maxIterations int, logger *logrus.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		llm:           client,
		registry:      registry,
		graphs:        graphs,
		ranker:        ranker,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Session is one conversation bound to one repository. The transcript
// persists across Ask calls so follow-up questions keep their context.
type Session struct {
	orch   *Orchestrator
	handle models.RepositoryHandle
	events EventSink

	mu         sync.Mutex
	transcript transcript
	lastEntity string // last entity named in a successful query_graph call
}

// NewSession binds a session to a repository handle. sink may be nil.
func (o *Orchestrator) NewSession(handle models.RepositoryHandle, sink EventSink) *Session {
	return &Session{orch: o, handle: handle, events: sink}
}

// AskOptions tune one Ask call.
type AskOptions struct {
	// Criticality attaches an impact ranking to the answer, seeded from
	// the last entity a successful query_graph call named.
	Criticality bool
}

// Ask runs the loop for one question. It returns an error only when the
// model backend is unusable; tool failures become observations and a
// halted loop returns a flagged partial answer, not an error.
func (s *Session) Ask(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.transcript.turns) == 0 {
		s.transcript.addUserText(kickoffPrompt(s.handle, question))
	} else {
		s.transcript.addUserText(resumePrompt(question))
	}

	answer := &Answer{}
	catalog := tools.Definitions()

	for iteration := 1; iteration <= s.orch.maxIterations; iteration++ {
		answer.Iterations = iteration
		s.emit(StateThinking, iteration, "", "")

		resp, err := s.orch.llm.Complete(ctx, llm.Request{
			System: prompts.System,
			Turns:  s.transcript.turns,
			Tools:  catalog,
		})
		if err != nil {
			s.emit(StateFailed, iteration, "", err.Error())
			return nil, fmt.Errorf("model request at iteration %d: %w", iteration, err)
		}

		if len(resp.Calls) == 0 {
			s.transcript.addModel(resp)
			answer.Text = resp.Text
			if opts.Criticality {
				s.attachCriticality(answer)
			}
			s.emit(StateAnswered, iteration, "", "")
			s.orch.logger.WithFields(logrus.Fields{
				"repo":       s.handle.Name,
				"iterations": iteration,
			}).Info("session answered")
			return answer, nil
		}

		s.transcript.addModel(resp)
		results := make([]llm.ToolResult, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			s.emit(StateActing, iteration, call.Name, "")
			observation, failed := s.execute(ctx, call, answer)
			if failed {
				s.emit(StateToolError, iteration, call.Name, firstLine(observation))
			} else {
				s.emit(StateObserving, iteration, call.Name, firstLine(observation))
			}
			results = append(results, llm.ToolResult{
				CallID:  call.ID,
				Name:    call.Name,
				Content: observation,
			})
		}
		s.transcript.addResults(results)
		s.transcript.prune()
	}

	// Iteration bound reached: surface what was learned instead of
	// pretending to a conclusion.
	answer.Text = s.transcript.partialSummary(s.orch.maxIterations)
	answer.Incomplete = true
	if opts.Criticality {
		s.attachCriticality(answer)
	}
	s.emit(StateHalted, s.orch.maxIterations, "", "iteration limit reached")
	s.orch.logger.WithFields(logrus.Fields{
		"repo":       s.handle.Name,
		"iterations": s.orch.maxIterations,
	}).Warn("session halted at iteration limit")
	return answer, nil
}

// execute runs one tool call. Failures come back as observation text so
// the model can recover; they never abort the loop. The second return
// reports whether the call failed.
func (s *Session) execute(ctx context.Context, call llm.ToolCall, answer *Answer) (string, bool) {
	trace := ToolTrace{Tool: call.Name, Args: call.Args}
	result, err := s.orch.registry.Execute(ctx, s.handle, tools.Request{
		Tool: tools.Kind(call.Name),
		Args: call.Args,
	})
	if err != nil {
		trace.Error = err.Error()
		answer.Trace = append(answer.Trace, trace)
		s.orch.logger.WithError(err).WithFields(logrus.Fields{
			"tool": call.Name,
			"repo": s.handle.Name,
		}).Debug("tool call failed")
		return fmt.Sprintf("Error: %v", err), true
	}

	if tools.Kind(call.Name) == tools.KindQueryGraph {
		if entity, ok := call.Args["entity"].(string); ok && entity != "" {
			s.lastEntity = entity
		}
	}

	trace.Observation = result.Content
	answer.Trace = append(answer.Trace, trace)
	return result.Content, false
}

// attachCriticality ranks the entity the conversation last focused on.
// Failures are logged and dropped; ranking never blocks an answer.
func (s *Session) attachCriticality(answer *Answer) {
	if s.lastEntity == "" || s.orch.ranker == nil {
		return
	}
	g, err := s.orch.graphs.Graph(s.handle)
	if err != nil {
		s.orch.logger.WithError(err).Debug("skipping criticality ranking")
		return
	}
	ranking, err := s.orch.ranker.Rank(g, s.lastEntity)
	if err != nil {
		s.orch.logger.WithError(err).Debug("skipping criticality ranking")
		return
	}
	answer.Criticality = ranking
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
