package agent

import (
	"fmt"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/llm"
)

// maxObservationBytes bounds one tool observation inside the transcript;
// the full result is still surfaced in the answer's tool trace.
const maxObservationBytes = 8 * 1024

// maxTranscriptTurns bounds context growth across a long chat session.
const maxTranscriptTurns = 60

// transcript accumulates the conversation across Ask calls. It is not
// safe for concurrent use; a Session serializes access with its own lock.
type transcript struct {
	turns []llm.Turn
}

func (t *transcript) addUserText(text string) {
	t.turns = append(t.turns, llm.Turn{Role: llm.RoleUser, Text: text})
}

func (t *transcript) addModel(resp *llm.Response) {
	t.turns = append(t.turns, llm.Turn{Role: llm.RoleModel, Text: resp.Text, Calls: resp.Calls})
}

func (t *transcript) addResults(results []llm.ToolResult) {
	clipped := make([]llm.ToolResult, len(results))
	for i, r := range results {
		if len(r.Content) > maxObservationBytes {
			r.Content = r.Content[:maxObservationBytes] + "\n[observation truncated]"
		}
		clipped[i] = r
	}
	t.turns = append(t.turns, llm.Turn{Role: llm.RoleUser, Results: clipped})
}

// prune drops the oldest turns past the budget, always keeping the first
// user turn so the model retains the original question framing. It never
// splits a model turn from the tool results that answer it.
func (t *transcript) prune() {
	if len(t.turns) <= maxTranscriptTurns {
		return
	}
	drop := len(t.turns) - maxTranscriptTurns
	// Do not strand tool results: advance past any results turn that
	// would become the new head.
	for drop < len(t.turns)-1 && len(t.turns[drop+1].Results) > 0 {
		drop++
	}
	kept := make([]llm.Turn, 0, len(t.turns)-drop+1)
	kept = append(kept, t.turns[0])
	kept = append(kept, t.turns[drop+1:]...)
	t.turns = kept
}

// partialSummary builds the deterministic fallback answer for a halted
// session from what the loop actually observed.
func (t *transcript) partialSummary(iterations int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The investigation stopped after reaching the limit of %d iterations without a final answer.\n", iterations)
	b.WriteString("Steps taken so far:\n")
	step := 0
	for _, turn := range t.turns {
		if turn.Role != llm.RoleModel {
			continue
		}
		for _, call := range turn.Calls {
			step++
			fmt.Fprintf(&b, "%d. called %s\n", step, call.Name)
		}
	}
	if step == 0 {
		b.WriteString("(no tool calls were made)\n")
	}
	if last := t.lastModelText(); last != "" {
		b.WriteString("Last reasoning before the halt:\n")
		b.WriteString(last)
	}
	return b.String()
}

func (t *transcript) lastModelText() string {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == llm.RoleModel && t.turns[i].Text != "" {
			return t.turns[i].Text
		}
	}
	return ""
}
