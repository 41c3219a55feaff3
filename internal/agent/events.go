package agent

import "time"

// State is one phase of the think/act/observe loop.
type State string

const (
	StateThinking  State = "THINKING"
	StateActing    State = "ACTING"
	StateObserving State = "OBSERVING"
	StateToolError State = "TOOL_ERROR"
	StateAnswered  State = "ANSWERED"
	StateHalted    State = "HALTED"
	StateFailed    State = "FAILED"
)

// Event is emitted exactly once per state transition, so a caller can
// render live progress without polling.
type Event struct {
	State     State
	Iteration int
	Tool      string // set for ACTING, OBSERVING, and TOOL_ERROR
	Detail    string
	At        time.Time
}

// EventSink receives progress events. Sinks must not block; a nil sink
// disables events.
type EventSink func(Event)

func (s *Session) emit(state State, iteration int, tool, detail string) {
	if s.events == nil {
		return
	}
	s.events(Event{
		State:     state,
		Iteration: iteration,
		Tool:      tool,
		Detail:    detail,
		At:        time.Now(),
	})
}
