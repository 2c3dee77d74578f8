package agent

import "sync/atomic"

// StreamingRegistry tracks which agent is currently running its message
// loop, so that an operator knows whom to pause or intervene. It is written
// by the agents and read by the operator.
type StreamingRegistry struct {
	current atomic.Pointer[Agent]
}

// Current returns the agent running its message loop, or nil.
func (s *StreamingRegistry) Current() *Agent {
	return s.current.Load()
}

func (s *StreamingRegistry) mark(a *Agent) {
	s.current.Store(a)
}

// unmark a, unless another agent has marked itself since.
func (s *StreamingRegistry) unmark(a *Agent) {
	s.current.CompareAndSwap(a, nil)
}
