package api

import "errors"

// Control-flow signals for the procedural engine. Hooks return these as
// typed errors instead of raising them; the runner inspects the tag with
// errors.As, which keeps every outcome explicit and exhaustively checkable.

// PauseSignal is returned by a hook that needs more input. It carries the
// response (prompt + input schema) the user should see.
type PauseSignal struct {
	Response *AgentResponse
}

func (e *PauseSignal) Error() string {
	return "flow paused: awaiting user input"
}

// NewPause wraps a response in a PauseSignal.
func NewPause(resp *AgentResponse) error {
	return &PauseSignal{Response: resp}
}

// AsPause returns the carried response if err is a pause signal.
func AsPause(err error) (*AgentResponse, bool) {
	var p *PauseSignal
	if errors.As(err, &p) {
		return p.Response, true
	}
	return nil, false
}

// CancelSignal terminates a flow at the user's request. It is not an error
// condition; the procedure completes with a cancellation message.
type CancelSignal struct {
	Message string
}

func (e *CancelSignal) Error() string {
	return "flow cancelled: " + e.Message
}

// AsCancel returns the cancellation message if err is a cancel signal.
func AsCancel(err error) (string, bool) {
	var c *CancelSignal
	if errors.As(err, &c) {
		return c.Message, true
	}
	return "", false
}

// FlowError terminates a flow with a business-rule failure. Message is
// user-facing; Detail carries the technical cause.
type FlowError struct {
	Message string
	Detail  string
}

func (e *FlowError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// AsFlowError returns the failure if err is a business-rule error.
func AsFlowError(err error) (*FlowError, bool) {
	var f *FlowError
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
