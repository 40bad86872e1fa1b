package api

// Request is the inbound envelope consumed by the orchestrator: which
// service to run, for which user, with what payload for this turn.
type Request struct {
	ServiceName string         `json:"serviceName"`
	UserID      string         `json:"userId"`
	Payload     map[string]any `json:"payload"`
}

// AgentResponse is what a workflow hands back to the conversational layer
// after each turn.
//
// InputSchema present means the procedure is paused and declares, as a
// JSON-Schema object, what field(s) it expects next. InputSchema absent
// means the procedure has terminated (success, cancellation or error) and
// Data holds the final result.
type AgentResponse struct {
	ServiceName  string         `json:"serviceName"`
	Description  string         `json:"description"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	InputSchema  *Schema        `json:"inputSchema,omitempty"`
	Data         map[string]any `json:"data"`
}

// Paused reports whether this response asks the user for more input.
func (r *AgentResponse) Paused() bool {
	return r != nil && r.InputSchema != nil
}
