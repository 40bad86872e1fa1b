package api

import "time"

// Status represents the lifecycle state of a procedure instance.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Metadata holds the auto-maintained timestamps of a procedure instance.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMetadata returns a Metadata with both timestamps set to now.
func NewMetadata() Metadata {
	now := time.Now().UTC()
	return Metadata{CreatedAt: now, UpdatedAt: now}
}

// Touch updates the UpdatedAt timestamp.
func (m *Metadata) Touch() {
	m.UpdatedAt = time.Now().UTC()
}

// StepStackKey is the reserved Internal key under which the procedural
// engine records the order in which input fields were requested. It is
// persisted with the rest of Internal so that backward navigation can be
// detected on the next turn.
const StepStackKey = "step_stack"

// internalDepsPrefix marks Internal entries that record which data fields a
// cached value was derived from. See TagInternalDeps.
const internalDepsPrefix = "deps:"

// ProcedureState is the full state of one in-progress procedure for a
// (user, service) pair. It is the single source of truth while a workflow
// executes a turn.
//
// Data holds confirmed, validated field values and is durable. Payload is
// the current turn's raw input and is cleared before the state is returned.
// Internal caches side-effect results (API lookups) so that replays of
// already-answered steps do not repeat expensive calls; it is never exposed
// to the caller.
type ProcedureState struct {
	UserID      string         `json:"userId"`
	ServiceName string         `json:"serviceName"`
	Status      Status         `json:"status"`
	Data        map[string]any `json:"data"`
	Payload     map[string]any `json:"payload,omitempty"`
	Internal    map[string]any `json:"internal"`
	Metadata    Metadata       `json:"metadata"`
	Response    *AgentResponse `json:"response,omitempty"`
}

// NewProcedureState creates a fresh in-progress state for a (user, service)
// pair.
func NewProcedureState(userID, serviceName string) *ProcedureState {
	return &ProcedureState{
		UserID:      userID,
		ServiceName: serviceName,
		Status:      StatusInProgress,
		Data:        make(map[string]any),
		Payload:     make(map[string]any),
		Internal:    make(map[string]any),
		Metadata:    NewMetadata(),
	}
}

// FullReset discards all collected data and cached side effects, returning
// the procedure to its first step. CreatedAt is preserved; only a fresh
// empty-payload turn after completion or error triggers this.
func (s *ProcedureState) FullReset() {
	s.Data = make(map[string]any)
	s.Internal = make(map[string]any)
	s.Response = nil
	s.Status = StatusInProgress
}

// StepStack returns the persisted hook call order, or nil when the
// procedural engine has not run yet. Values loaded from a JSON document
// arrive as []any and are coerced back to strings.
func (s *ProcedureState) StepStack() []string {
	raw, ok := s.Internal[StepStackKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		stack := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				stack = append(stack, str)
			}
		}
		return stack
	default:
		return nil
	}
}

// SetStepStack records the hook call order in Internal so it survives the
// turn boundary.
func (s *ProcedureState) SetStepStack(stack []string) {
	if len(stack) == 0 {
		delete(s.Internal, StepStackKey)
		return
	}
	s.Internal[StepStackKey] = stack
}

// TagInternalDeps records which data fields the Internal entry under key was
// derived from. Tagged entries are invalidated by exact field membership
// during a cascade reset instead of by substring matching on the key.
func (s *ProcedureState) TagInternalDeps(key string, fields []string) {
	if len(fields) == 0 {
		return
	}
	s.Internal[internalDepsPrefix+key] = fields
}

// InternalDeps returns the dependency tag for an Internal entry, if any.
func (s *ProcedureState) InternalDeps(key string) ([]string, bool) {
	raw, ok := s.Internal[internalDepsPrefix+key]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		fields := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				fields = append(fields, str)
			}
		}
		return fields, true
	default:
		return nil, false
	}
}

// DeleteInternal removes an Internal entry together with its dependency tag.
func (s *ProcedureState) DeleteInternal(key string) {
	delete(s.Internal, key)
	delete(s.Internal, internalDepsPrefix+key)
}

// IsReservedInternalKey reports whether an Internal key is bookkeeping owned
// by the engine (step stack, dependency tags) rather than a cache entry.
func IsReservedInternalKey(key string) bool {
	if key == StepStackKey {
		return true
	}
	return len(key) >= len(internalDepsPrefix) && key[:len(internalDepsPrefix)] == internalDepsPrefix
}
