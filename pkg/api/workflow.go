package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Workflow is the contract every concrete procedure implements, regardless
// of whether it is expressed as a step graph or as a procedural flow.
//
// Execute consumes the persisted state plus the current turn's payload and
// returns the updated state with Response set. It advances the procedure by
// one or more internal steps until it must pause (needs more input) or
// terminates. Implementations contain their own step failures; a non-nil
// error is reserved for infrastructure-level problems.
type Workflow interface {
	ServiceName() string
	Description() string
	Execute(ctx context.Context, state *ProcedureState, payload map[string]any) (*ProcedureState, error)
}

// WorkflowFactory constructs a fresh Workflow for one turn. Factories let
// implementations keep per-turn state without worrying about reuse.
type WorkflowFactory func() Workflow

// Registry maps service names to workflow factories. It is constructed once
// at startup and handed to the orchestrator; there is no global registry.
type Registry struct {
	mu           sync.RWMutex
	factories    map[string]WorkflowFactory
	descriptions map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:    make(map[string]WorkflowFactory),
		descriptions: make(map[string]string),
	}
}

// Register adds a workflow factory. The factory is invoked once to read the
// service name and description.
func (r *Registry) Register(factory WorkflowFactory) error {
	if factory == nil {
		return errors.New("workflow factory is required")
	}
	wf := factory()
	name := wf.ServiceName()
	if name == "" {
		return errors.New("workflow service name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("workflow already registered: %s", name)
	}
	r.factories[name] = factory
	r.descriptions[name] = wf.Description()
	return nil
}

// MustRegister is like Register but panics on error. Useful for
// initialization in main().
func (r *Registry) MustRegister(factory WorkflowFactory) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for a service name.
func (r *Registry) Lookup(name string) (WorkflowFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Services returns a name → description map of all registered workflows.
func (r *Registry) Services() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.descriptions))
	for name, desc := range r.descriptions {
		out[name] = desc
	}
	return out
}
