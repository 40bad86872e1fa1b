package procflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoreira/procflow/internal/navigator"
	"github.com/jmoreira/procflow/pkg/api"
)

// StepFunc is a single named step in a graph-style procedure. It mutates
// the state in place: writing a response with an input schema pauses the
// procedure, writing one without a schema terminates it, and returning an
// error marks the turn failed without discarding whatever response the step
// had already prepared.
type StepFunc func(ctx context.Context, st *api.ProcedureState) error

// Predicate guards a transition between two steps.
type Predicate func(st *api.ProcedureState) bool

type transition struct {
	from string
	pred Predicate // nil means always
	to   string
}

// GraphBuilder provides a fluent API for defining graph-style procedures:
//
//	wf := procflow.NewGraph("tax_guide", "Issues municipal tax guides").
//	    Step("collect_registration", collectRegistration).
//	    Step("lookup_property", lookupProperty).
//	    Edge("collect_registration", "lookup_property").
//	    Navigator(
//	        []string{"registration", "year"},
//	        map[string][]string{"registration": {"year"}},
//	    ).
//	    MustBuild()
//
// The first step added is the entry point unless Entry overrides it.
type GraphBuilder struct {
	serviceName string
	description string
	entry       string
	steps       map[string]StepFunc
	transitions []transition
	nav         *navigator.Navigator
	navOrder    []string
	navDeps     map[string][]string
	observer    api.Observer
	logger      *slog.Logger
}

// NewGraph creates a builder for a graph-style procedure.
func NewGraph(serviceName, description string) *GraphBuilder {
	return &GraphBuilder{
		serviceName: serviceName,
		description: description,
		steps:       make(map[string]StepFunc),
	}
}

// Step adds a named step. The first step added becomes the entry point.
func (b *GraphBuilder) Step(name string, fn StepFunc) *GraphBuilder {
	if name == "" {
		panic("procflow: step name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("procflow: step %q has nil function", name))
	}
	if _, exists := b.steps[name]; exists {
		panic(fmt.Sprintf("procflow: step %q defined twice", name))
	}
	if b.entry == "" {
		b.entry = name
	}
	b.steps[name] = fn
	return b
}

// Entry overrides the entry point.
func (b *GraphBuilder) Entry(name string) *GraphBuilder {
	b.entry = name
	return b
}

// Edge adds an unconditional transition between two steps.
func (b *GraphBuilder) Edge(from, to string) *GraphBuilder {
	return b.When(from, nil, to)
}

// When adds a guarded transition. Transitions are evaluated in the order
// they were added; the first whose predicate holds is taken, and a nil
// predicate always holds. A step with no matching transition terminates
// the run.
func (b *GraphBuilder) When(from string, pred Predicate, to string) *GraphBuilder {
	b.transitions = append(b.transitions, transition{from: from, pred: pred, to: to})
	return b
}

// Navigator opts the procedure into non-linear correction: stepOrder lists
// the main input fields in asking order, and deps maps each field to the
// fields invalidated when it changes.
func (b *GraphBuilder) Navigator(stepOrder []string, deps map[string][]string) *GraphBuilder {
	b.navOrder = stepOrder
	b.navDeps = deps
	return b
}

// Observe attaches an observer for step lifecycle events.
func (b *GraphBuilder) Observe(obs api.Observer) *GraphBuilder {
	b.observer = obs
	return b
}

// Logger sets the logger used during execution. Default is slog.Default().
func (b *GraphBuilder) Logger(logger *slog.Logger) *GraphBuilder {
	b.logger = logger
	return b
}

// Build validates the graph and returns the workflow.
func (b *GraphBuilder) Build() (*GraphWorkflow, error) {
	if b.serviceName == "" {
		return nil, fmt.Errorf("procflow: service name is required")
	}
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("procflow: workflow %q has no steps", b.serviceName)
	}
	if _, ok := b.steps[b.entry]; !ok {
		return nil, fmt.Errorf("procflow: entry step %q is not defined", b.entry)
	}
	for _, tr := range b.transitions {
		if _, ok := b.steps[tr.from]; !ok {
			return nil, fmt.Errorf("procflow: transition from unknown step %q", tr.from)
		}
		if _, ok := b.steps[tr.to]; !ok {
			return nil, fmt.Errorf("procflow: transition to unknown step %q", tr.to)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := b.observer
	if observer == nil {
		observer = api.NoopObserver{}
	}

	var nav *navigator.Navigator
	if len(b.navOrder) > 0 {
		nav = navigator.New(b.navOrder, b.navDeps, logger)
	}

	return &GraphWorkflow{
		serviceName: b.serviceName,
		description: b.description,
		entry:       b.entry,
		steps:       b.steps,
		transitions: b.transitions,
		nav:         nav,
		observer:    observer,
		logger:      logger,
	}, nil
}

// MustBuild is like Build but panics on error. Useful for initialization
// in main().
func (b *GraphBuilder) MustBuild() *GraphWorkflow {
	wf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return wf
}
