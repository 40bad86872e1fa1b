package procflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoreira/procflow/internal/navigator"
	"github.com/jmoreira/procflow/pkg/api"
)

// maxStepsPerTurn bounds a single turn's trampoline loop so a cyclic graph
// that never pauses cannot spin forever.
const maxStepsPerTurn = 256

// GraphWorkflow executes a procedure defined as named steps plus a
// transition table. It implements the Workflow contract.
type GraphWorkflow struct {
	serviceName string
	description string
	entry       string
	steps       map[string]StepFunc
	transitions []transition
	nav         *navigator.Navigator
	observer    api.Observer
	logger      *slog.Logger
}

var _ api.Workflow = (*GraphWorkflow)(nil)

func (w *GraphWorkflow) ServiceName() string {
	return w.serviceName
}

func (w *GraphWorkflow) Description() string {
	return w.description
}

// Execute advances the procedure by running steps from the entry point
// until one pauses, one terminates, or no transition matches. A step chain
// that does not explicitly pause keeps advancing in the same turn, which is
// what lets one user message satisfy several steps at once.
func (w *GraphWorkflow) Execute(ctx context.Context, st *api.ProcedureState, payload map[string]any) (*api.ProcedureState, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	st.Payload = payload
	st.Response = nil

	if len(payload) == 0 {
		st.FullReset()
	} else if w.nav != nil {
		w.nav.AutoReset(st)
	}

	w.runGraph(ctx, st)

	if st.Response == nil {
		// The graph finished without ever producing a response: the
		// procedure is done.
		st.Status = api.StatusCompleted
		st.Response = &api.AgentResponse{
			Description: "Service completed successfully.",
		}
	}

	switch {
	case st.Status == api.StatusError:
		// A failed step keeps its error status even when the response it
		// prepared still asks for input, so the caller can tell a clean
		// pause from a retryable failure.
	case st.Response.Paused():
		st.Status = api.StatusInProgress
	default:
		st.Status = api.StatusCompleted
	}

	st.Response.ServiceName = w.serviceName
	st.Response.Data = st.Data
	st.Payload = map[string]any{}
	return st, nil
}

func (w *GraphWorkflow) runGraph(ctx context.Context, st *api.ProcedureState) {
	current := w.entry
	for i := 0; current != "" && i < maxStepsPerTurn; i++ {
		if err := w.runStep(ctx, st, current); err != nil {
			// Fold the failure into whatever response the step had
			// already prepared; its description and schema survive.
			resp := st.Response
			if resp == nil {
				resp = &api.AgentResponse{}
			}
			resp.ErrorMessage = err.Error()
			st.Response = resp
			st.Status = api.StatusError
			return
		}
		if st.Response != nil {
			return
		}
		current = w.nextStep(current, st)
	}
}

// runStep invokes one step with panic containment, mirroring the
// error-wrapping every step gets.
func (w *GraphWorkflow) runStep(ctx context.Context, st *api.ProcedureState, name string) (err error) {
	start := time.Now()
	w.observer.OnStepStart(ctx, st, name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %q panicked: %v", name, r)
		}
		w.observer.OnStepCompleted(ctx, st, name, err, time.Since(start))
		if err != nil {
			w.logger.ErrorContext(ctx, "step failed",
				slog.String("service", w.serviceName),
				slog.String("user_id", st.UserID),
				slog.String("step", name),
				slog.Any("error", err),
			)
		}
	}()
	return w.steps[name](ctx, st)
}

func (w *GraphWorkflow) nextStep(current string, st *api.ProcedureState) string {
	for _, tr := range w.transitions {
		if tr.from != current {
			continue
		}
		if tr.pred == nil || tr.pred(st) {
			return tr.to
		}
	}
	return ""
}
