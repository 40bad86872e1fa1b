// Package navigator implements non-linear step navigation: detecting when a
// turn's payload answers an earlier step and cascading resets of the data
// that depended on the changed field.
package navigator

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/jmoreira/procflow/pkg/api"
)

// Navigator works from a declared step order plus a dependency table:
// stepOrder lists the procedure's main fields in the order they are asked,
// and deps maps each field to the fields invalidated when it changes.
type Navigator struct {
	stepOrder []string
	deps      map[string][]string
	logger    *slog.Logger
}

// New creates a Navigator. If logger is nil, slog.Default() is used.
func New(stepOrder []string, deps map[string][]string, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{stepOrder: stepOrder, deps: deps, logger: logger}
}

// CurrentStepIndex scans the step order from the end and returns the index
// of the last field present in state.Data, or -1 when no step has data yet.
func (n *Navigator) CurrentStepIndex(st *api.ProcedureState) int {
	for i := len(n.stepOrder) - 1; i >= 0; i-- {
		if _, ok := st.Data[n.stepOrder[i]]; ok {
			return i
		}
	}
	return -1
}

// DetectBackwardField reports the first payload key that belongs to a step
// at or before currentIndex. Re-sending the current step's own field counts
// as backward too, so re-answering triggers the same reset path as
// correcting an older answer.
func (n *Navigator) DetectBackwardField(st *api.ProcedureState, currentIndex int) (string, bool) {
	for field := range st.Payload {
		idx := slices.Index(n.stepOrder, field)
		if idx >= 0 && idx <= currentIndex {
			return field, true
		}
	}
	return "", false
}

// CascadeReset removes from state.Data every field that depends on the
// changed field (minus any listed in keep), then drops the Internal cache
// entries derived from the removed fields.
func (n *Navigator) CascadeReset(st *api.ProcedureState, field string, keep ...string) {
	var removed []string
	for _, dep := range n.deps[field] {
		if slices.Contains(keep, dep) {
			continue
		}
		if _, ok := st.Data[dep]; ok {
			delete(st.Data, dep)
			n.logger.Debug("cascade reset: field removed",
				slog.String("field", dep),
				slog.String("changed", field),
			)
		}
		removed = append(removed, dep)
	}
	InvalidateInternal(st, removed)
}

// AutoReset runs the full detection + cascade pipeline. It is a no-op when
// the payload contains no backward field, and idempotent: a second call
// with the same payload finds the dependent fields already gone.
func (n *Navigator) AutoReset(st *api.ProcedureState) {
	current := n.CurrentStepIndex(st)
	if current == -1 {
		return
	}

	field, ok := n.DetectBackwardField(st, current)
	if !ok {
		return
	}

	n.logger.Info("backward navigation detected",
		slog.String("service", st.ServiceName),
		slog.String("field", field),
		slog.Int("current_step", current),
	)
	n.CascadeReset(st, field)
}

// ResetFromStack is the call-order counterpart of AutoReset, used by the
// procedural engine. It checks the payload against the previous execution's
// persisted step stack; when a payload key matches an earlier step, the
// stack is truncated at that point and the data and cache entries recorded
// at or after it are dropped.
func ResetFromStack(st *api.ProcedureState, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	stack := st.StepStack()
	for i := len(stack) - 1; i >= 0; i-- {
		if _, ok := st.Payload[stack[i]]; !ok {
			continue
		}

		removed := append([]string(nil), stack[i+1:]...)
		st.SetStepStack(stack[:i+1])
		if len(removed) == 0 {
			return
		}

		logger.Info("backward navigation detected",
			slog.String("service", st.ServiceName),
			slog.String("field", stack[i]),
			slog.Any("removed_steps", removed),
		)
		for _, field := range removed {
			delete(st.Data, field)
		}
		InvalidateInternal(st, removed)
		return
	}
}

// InvalidateInternal drops every cache entry derived from one of the
// removed fields. Entries carrying an explicit dependency tag are matched
// by field membership; untagged entries fall back to substring matching of
// the field name against the cache key, which is deliberately conservative:
// a key that even mentions a stale field is dropped, trading cache reuse
// for correctness.
func InvalidateInternal(st *api.ProcedureState, removed []string) {
	if len(removed) == 0 {
		return
	}

	var stale []string
	for key := range st.Internal {
		if api.IsReservedInternalKey(key) {
			continue
		}
		if deps, ok := st.InternalDeps(key); ok {
			for _, field := range removed {
				if slices.Contains(deps, field) {
					stale = append(stale, key)
					break
				}
			}
			continue
		}
		for _, field := range removed {
			if strings.Contains(key, field) {
				stale = append(stale, key)
				break
			}
		}
	}
	for _, key := range stale {
		st.DeleteInternal(key)
	}
}
