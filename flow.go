package procflow

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jmoreira/procflow/internal/navigator"
	"github.com/jmoreira/procflow/pkg/api"
)

// FlowFunc is the single author-written function of a procedural flow. It
// collects input through the hooks on FlowContext and finishes with one of
// the terminators:
//
//	func run(ctx context.Context, fc *procflow.FlowContext) (*procflow.AgentResponse, error) {
//	    name, err := fc.Input("name", api.Object(map[string]*api.Schema{
//	        "name": api.String("Your full name"),
//	    }), "What is your name?")
//	    if err != nil {
//	        return nil, err
//	    }
//	    ...
//	    return fc.Success("All done!", nil)
//	}
//
// A hook that needs more input returns a pause signal as its error; the
// author just propagates it and the runner turns it into a paused response.
type FlowFunc func(ctx context.Context, fc *FlowContext) (*api.AgentResponse, error)

// FlowRunner executes a FlowFunc under the Workflow contract: it restores
// the previous turn's step stack, applies backward-navigation resets, maps
// pause/cancel/error signals to status transitions, and contains panics.
type FlowRunner struct {
	serviceName string
	description string
	run         FlowFunc
	observer    api.Observer
	logger      *slog.Logger
}

var _ api.Workflow = (*FlowRunner)(nil)

// FlowOption configures a FlowRunner.
type FlowOption func(*FlowRunner)

// WithFlowObserver attaches an observer for hook lifecycle events.
func WithFlowObserver(obs api.Observer) FlowOption {
	return func(r *FlowRunner) {
		r.observer = obs
	}
}

// WithFlowLogger sets the runner's logger. Default is slog.Default().
func WithFlowLogger(logger *slog.Logger) FlowOption {
	return func(r *FlowRunner) {
		r.logger = logger
	}
}

// NewFlow creates a procedural workflow from a straight-line flow function.
func NewFlow(serviceName, description string, run FlowFunc, opts ...FlowOption) *FlowRunner {
	r := &FlowRunner{
		serviceName: serviceName,
		description: description,
		run:         run,
		observer:    api.NoopObserver{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *FlowRunner) ServiceName() string {
	return r.serviceName
}

func (r *FlowRunner) Description() string {
	return r.description
}

// Execute runs one turn of the flow.
func (r *FlowRunner) Execute(ctx context.Context, st *api.ProcedureState, payload map[string]any) (*api.ProcedureState, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	st.Payload = payload
	st.Response = nil

	if len(payload) == 0 {
		st.FullReset()
	} else {
		navigator.ResetFromStack(st, r.logger)
	}

	fc := &FlowContext{
		serviceName: r.serviceName,
		state:       st,
		stack:       st.StepStack(),
		observer:    r.observer,
	}

	resp, err := r.safeRun(ctx, fc)

	switch {
	case err == nil:
		if resp == nil {
			resp = &api.AgentResponse{Description: "Service completed successfully."}
		}
		st.Response = resp
		st.Status = api.StatusCompleted

	default:
		if paused, ok := api.AsPause(err); ok {
			st.Response = paused
			st.Status = api.StatusInProgress
			break
		}
		if msg, ok := api.AsCancel(err); ok {
			st.Response = &api.AgentResponse{Description: msg, Data: st.Data}
			st.Status = api.StatusCompleted
			break
		}
		if flowErr, ok := api.AsFlowError(err); ok {
			st.Response = &api.AgentResponse{
				Description:  flowErr.Message,
				ErrorMessage: flowErr.Detail,
				Data:         st.Data,
			}
			st.Status = api.StatusError
			break
		}
		// Unexpected failure: degrade to a generic retry prompt without
		// touching the data collected so far.
		r.logger.ErrorContext(ctx, "flow failed",
			slog.String("service", r.serviceName),
			slog.String("user_id", st.UserID),
			slog.Any("error", err),
		)
		st.Response = &api.AgentResponse{
			Description:  "An internal error occurred. Please try again.",
			ErrorMessage: fmt.Sprintf("internal error: %v", err),
			Data:         st.Data,
		}
		st.Status = api.StatusError
	}

	st.SetStepStack(fc.stack)
	st.Response.ServiceName = r.serviceName
	if st.Response.Data == nil {
		st.Response.Data = st.Data
	}
	st.Payload = map[string]any{}
	return st, nil
}

func (r *FlowRunner) safeRun(ctx context.Context, fc *FlowContext) (resp *api.AgentResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("flow panicked: %v", rec)
		}
	}()
	return r.run(ctx, fc)
}

// FlowContext exposes the hooks a flow function collects input with. Every
// input hook appends its field to the per-execution step stack, which the
// runner persists so the next turn can detect backward navigation from
// actual call order rather than a hand-declared dependency table.
type FlowContext struct {
	serviceName string
	state       *api.ProcedureState
	stack       []string
	observer    api.Observer
}

// State returns the underlying procedure state, for flows that need direct
// access beyond the hooks.
func (fc *FlowContext) State() *api.ProcedureState {
	return fc.state
}

func (fc *FlowContext) pushStep(field string) {
	if !slices.Contains(fc.stack, field) {
		fc.stack = append(fc.stack, field)
	}
}

// Input collects and validates one field.
//
// If the field arrived in this turn's payload it is validated against the
// schema, stored in Data and returned; a validation failure re-pauses with
// the same schema plus an error message so the user can retry the same
// step. If the field is already in Data the stored value is returned.
// Otherwise the hook pauses with the prompt and schema.
func (fc *FlowContext) Input(field string, schema *api.Schema, prompt string) (any, error) {
	fc.pushStep(field)

	// Payload first: a re-sent field overrides the stored answer.
	if _, ok := fc.state.Payload[field]; ok {
		if err := schema.Validate(fc.state.Payload); err != nil {
			return nil, api.NewPause(&api.AgentResponse{
				ServiceName:  fc.serviceName,
				Description:  prompt,
				InputSchema:  schema,
				ErrorMessage: err.Error(),
			})
		}
		value := fc.state.Payload[field]
		fc.state.Data[field] = value
		return value, nil
	}

	if value, ok := fc.state.Data[field]; ok {
		return value, nil
	}

	return nil, api.NewPause(&api.AgentResponse{
		ServiceName: fc.serviceName,
		Description: prompt,
		InputSchema: schema,
	})
}

// Choice collects a single selection out of an enumerated option set. An
// invalid selection re-pauses with an error message instead of advancing.
func (fc *FlowContext) Choice(field, prompt string, options []string) (string, error) {
	fc.pushStep(field)
	schema := api.Choice(field, options)

	if raw, ok := fc.state.Payload[field]; ok {
		choice := fmt.Sprintf("%v", raw)
		if !slices.Contains(options, choice) {
			return "", api.NewPause(&api.AgentResponse{
				ServiceName:  fc.serviceName,
				Description:  prompt,
				InputSchema:  schema,
				ErrorMessage: fmt.Sprintf("invalid option %q; pick one of: %s", choice, strings.Join(options, ", ")),
			})
		}
		fc.state.Data[field] = choice
		return choice, nil
	}

	if value, ok := fc.state.Data[field]; ok {
		return fmt.Sprintf("%v", value), nil
	}

	return "", api.NewPause(&api.AgentResponse{
		ServiceName: fc.serviceName,
		Description: prompt,
		InputSchema: schema,
	})
}

// MultiChoice collects one or more selections out of an enumerated option
// set. A scalar payload value is treated as a single-element selection.
func (fc *FlowContext) MultiChoice(field, prompt string, options []string) ([]string, error) {
	fc.pushStep(field)
	schema := api.MultiChoice(field, options)

	if raw, ok := fc.state.Payload[field]; ok {
		choices := coerceStringSlice(raw)
		var invalid []string
		for _, c := range choices {
			if !slices.Contains(options, c) {
				invalid = append(invalid, c)
			}
		}
		if len(choices) == 0 || len(invalid) > 0 {
			return nil, api.NewPause(&api.AgentResponse{
				ServiceName:  fc.serviceName,
				Description:  prompt,
				InputSchema:  schema,
				ErrorMessage: fmt.Sprintf("invalid options: %s", strings.Join(invalid, ", ")),
			})
		}
		fc.state.Data[field] = choices
		return choices, nil
	}

	if value, ok := fc.state.Data[field]; ok {
		return coerceStringSlice(value), nil
	}

	return nil, api.NewPause(&api.AgentResponse{
		ServiceName: fc.serviceName,
		Description: prompt,
		InputSchema: schema,
	})
}

// confirmField is the payload key Confirm pauses for.
const confirmField = "confirm"

// Confirm pauses for a yes/no answer over the presented data. A negative
// answer wipes everything collected so far (full restart) and returns
// false; a positive answer proceeds.
func (fc *FlowContext) Confirm(prompt string, data map[string]any) (bool, error) {
	if raw, ok := fc.state.Payload[confirmField]; ok {
		confirmed, _ := raw.(bool)
		if !confirmed {
			fc.state.Data = map[string]any{}
			fc.state.Internal = map[string]any{}
			fc.stack = nil
			return false, nil
		}
		return true, nil
	}

	resp := &api.AgentResponse{
		ServiceName: fc.serviceName,
		Description: prompt,
		InputSchema: api.Confirm(confirmField),
		Data:        data,
	}
	return false, api.NewPause(resp)
}

// APICall memoizes an external call in Internal so replays of
// already-answered steps do not repeat it. The cache key derives from the
// call name and the key arguments; the entry is tagged with the fields
// requested so far, so a cascade reset invalidates exactly the calls that
// depended on the changed answers.
func (fc *FlowContext) APICall(ctx context.Context, name string, fn func(ctx context.Context) (any, error), keyArgs ...any) (any, error) {
	key := apiCacheKey(name, keyArgs)
	if cached, ok := fc.state.Internal[key]; ok {
		return cached, nil
	}

	start := time.Now()
	fc.observer.OnStepStart(ctx, fc.state, name)
	result, err := fn(ctx)
	fc.observer.OnStepCompleted(ctx, fc.state, name, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	fc.state.Internal[key] = result
	fc.state.TagInternalDeps(key, append([]string(nil), fc.stack...))
	return result, nil
}

// Success terminates the flow successfully. When data is nil, the
// collected Data is returned to the caller.
func (fc *FlowContext) Success(message string, data map[string]any) (*api.AgentResponse, error) {
	if data == nil {
		data = fc.state.Data
	}
	return &api.AgentResponse{
		ServiceName: fc.serviceName,
		Description: message,
		Data:        data,
	}, nil
}

// Error terminates the flow with a business-rule failure.
func (fc *FlowContext) Error(message, detail string) (*api.AgentResponse, error) {
	return nil, &api.FlowError{Message: message, Detail: detail}
}

// Cancel terminates the flow at the user's request.
func (fc *FlowContext) Cancel(message string) (*api.AgentResponse, error) {
	if message == "" {
		message = "Operation cancelled."
	}
	return nil, &api.CancelSignal{Message: message}
}

func coerceStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// apiCacheKey fingerprints the call name plus its arguments. JSON encoding
// keeps the fingerprint stable across process restarts, unlike pointer or
// reflection-based identities.
func apiCacheKey(name string, args []any) string {
	h := fnv.New64a()
	if encoded, err := json.Marshal(args); err == nil {
		h.Write(encoded)
	}
	return fmt.Sprintf("api_cache_%s_%x", name, h.Sum64())
}
