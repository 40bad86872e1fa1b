// Package engine implements the orchestrator: workflow registry dispatch,
// state load/save around each turn, and top-level error containment.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jmoreira/procflow/internal/persistence"
	"github.com/jmoreira/procflow/internal/state"
	"github.com/jmoreira/procflow/pkg/api"
)

// Orchestrator dispatches inbound requests to registered workflows,
// wrapping each call with state load/save and a last line of error defense.
type Orchestrator struct {
	registry *api.Registry
	backend  persistence.Backend
	observer api.Observer
	logger   *slog.Logger
}

// Config describes how to construct an Orchestrator. Registry and Backend
// are required; Observer defaults to a no-op and Logger to slog.Default().
type Config struct {
	Registry *api.Registry
	Backend  persistence.Backend
	Observer api.Observer
	Logger   *slog.Logger
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: cfg.Registry,
		backend:  cfg.Backend,
		observer: obs,
		logger:   logger,
	}, nil
}

// Services returns the registered service names and descriptions.
func (o *Orchestrator) Services() map[string]string {
	return o.registry.Services()
}

// ExecuteWorkflow handles one turn: resolve the workflow, load or create
// the procedure state, execute, persist, and return the response envelope.
//
// An unknown service name is a normal conversational correction, not a
// failure: the response lists the available services and err is nil. Any
// error escaping the workflow is caught here and turned into a terminal
// error response, leaving the previously persisted state untouched.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, req api.Request) (*api.AgentResponse, error) {
	factory, ok := o.registry.Lookup(req.ServiceName)
	if !ok {
		return o.unknownServiceResponse(req.ServiceName), nil
	}

	turnID := uuid.NewString()
	logger := o.logger.With(
		slog.String("turn_id", turnID),
		slog.String("service", req.ServiceName),
		slog.String("user_id", req.UserID),
	)

	manager := state.NewManager(req.UserID, o.backend)
	st, err := manager.LoadServiceState(ctx, req.ServiceName)
	if err != nil {
		logger.ErrorContext(ctx, "state load failed", slog.Any("error", err))
		return o.internalErrorResponse(req.ServiceName, err, nil), nil
	}
	if st == nil {
		st = api.NewProcedureState(req.UserID, req.ServiceName)
	}

	o.observer.OnTurnStart(ctx, st)

	workflow := factory()
	final, err := workflow.Execute(ctx, st, req.Payload)
	if err != nil {
		logger.ErrorContext(ctx, "workflow execution failed", slog.Any("error", err))
		o.observer.OnTurnFailed(ctx, st, err)
		return o.internalErrorResponse(req.ServiceName, err, st.Data), nil
	}

	if err := manager.SaveServiceState(ctx, final); err != nil {
		logger.ErrorContext(ctx, "state save failed", slog.Any("error", err))
		o.observer.OnTurnFailed(ctx, final, err)
		return o.internalErrorResponse(req.ServiceName, err, final.Data), nil
	}

	switch {
	case final.Response.Paused():
		o.observer.OnTurnPaused(ctx, final)
	case final.Status == api.StatusError:
		o.observer.OnTurnFailed(ctx, final, fmt.Errorf("%s", final.Response.ErrorMessage))
	default:
		o.observer.OnTurnCompleted(ctx, final)
	}

	logger.InfoContext(ctx, "turn handled",
		slog.String("status", string(final.Status)),
		slog.Bool("paused", final.Response.Paused()),
	)
	return final.Response, nil
}

// RemoveServiceState deletes the persisted state of one (user, service)
// pair.
func (o *Orchestrator) RemoveServiceState(ctx context.Context, userID, serviceName string) (bool, error) {
	return state.NewManager(userID, o.backend).RemoveServiceState(ctx, serviceName)
}

// RemoveUserRecord deletes everything persisted for a user.
func (o *Orchestrator) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	return state.NewManager(userID, o.backend).RemoveUserRecord(ctx)
}

// HealthCheck reports whether the storage backend is usable.
func (o *Orchestrator) HealthCheck(ctx context.Context) bool {
	return o.backend.HealthCheck(ctx)
}

func (o *Orchestrator) unknownServiceResponse(serviceName string) *api.AgentResponse {
	services := o.registry.Services()
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	return &api.AgentResponse{
		ServiceName:  serviceName,
		Description:  "",
		ErrorMessage: fmt.Sprintf("service %q not found; available services: %s", serviceName, strings.Join(names, ", ")),
		Data:         map[string]any{},
	}
}

func (o *Orchestrator) internalErrorResponse(serviceName string, err error, data map[string]any) *api.AgentResponse {
	if data == nil {
		data = map[string]any{}
	}
	return &api.AgentResponse{
		ServiceName:  serviceName,
		Description:  "An internal error occurred while handling the request. Please try again.",
		ErrorMessage: err.Error(),
		Data:         data,
	}
}
