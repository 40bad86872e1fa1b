// Package state translates between the per-service ProcedureState the
// workflow contract operates on and the per-user document a storage backend
// persists.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoreira/procflow/internal/persistence"
	"github.com/jmoreira/procflow/pkg/api"
)

// Manager owns the persisted record of a single user. Operations on
// different service names for the same user never lose each other's data
// even though they share one backing document: every save reloads the full
// record before merging the service's sub-document in.
type Manager struct {
	userID  string
	backend persistence.Backend
}

// NewManager creates a Manager scoped to one user.
func NewManager(userID string, backend persistence.Backend) *Manager {
	return &Manager{userID: userID, backend: backend}
}

// UserID returns the user this manager is scoped to.
func (m *Manager) UserID() string {
	return m.userID
}

// LoadServiceState reads the user's record and extracts the state for one
// service. It returns (nil, nil) when the service has no persisted state;
// the caller constructs a fresh one. Records written before metadata
// tracking existed are given fresh metadata on load.
func (m *Manager) LoadServiceState(ctx context.Context, serviceName string) (*api.ProcedureState, error) {
	record, err := m.backend.LoadUserRecord(ctx, m.userID)
	if err != nil {
		return nil, fmt.Errorf("load user record: %w", err)
	}

	sub, ok := record[serviceName].(map[string]any)
	if !ok {
		return nil, nil
	}
	return decodeServiceState(m.userID, serviceName, sub), nil
}

// SaveServiceState stamps UpdatedAt, merges the service's sub-document into
// the freshly-reloaded user record, and writes the record back.
func (m *Manager) SaveServiceState(ctx context.Context, st *api.ProcedureState) error {
	st.Metadata.Touch()

	record, err := m.backend.LoadUserRecord(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("reload user record: %w", err)
	}

	record[st.ServiceName] = encodeServiceState(st)
	if err := m.backend.SaveUserRecord(ctx, m.userID, record); err != nil {
		return fmt.Errorf("save user record: %w", err)
	}
	return nil
}

// UpdateServiceState merges updates into the service's Data and saves. A
// missing state is created first.
func (m *Manager) UpdateServiceState(ctx context.Context, serviceName string, updates map[string]any) error {
	st, err := m.LoadServiceState(ctx, serviceName)
	if err != nil {
		return err
	}
	if st == nil {
		st = api.NewProcedureState(m.userID, serviceName)
	}
	for key, value := range updates {
		st.Data[key] = value
	}
	return m.SaveServiceState(ctx, st)
}

// RemoveServiceState deletes one service's sub-document, reporting whether
// it existed.
func (m *Manager) RemoveServiceState(ctx context.Context, serviceName string) (bool, error) {
	record, err := m.backend.LoadUserRecord(ctx, m.userID)
	if err != nil {
		return false, fmt.Errorf("load user record: %w", err)
	}
	if _, ok := record[serviceName]; !ok {
		return false, nil
	}
	delete(record, serviceName)
	if err := m.backend.SaveUserRecord(ctx, m.userID, record); err != nil {
		return false, fmt.Errorf("save user record: %w", err)
	}
	return true, nil
}

// RemoveUserRecord deletes the user's whole record.
func (m *Manager) RemoveUserRecord(ctx context.Context) (bool, error) {
	return m.backend.RemoveUserRecord(ctx, m.userID)
}

// HealthCheck reports whether the underlying backend is usable.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	return m.backend.HealthCheck(ctx)
}

// encodeServiceState produces the persisted sub-document for one service.
// Payload and Response are deliberately excluded.
func encodeServiceState(st *api.ProcedureState) map[string]any {
	return map[string]any{
		"status":   string(st.Status),
		"data":     st.Data,
		"internal": st.Internal,
		"metadata": map[string]any{
			"createdAt": st.Metadata.CreatedAt.Format(time.RFC3339Nano),
			"updatedAt": st.Metadata.UpdatedAt.Format(time.RFC3339Nano),
		},
	}
}

func decodeServiceState(userID, serviceName string, sub map[string]any) *api.ProcedureState {
	st := api.NewProcedureState(userID, serviceName)

	if status, ok := sub["status"].(string); ok && status != "" {
		st.Status = api.Status(status)
	}
	if data, ok := sub["data"].(map[string]any); ok {
		st.Data = data
	}
	if internal, ok := sub["internal"].(map[string]any); ok {
		st.Internal = internal
	}
	if meta, ok := sub["metadata"].(map[string]any); ok {
		st.Metadata = decodeMetadata(meta)
	}
	// A record without metadata keeps the fresh metadata from
	// NewProcedureState (backward compatibility with old documents).
	return st
}

func decodeMetadata(meta map[string]any) api.Metadata {
	md := api.NewMetadata()
	if raw, ok := meta["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			md.CreatedAt = t
		}
	}
	if raw, ok := meta["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			md.UpdatedAt = t
		}
	}
	return md
}
