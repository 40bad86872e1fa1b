package persistence

import (
	"context"
	"errors"
)

// ErrAllBackendsFailed is returned by the composite backend when every
// underlying write fails.
var ErrAllBackendsFailed = errors.New("all storage backends failed")

// Backend persists one document per user. The document is a map keyed by
// service name, each value being the serialized subset of that service's
// ProcedureState (status, data, internal, metadata). Payload and the last
// response are never persisted.
//
// LoadUserRecord returns an empty map, not an error, when the user has no
// record yet.
type Backend interface {
	LoadUserRecord(ctx context.Context, userID string) (map[string]any, error)
	SaveUserRecord(ctx context.Context, userID string, record map[string]any) error
	// RemoveUserRecord deletes a user's record, reporting whether anything
	// was removed.
	RemoveUserRecord(ctx context.Context, userID string) (bool, error)
	// HealthCheck reports whether the backend is currently usable.
	HealthCheck(ctx context.Context) bool
	// ListUserIDs enumerates the users with a persisted record.
	ListUserIDs(ctx context.Context) ([]string, error)
}
