package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend persists one JSON file per user under a data directory.
// Reads and writes cover the whole document; writes go through a temp file
// and rename so a crash mid-write never leaves a truncated record.
type FileBackend struct {
	dataDir string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates the data directory if needed and returns a
// FileBackend rooted at it.
func NewFileBackend(dataDir string) (*FileBackend, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dataDir: dataDir}, nil
}

// sanitizeUserID keeps user-supplied identifiers from escaping the data
// directory. Anything outside [A-Za-z0-9._@-] becomes an underscore.
func sanitizeUserID(userID string) string {
	var b strings.Builder
	b.Grow(len(userID))
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '@' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	// "." and ".." would resolve to directories.
	if s == "" || strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}

func (f *FileBackend) userFilePath(userID string) string {
	return filepath.Join(f.dataDir, sanitizeUserID(userID)+".json")
}

func (f *FileBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	data, err := os.ReadFile(f.userFilePath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read user record: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	if record == nil {
		record = map[string]any{}
	}
	return record, nil
}

func (f *FileBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	path := f.userFilePath(userID)
	tmp, err := os.CreateTemp(f.dataDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write user record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace user record: %w", err)
	}
	return nil
}

func (f *FileBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	err := os.Remove(f.userFilePath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove user record: %w", err)
	}
	return true, nil
}

// HealthCheck probes that the data directory exists and is writable.
func (f *FileBackend) HealthCheck(ctx context.Context) bool {
	info, err := os.Stat(f.dataDir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe, err := os.CreateTemp(f.dataDir, ".health-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}

func (f *FileBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dataDir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
