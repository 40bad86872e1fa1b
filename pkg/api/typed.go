package api

import (
	"encoding/json"
	"fmt"
)

// BindData decodes the collected Data map into a caller-defined struct.
// Values loaded from a JSON document carry dynamic types (numbers arrive as
// float64), so conversion goes through encoding/json rather than type
// assertions.
func BindData[T any](s *ProcedureState) (T, error) {
	var out T
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return out, fmt.Errorf("bind data for %q: %w", s.ServiceName, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("bind data for %q: %w", s.ServiceName, err)
	}
	return out, nil
}

// MergeData encodes v and merges its exported fields into Data, overwriting
// keys that already exist. Fields marked json:"-" or omitted by omitempty do
// not touch the map.
func MergeData[T any](s *ProcedureState, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("merge data for %q: %w", s.ServiceName, err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("merge data for %q: %w", s.ServiceName, err)
	}
	if s.Data == nil {
		s.Data = make(map[string]any, len(fields))
	}
	for k, val := range fields {
		s.Data[k] = val
	}
	return nil
}

// DataField returns the Data value under key converted to T. A direct type
// assertion is tried first; otherwise the value is re-encoded, which covers
// float64 to int and map to struct conversions.
func DataField[T any](s *ProcedureState, key string) (T, error) {
	var out T
	raw, ok := s.Data[key]
	if !ok {
		return out, fmt.Errorf("data field %q not set", key)
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	enc, err := json.Marshal(raw)
	if err == nil {
		if err := json.Unmarshal(enc, &out); err == nil {
			return out, nil
		}
	}
	return out, fmt.Errorf("data field %q: expected %T, got %T", key, out, raw)
}
