package api

import (
	"encoding/json"
	"testing"
)

func TestNewProcedureState(t *testing.T) {
	st := NewProcedureState("user-1", "tax-guide")

	if st.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", st.Status)
	}
	if st.Data == nil || st.Payload == nil || st.Internal == nil {
		t.Fatal("expected all maps initialized")
	}
	if st.Metadata.CreatedAt.IsZero() || st.Metadata.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps set")
	}
}

func TestFullResetPreservesCreatedAt(t *testing.T) {
	st := NewProcedureState("user-1", "tax-guide")
	created := st.Metadata.CreatedAt

	st.Data["address"] = "123 Main St"
	st.Internal["api_cache_x"] = "cached"
	st.Response = &AgentResponse{Description: "old"}
	st.Status = StatusCompleted

	st.FullReset()

	if len(st.Data) != 0 || len(st.Internal) != 0 {
		t.Fatal("expected data and internal cleared")
	}
	if st.Response != nil {
		t.Fatal("expected response cleared")
	}
	if st.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", st.Status)
	}
	if !st.Metadata.CreatedAt.Equal(created) {
		t.Fatal("CreatedAt must survive a full reset")
	}
}

func TestStepStackJSONRoundTrip(t *testing.T) {
	st := NewProcedureState("user-1", "tax-guide")
	st.SetStepStack([]string{"address", "year"})

	// Simulate a persistence round trip: []string becomes []any.
	encoded, err := json.Marshal(st.Internal)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	st.Internal = decoded

	got := st.StepStack()
	if len(got) != 2 || got[0] != "address" || got[1] != "year" {
		t.Fatalf("expected [address year], got %v", got)
	}
}

func TestSetStepStackEmptyRemovesEntry(t *testing.T) {
	st := NewProcedureState("user-1", "tax-guide")
	st.SetStepStack([]string{"address"})
	st.SetStepStack(nil)

	if _, ok := st.Internal[StepStackKey]; ok {
		t.Fatal("expected empty stack to remove the entry")
	}
	if got := st.StepStack(); got != nil {
		t.Fatalf("expected nil stack, got %v", got)
	}
}

func TestInternalDepsTagging(t *testing.T) {
	st := NewProcedureState("user-1", "tax-guide")
	st.Internal["api_cache_x"] = "value"
	st.TagInternalDeps("api_cache_x", []string{"address"})

	deps, ok := st.InternalDeps("api_cache_x")
	if !ok || len(deps) != 1 || deps[0] != "address" {
		t.Fatalf("expected [address], got %v ok=%v", deps, ok)
	}

	st.DeleteInternal("api_cache_x")
	if _, ok := st.Internal["api_cache_x"]; ok {
		t.Fatal("expected cache entry removed")
	}
	if _, ok := st.InternalDeps("api_cache_x"); ok {
		t.Fatal("expected dependency tag removed with the entry")
	}
}

func TestIsReservedInternalKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{StepStackKey, true},
		{"deps:api_cache_x", true},
		{"api_cache_x", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsReservedInternalKey(tc.key); got != tc.want {
			t.Errorf("IsReservedInternalKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestAgentResponsePaused(t *testing.T) {
	var resp *AgentResponse
	if resp.Paused() {
		t.Fatal("nil response must not report paused")
	}

	resp = &AgentResponse{Description: "done"}
	if resp.Paused() {
		t.Fatal("response without schema must be terminal")
	}

	resp.InputSchema = Confirm("confirm")
	if !resp.Paused() {
		t.Fatal("response with schema must report paused")
	}
}
