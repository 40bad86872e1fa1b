package procflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmoreira/procflow/pkg/api"
)

// newPruningFlow models a tree pruning request: pick a species, give the
// address, look the address up, confirm, done. lookups counts the external
// calls so tests can assert memoization.
func newPruningFlow(lookups *int) *FlowRunner {
	return NewFlow("tree-pruning", "Request municipal tree pruning",
		func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
			species, err := fc.Choice("species", "Which species is the tree?", []string{"oak", "pine", "palm"})
			if err != nil {
				return nil, err
			}

			address, err := fc.Input("address",
				api.Object(map[string]*api.Schema{"address": api.String("Street address")}),
				"Where is the tree located?")
			if err != nil {
				return nil, err
			}

			district, err := fc.APICall(ctx, "district_lookup", func(ctx context.Context) (any, error) {
				*lookups++
				return "north", nil
			}, address)
			if err != nil {
				return nil, err
			}

			ok, err := fc.Confirm("Confirm the pruning request?", map[string]any{
				"species":  species,
				"address":  address,
				"district": district,
			})
			if err != nil {
				return nil, err
			}
			if !ok {
				return fc.Cancel("Request discarded, let's start over.")
			}

			return fc.Success("Pruning request submitted.", nil)
		})
}

func TestFlowRunner_WalksHooksAcrossTurns(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	ctx := context.Background()
	st := api.NewProcedureState("user-1", "tree-pruning")

	// Turn 1: pause at the species choice.
	st, err := wf.Execute(ctx, st, nil)
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.Contains(t, st.Response.Description, "species")

	// Turn 2: species answered, pause at the address.
	st, err = wf.Execute(ctx, st, map[string]any{"species": "oak"})
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.Equal(t, "oak", st.Data["species"])
	require.Contains(t, st.Response.Description, "located")

	// Turn 3: address answered, the lookup runs, pause at confirmation.
	st, err = wf.Execute(ctx, st, map[string]any{"address": "123 Main St"})
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.Equal(t, 1, lookups)
	require.Equal(t, "north", st.Response.Data["district"])

	// Turn 4: confirmed, terminal. The replay reuses the cached lookup.
	st, err = wf.Execute(ctx, st, map[string]any{"confirm": true})
	require.NoError(t, err)
	require.False(t, st.Response.Paused())
	require.Equal(t, api.StatusCompleted, st.Status)
	require.Equal(t, 1, lookups, "replay must reuse the memoized call")
	require.Equal(t, "Pruning request submitted.", st.Response.Description)
}

func TestFlowRunner_InvalidChoiceRepauses(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	st := api.NewProcedureState("user-1", "tree-pruning")

	st, err := wf.Execute(context.Background(), st, map[string]any{"species": "cactus"})
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.Contains(t, st.Response.ErrorMessage, "cactus")
	require.NotContains(t, st.Data, "species", "invalid answer must not be stored")
	require.Equal(t, api.StatusInProgress, st.Status)
}

func TestFlowRunner_InputValidationFailureRepauses(t *testing.T) {
	wf := NewFlow("strict", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		_, err := fc.Input("year",
			api.Object(map[string]*api.Schema{"year": api.Integer("Tax year")}),
			"Which year?")
		if err != nil {
			return nil, err
		}
		return fc.Success("ok", nil)
	})

	st := api.NewProcedureState("user-1", "strict")
	st, err := wf.Execute(context.Background(), st, map[string]any{"year": "twenty-six"})
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.NotEmpty(t, st.Response.ErrorMessage)
	require.NotContains(t, st.Data, "year")

	// A conforming retry advances.
	st, err = wf.Execute(context.Background(), st, map[string]any{"year": 2026})
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, st.Status)
}

func TestFlowRunner_PayloadOverridesStoredAnswer(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	ctx := context.Background()
	st := api.NewProcedureState("user-1", "tree-pruning")

	st, _ = wf.Execute(ctx, st, map[string]any{"species": "oak"})
	st, _ = wf.Execute(ctx, st, map[string]any{"address": "123 Main St"})
	require.Equal(t, 1, lookups)

	// Re-answering the address truncates the step stack, invalidates the
	// lookup cache and repeats the call with the new value.
	st, err := wf.Execute(ctx, st, map[string]any{"address": "456 Oak Ave"})
	require.NoError(t, err)
	require.Equal(t, "456 Oak Ave", st.Data["address"])
	require.Equal(t, 2, lookups, "changed input must refresh the cached call")
	require.Equal(t, "oak", st.Data["species"], "earlier answers survive")
}

func TestFlowRunner_BackwardNavigationDropsLaterAnswers(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	ctx := context.Background()
	st := api.NewProcedureState("user-1", "tree-pruning")

	st, _ = wf.Execute(ctx, st, map[string]any{"species": "oak"})
	st, _ = wf.Execute(ctx, st, map[string]any{"address": "123 Main St"})

	// Correcting the species drops the address collected after it.
	st, err := wf.Execute(ctx, st, map[string]any{"species": "pine"})
	require.NoError(t, err)
	require.Equal(t, "pine", st.Data["species"])
	require.NotContains(t, st.Data, "address")
	require.True(t, st.Response.Paused())
	require.Contains(t, st.Response.Description, "located")
}

func TestFlowRunner_ConfirmFalseWipesEverything(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	ctx := context.Background()
	st := api.NewProcedureState("user-1", "tree-pruning")

	st, _ = wf.Execute(ctx, st, map[string]any{"species": "oak"})
	st, _ = wf.Execute(ctx, st, map[string]any{"address": "123 Main St"})

	st, err := wf.Execute(ctx, st, map[string]any{"confirm": false})
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, st.Status, "cancellation is a normal completion")
	require.Empty(t, st.Data, "a declined confirmation wipes collected data")
	require.Nil(t, st.StepStack())
	require.False(t, st.Response.Paused())
}

func TestFlowRunner_ErrorTerminator(t *testing.T) {
	wf := NewFlow("failing", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		return fc.Error("We could not find that parcel.", "registry returned 404")
	})

	st := api.NewProcedureState("user-1", "failing")
	st, err := wf.Execute(context.Background(), st, map[string]any{"kick": true})
	require.NoError(t, err)
	require.Equal(t, api.StatusError, st.Status)
	require.Equal(t, "We could not find that parcel.", st.Response.Description)
	require.Equal(t, "registry returned 404", st.Response.ErrorMessage)
}

func TestFlowRunner_UnexpectedErrorIsContained(t *testing.T) {
	wf := NewFlow("broken", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		return nil, errors.New("nil pointer somewhere")
	})

	st := api.NewProcedureState("user-1", "broken")
	st, err := wf.Execute(context.Background(), st, map[string]any{"kick": true})
	require.NoError(t, err)
	require.Equal(t, api.StatusError, st.Status)
	require.Contains(t, st.Response.ErrorMessage, "internal error")
}

func TestFlowRunner_PanicIsContained(t *testing.T) {
	wf := NewFlow("panicky", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		panic("boom")
	})

	st := api.NewProcedureState("user-1", "panicky")
	st, err := wf.Execute(context.Background(), st, map[string]any{"kick": true})
	require.NoError(t, err)
	require.Equal(t, api.StatusError, st.Status)
	require.Contains(t, st.Response.ErrorMessage, "boom")
}

func TestFlowRunner_MultiChoice(t *testing.T) {
	wf := NewFlow("documents", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		docs, err := fc.MultiChoice("documents", "Which documents will you attach?",
			[]string{"id", "deed", "bill"})
		if err != nil {
			return nil, err
		}
		return fc.Success("ok", map[string]any{"count": len(docs)})
	})
	ctx := context.Background()

	// Invalid selection re-pauses.
	st := api.NewProcedureState("user-1", "documents")
	st, err := wf.Execute(ctx, st, map[string]any{"documents": []any{"passport"}})
	require.NoError(t, err)
	require.True(t, st.Response.Paused())
	require.Contains(t, st.Response.ErrorMessage, "passport")

	// Valid selection completes; a scalar counts as one choice.
	st, err = wf.Execute(ctx, st, map[string]any{"documents": "deed"})
	require.NoError(t, err)
	require.Equal(t, api.StatusCompleted, st.Status)
	require.EqualValues(t, 1, st.Response.Data["count"])
}

func TestFlowRunner_SuccessDefaultsToCollectedData(t *testing.T) {
	wf := NewFlow("collector", "", func(ctx context.Context, fc *FlowContext) (*AgentResponse, error) {
		fc.State().Data["answered"] = true
		return fc.Success("done", nil)
	})

	st := api.NewProcedureState("user-1", "collector")
	st, err := wf.Execute(context.Background(), st, map[string]any{"kick": true})
	require.NoError(t, err)
	require.Equal(t, true, st.Response.Data["answered"])
}

func TestFlowRunner_EmptyPayloadRestartsCompletedFlow(t *testing.T) {
	lookups := 0
	wf := newPruningFlow(&lookups)
	ctx := context.Background()
	st := api.NewProcedureState("user-1", "tree-pruning")

	st, _ = wf.Execute(ctx, st, map[string]any{"species": "oak"})
	st, _ = wf.Execute(ctx, st, map[string]any{"address": "123 Main St"})
	st, _ = wf.Execute(ctx, st, map[string]any{"confirm": true})
	require.Equal(t, api.StatusCompleted, st.Status)

	st, err := wf.Execute(ctx, st, nil)
	require.NoError(t, err)
	require.Empty(t, st.Data)
	require.True(t, st.Response.Paused())
	require.Contains(t, st.Response.Description, "species")
}
