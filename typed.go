package procflow

import (
	"context"

	"github.com/jmoreira/procflow/pkg/api"
)

// TypedStep wraps a strongly-typed function into a StepFunc. The collected
// data map is decoded into T before the call and the returned value is
// merged back afterwards, so step bodies read and write struct fields
// instead of map entries.
//
//	procflow.TypedStep(func(ctx context.Context, st *procflow.ProcedureState, in TaxGuide) (TaxGuide, error) { ... })
func TypedStep[T any](fn func(context.Context, *ProcedureState, T) (T, error)) StepFunc {
	return func(ctx context.Context, st *api.ProcedureState) error {
		in, err := api.BindData[T](st)
		if err != nil {
			return err
		}
		out, err := fn(ctx, st, in)
		if err != nil {
			return err
		}
		return api.MergeData(st, out)
	}
}

// BindData decodes the collected data map into a caller-defined struct.
func BindData[T any](st *ProcedureState) (T, error) {
	return api.BindData[T](st)
}

// DataField returns a single collected field converted to T.
func DataField[T any](st *ProcedureState, key string) (T, error) {
	return api.DataField[T](st, key)
}
