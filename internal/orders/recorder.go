package orders

import (
	"context"

	"futurespipeline/internal/model"
)

// Recorder persists an audit row per processed signal into order_states
// (spec §6, supplemented from the original's persistence layer). Callers
// pass a *configstore.PGStore or *configstore.SQLiteStore in production and
// a fake in tests.
type Recorder interface {
	Upsert(ctx context.Context, st model.OrderState) error
}

// noopRecorder satisfies Recorder when no persistence layer is configured
// (e.g. unit tests exercising only the state-store/exchange path).
type noopRecorder struct{}

func (noopRecorder) Upsert(context.Context, model.OrderState) error { return nil }
