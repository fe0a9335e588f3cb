package recorder

import (
	"context"

	"SignalDesk/internal/model"

	"github.com/google/uuid"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSnapshot(context.Context, model.SignalSnapshot) error {
	return nil
}

func (n *NoopRecorder) RecordTransition(context.Context, Transition) error {
	return nil
}

func (n *NoopRecorder) RecordBacktestRun(context.Context, BacktestRun) (string, error) {
	return uuid.NewString(), nil
}

func (n *NoopRecorder) LastStatus(context.Context, string) (model.Status, bool, error) {
	return "", false, nil
}

func (n *NoopRecorder) RecentTransitions(context.Context, string, int) ([]Transition, error) {
	return nil, nil
}

func (n *NoopRecorder) Close() error { return nil }
