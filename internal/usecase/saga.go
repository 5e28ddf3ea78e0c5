package usecase

import (
	"context"

	"go.uber.org/zap"
)

type compensation struct {
	name string
	undo func(context.Context) error
}

// saga records undo steps for completed writes and replays them in reverse on failure.
type saga struct {
	op     string
	logger *zap.Logger
	steps  []compensation
}

func newSaga(op string, logger *zap.Logger) *saga {
	return &saga{op: op, logger: logger}
}

func (s *saga) onFailure(name string, undo func(context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// rollback runs every recorded compensation; failures are logged and never returned.
func (s *saga) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("operation", s.op),
				zap.String("step", step.name),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("compensation applied", zap.String("operation", s.op), zap.String("step", step.name))
	}
	s.steps = nil
}
