// Package saga runs multi-step writes with compensating actions.
package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is a single step in a saga with execute and compensate actions.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga orchestrates a sequence of steps with compensating transactions on failure.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a new saga orchestrator.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		name:   name,
		steps:  make([]Step, 0),
		logger: logger,
	}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) {
	s.steps = append(s.steps, step)
}

// Execute runs all saga steps in order. On failure, it compensates executed steps in
// reverse order and returns the failing step's error wrapped, so errors.Is still
// matches the original cause.
func (s *Saga) Execute(ctx context.Context) error {
	s.logger.Debug("saga started", zap.String("saga", s.name))

	executed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		s.logger.Debug("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed, starting compensation",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			s.compensate(ctx, executed)
			return fmt.Errorf("saga '%s' failed at step '%s': %w", s.name, step.Name, err)
		}

		executed = append(executed, step)
	}

	s.logger.Debug("saga completed successfully", zap.String("saga", s.name))
	return nil
}

func (s *Saga) compensate(ctx context.Context, executed []Step) {
	// compensations must run even if the caller's context was cancelled mid-saga
	ctx = context.WithoutCancel(ctx)
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensate == nil {
			continue
		}
		s.logger.Info("compensating saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}
