package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaga_CompensatesInReverseOrder(t *testing.T) {
	var trail []string
	boom := errors.New("boom")

	s := New("test", zap.NewNop())
	for _, name := range []string{"a", "b"} {
		name := name
		s.AddStep(Step{
			Name:       name,
			Execute:    func(context.Context) error { trail = append(trail, "do "+name); return nil },
			Compensate: func(context.Context) error { trail = append(trail, "undo "+name); return nil },
		})
	}
	s.AddStep(Step{Name: "no-undo", Execute: func(context.Context) error { trail = append(trail, "do no-undo"); return nil }})
	s.AddStep(Step{
		Name:       "c",
		Execute:    func(context.Context) error { return boom },
		Compensate: func(context.Context) error { trail = append(trail, "undo c"); return nil },
	})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "step 'c'")
	assert.Equal(t, []string{"do a", "do b", "do no-undo", "undo b", "undo a"}, trail)
}

func TestSaga_CompensationFailureDoesNotStopRollback(t *testing.T) {
	var undone []string

	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:       "a",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(context.Context) error { undone = append(undone, "a"); return nil },
	})
	s.AddStep(Step{
		Name:       "b",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(context.Context) error { return errors.New("cannot undo b") },
	})
	s.AddStep(Step{Name: "c", Execute: func(context.Context) error { return errors.New("fail") }})

	require.Error(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"a"}, undone)
}

func TestSaga_CompensatesWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedErr error

	s := New("test", zap.NewNop())
	s.AddStep(Step{
		Name:       "a",
		Execute:    func(context.Context) error { return nil },
		Compensate: func(ctx context.Context) error { compensatedErr = ctx.Err(); return nil },
	})
	s.AddStep(Step{Name: "b", Execute: func(context.Context) error { cancel(); return context.Canceled }})

	require.Error(t, s.Execute(ctx))
	assert.NoError(t, compensatedErr)
}
