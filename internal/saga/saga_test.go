package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func recorder(log *[]string, name string, fail error) Step {
	return Step{
		Name: name,
		Do: func(context.Context) error {
			*log = append(*log, "do:"+name)
			return fail
		},
		Compensate: func(context.Context) error {
			*log = append(*log, "undo:"+name)
			return nil
		},
	}
}

func TestRunCompletesAllSteps(t *testing.T) {
	var log []string
	err := New(recorder(&log, "profile", nil), recorder(&log, "account", nil)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"do:profile", "do:account"}, log)
}

func TestRunCompensatesInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	s := New(recorder(&log, "profile", nil), recorder(&log, "account", nil))
	s.Add(recorder(&log, "audit", boom))

	err := s.Run(context.Background())

	require.ErrorIs(t, err, boom)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "audit", stepErr.Step)
	require.Equal(t, []string{"account", "profile"}, stepErr.Compensated)
	require.NoError(t, stepErr.Compensation)
	require.Equal(t, []string{"do:profile", "do:account", "do:audit", "undo:account", "undo:profile"}, log)
}

func TestRunReportsCompensationFailures(t *testing.T) {
	undoErr := errors.New("delete denied")
	s := New(
		Step{
			Name:       "profile",
			Do:         func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return undoErr },
		},
		Step{Name: "account", Do: func(context.Context) error { return errors.New("write failed") }},
	)

	err := s.Run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.ErrorIs(t, stepErr.Compensation, undoErr)
	require.Empty(t, stepErr.Compensated)
	require.Contains(t, err.Error(), "compensation failed")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	first := recorder(&log, "profile", nil)
	first.Do = func(context.Context) error {
		log = append(log, "do:profile")
		cancel()
		return nil
	}

	err := New(first, recorder(&log, "account", nil)).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"do:profile", "undo:profile"}, log)
}
