package decision_test

import (
	"context"
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/proxlock/internal/decision"
	"codeberg.org/mutker/proxlock/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockActuator struct {
	mock.Mock
}

func (m *mockActuator) SetLocked(ctx context.Context, locked bool) error {
	args := m.Called(ctx, locked)
	return args.Error(0)
}

func TestInitialStateLocked(t *testing.T) {
	act := &mockActuator{}
	e := decision.New(-4, act)

	assert.Equal(t, decision.Locked, e.State())
	assert.InDelta(t, -4.0, e.Threshold(), 1e-9)
	act.AssertNotCalled(t, "SetLocked", mock.Anything, mock.Anything)
}

func TestCloseSignalUnlocks(t *testing.T) {
	act := &mockActuator{}
	act.On("SetLocked", mock.Anything, false).Return(nil).Once()
	e := decision.New(-4, act)

	tr, err := e.Evaluate(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, tr.Changed)
	assert.Equal(t, decision.Locked, tr.From)
	assert.Equal(t, decision.Unlocked, tr.To)
	assert.Equal(t, decision.Unlocked, e.State())
	act.AssertExpectations(t)
}

func TestRepeatedVerdictIsIdempotent(t *testing.T) {
	act := &mockActuator{}
	act.On("SetLocked", mock.Anything, false).Return(nil).Once()
	act.On("SetLocked", mock.Anything, true).Return(nil).Once()
	e := decision.New(-4, act)

	_, err := e.Evaluate(context.Background(), 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		tr, err := e.Evaluate(context.Background(), -10)
		require.NoError(t, err)
		assert.Equal(t, i == 0, tr.Changed, "iteration %d", i)
	}

	assert.Equal(t, decision.Locked, e.State())
	act.AssertNumberOfCalls(t, "SetLocked", 2)
	act.AssertExpectations(t)
}

func TestFarSignalWhileLockedIsNoop(t *testing.T) {
	act := &mockActuator{}
	e := decision.New(-4, act)

	tr, err := e.Evaluate(context.Background(), -20)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	act.AssertNotCalled(t, "SetLocked", mock.Anything, mock.Anything)
}

func TestThresholdBoundary(t *testing.T) {
	e := decision.New(-4, &mockActuator{})

	assert.False(t, e.ShouldLock(-4), "value at threshold counts as near")
	assert.True(t, e.ShouldLock(-4.01))
	assert.False(t, e.ShouldLock(-3.99))
}

func TestActuatorFailureKeepsOptimisticState(t *testing.T) {
	cause := stderrors.New("permission denied")
	act := &mockActuator{}
	act.On("SetLocked", mock.Anything, false).Return(cause).Once()
	e := decision.New(-4, act)

	tr, err := e.Evaluate(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrActuatorFailure))
	assert.ErrorIs(t, err, cause)
	assert.True(t, tr.Changed)
	assert.Equal(t, decision.Unlocked, e.State())

	// Same verdict again: no automatic retry from the engine itself.
	tr, err = e.Evaluate(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	act.AssertNumberOfCalls(t, "SetLocked", 1)
}

func TestActuatorFunc(t *testing.T) {
	var got []bool
	e := decision.New(-4, decision.ActuatorFunc(func(_ context.Context, locked bool) error {
		got = append(got, locked)
		return nil
	}))

	for _, v := range []float64{0, -1, -10, -12, 0} {
		_, err := e.Evaluate(context.Background(), v)
		require.NoError(t, err)
	}

	assert.Equal(t, []bool{false, true, false}, got)
}

func TestLockStateString(t *testing.T) {
	assert.Equal(t, "locked", decision.Locked.String())
	assert.Equal(t, "unlocked", decision.Unlocked.String())
	assert.Equal(t, "unknown", decision.LockState(7).String())
	assert.True(t, decision.StateOf(true).IsLocked())
	assert.False(t, decision.StateOf(false).IsLocked())
}

func TestLockStateText(t *testing.T) {
	for _, s := range []decision.LockState{decision.Locked, decision.Unlocked} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got decision.LockState
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}

	var s decision.LockState
	assert.Error(t, s.UnmarshalText([]byte("ajar")))
}
