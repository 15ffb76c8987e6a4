package window_test

import (
	"testing"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotReadyUntilFull(t *testing.T) {
	for _, capacity := range []int{1, 2, 5, 8} {
		w, err := window.New(capacity)
		require.NoError(t, err)

		for i := 0; i < capacity-1; i++ {
			w.Push(float64(-i))
			_, err := w.Mean()
			require.ErrorIs(t, err, window.ErrNotReady, "capacity %d after %d pushes", capacity, i+1)
			assert.False(t, w.Ready())
		}

		w.Push(-1)
		_, err = w.Mean()
		require.NoError(t, err, "capacity %d", capacity)
		assert.True(t, w.Ready())
	}
}

func TestEmptyWindowNotReady(t *testing.T) {
	w, err := window.New(3)
	require.NoError(t, err)

	_, err = w.Mean()
	assert.True(t, errors.HasCode(err, errors.ErrNotReady))
	assert.Nil(t, w.Values())
}

func TestMeanOfLastN(t *testing.T) {
	w, err := window.New(5)
	require.NoError(t, err)

	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		w.Push(v)
	}

	mean, err := w.Mean()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, mean, 1e-9)
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, w.Values())
	assert.Equal(t, 5, w.Len())
	assert.Equal(t, 5, w.Cap())
}

func TestEvictionKeepsOnlyRecentSamples(t *testing.T) {
	w, err := window.New(3)
	require.NoError(t, err)

	for _, v := range []float64{-100, -100, -100, 0, 0, 0} {
		w.Push(v)
	}

	mean, err := w.Mean()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mean, 1e-9)
}

func TestInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		w, err := window.New(capacity)
		assert.Nil(t, w)
		require.ErrorIs(t, err, window.ErrInvalidCapacity)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidCapacity))
	}
}

func TestReset(t *testing.T) {
	w, err := window.New(2)
	require.NoError(t, err)

	w.Push(-3)
	w.Push(-5)
	require.True(t, w.Ready())

	w.Reset()
	assert.Equal(t, 0, w.Len())
	_, err = w.Mean()
	assert.ErrorIs(t, err, window.ErrNotReady)

	w.Push(-1)
	w.Push(-2)
	mean, err := w.Mean()
	require.NoError(t, err)
	assert.InDelta(t, -1.5, mean, 1e-9)
}
