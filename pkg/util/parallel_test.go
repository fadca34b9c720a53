package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelKeepsOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7}
	out := make([]int, len(in))
	err := Parallel(context.Background(), in, 3, func(_ context.Context, i, v int) error {
		out[i] = v * v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49}, out)
}

func TestParallelStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	err := Parallel(context.Background(), make([]struct{}, 100), 1, func(_ context.Context, i int, _ struct{}) error {
		calls.Add(1)
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, calls.Load())
}

func TestParallelEmpty(t *testing.T) {
	assert.NoError(t, Parallel(context.Background(), []string(nil), 4, func(context.Context, int, string) error {
		t.Fatal("not called")
		return nil
	}))
}
