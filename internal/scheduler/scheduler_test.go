package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSchedulerEvery(t *testing.T) {
	s := New(zaptest.NewLogger(t))
	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	var runs atomic.Int32
	cancel, err := s.Every(time.Second, func() { runs.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	assert.Equal(t, 0, s.Len())

	cancel, err = s.AddFunc("@daily", "daily", func() {})
	require.NoError(t, err)
	cancel()
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec("0 0 * * *"))
	assert.NoError(t, ValidateSpec("30 0 0 * * *"))
	assert.NoError(t, ValidateSpec("@midnight"))
	assert.Error(t, ValidateSpec("every tuesday"))
}

func TestSchedulerRejectsBadInput(t *testing.T) {
	s := New(zaptest.NewLogger(t))

	_, err := s.Every(0, func() {})
	assert.Error(t, err)

	_, err = s.AddFunc("not a spec", "broken", func() {})
	assert.Error(t, err)

	cancel, err := s.AddFunc("0 0 0 * * *", "midnight", func() {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	cancel()
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := New(zaptest.NewLogger(t))
	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	var after atomic.Bool
	_, err := s.Every(time.Second, func() { panic("boom") })
	require.NoError(t, err)
	_, err = s.Every(time.Second, func() { after.Store(true) })
	require.NoError(t, err)

	require.Eventually(t, after.Load, 3*time.Second, 50*time.Millisecond)
}
