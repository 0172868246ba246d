package adslot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("banner")
	require.NoError(t, err)
	assert.Equal(t, FormatBanner, f)

	f, err = ParseFormat("interstitial")
	require.NoError(t, err)
	assert.Equal(t, FormatInterstitial, f)

	_, err = ParseFormat("video")
	assert.Error(t, err)
}

func TestLoadReady(t *testing.T) {
	l := NewLoader(0, 0)

	for _, format := range []Format{FormatBanner, FormatInterstitial} {
		slot, err := l.Load(context.Background(), format)
		require.NoError(t, err)
		assert.Equal(t, StateReady, slot.State)
		assert.True(t, slot.Visible)
		require.NotNil(t, slot.Creative)
		assert.Equal(t, format, slot.Creative.Format)
		assert.NotEmpty(t, slot.Creative.ID)
		assert.Empty(t, slot.Error)
	}
}

func TestLoadFailure(t *testing.T) {
	l := NewLoader(0, 0, WithFailureFunc(func() bool { return true }))

	banner, err := l.Load(context.Background(), FormatBanner)
	require.NoError(t, err)
	assert.Equal(t, StateError, banner.State)
	assert.False(t, banner.Visible)
	assert.Nil(t, banner.Creative)
	assert.Equal(t, ErrLoadFailed.Error(), banner.Error)

	inter, err := l.Load(context.Background(), FormatInterstitial)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, inter.State)
	assert.False(t, inter.Visible)
}

func TestLoadWaitsForDelay(t *testing.T) {
	l := NewLoader(30*time.Millisecond, 0)

	start := time.Now()
	slot, err := l.Load(context.Background(), FormatBanner)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, StateReady, slot.State)
}

func TestLoadCancelled(t *testing.T) {
	l := NewLoader(time.Hour, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	slot, err := l.Load(ctx, FormatInterstitial)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, slot)
}

func TestFailureRateBounds(t *testing.T) {
	never := NewLoader(0, 0)
	always := NewLoader(0, 1)
	for i := 0; i < 50; i++ {
		assert.False(t, never.shouldFail())
		assert.True(t, always.shouldFail())
	}
}

func TestSlotClose(t *testing.T) {
	slot, err := NewLoader(0, 0).Load(context.Background(), FormatInterstitial)
	require.NoError(t, err)
	slot.Close()
	assert.Equal(t, StateClosed, slot.State)
	assert.False(t, slot.Visible)
}
