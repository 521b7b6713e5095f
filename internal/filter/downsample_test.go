package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownsampleFilterCountBased(t *testing.T) {
	f := newDownsampleFilter()
	f.Configure(true, 3) // window = 3 distinct timestamps
	f.SetChannels([]string{"a", "b"})

	// Two channels fed from the same upstream message (same ts) must only
	// advance the shared counter once.
	f.UpdateData(1, 10, "a")
	f.UpdateData(1, 20, "b")
	f.Compute("a")
	f.Compute("b")
	assert.False(t, f.ReadyToPublish(), "window of 3 not yet elapsed after one message")
	f.AfterPublish() // no-op since not ready

	f.UpdateData(2, 10, "a")
	f.UpdateData(2, 20, "b")
	f.Compute("a")
	f.Compute("b")
	assert.False(t, f.ReadyToPublish())

	f.UpdateData(3, 10, "a")
	f.UpdateData(3, 20, "b")
	avgA := f.Compute("a")
	avgB := f.Compute("b")
	assert.True(t, f.ReadyToPublish())
	assert.Equal(t, float64(10), avgA)
	assert.Equal(t, float64(20), avgB)

	f.AfterPublish()
	assert.False(t, f.ReadyToPublish(), "AfterPublish resets readiness for the next window")
}

func TestDownsampleFilterTimeBased(t *testing.T) {
	f := newDownsampleFilter()
	f.Configure(false, 1) // 1 second window
	f.SetChannels([]string{"a"})

	f.UpdateData(0, 10, "a")
	f.Compute("a")
	assert.False(t, f.ReadyToPublish())

	f.UpdateData(int64(1.5e9), 20, "a")
	f.Compute("a")
	assert.True(t, f.ReadyToPublish())
}
