package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageFilter(t *testing.T) {
	f := newAverageFilter()
	f.Configure(true, 3)
	f.SetChannels([]string{"a"})

	assert.Equal(t, float64(0), f.Compute("a"), "empty ring averages to 0")

	f.UpdateData(1, 10, "a")
	f.UpdateData(2, 20, "a")
	f.UpdateData(3, 30, "a")
	assert.Equal(t, float64(20), f.Compute("a"))

	// Count-based window of 3: a fourth sample evicts the oldest.
	f.UpdateData(4, 40, "a")
	assert.Equal(t, float64(30), f.Compute("a"))

	assert.True(t, f.ReadyToPublish())

	f.Reset()
	assert.Equal(t, float64(0), f.Compute("a"))
}

func TestAverageFilterUnknownChannel(t *testing.T) {
	f := newAverageFilter()
	f.Configure(true, 3)
	f.SetChannels([]string{"a"})
	f.UpdateData(1, 10, "b") // not a configured channel, silently dropped
	assert.Equal(t, float64(0), f.Compute("b"))
}
