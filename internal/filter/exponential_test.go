package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExponentialFilterSampleBased(t *testing.T) {
	f := newExponentialFilter()
	f.Configure(true, 3) // alpha = 2/(3+1) = 0.5
	f.SetChannels([]string{"a"})

	inputs := []float64{10, 10, 10, 20}
	want := []float64{10, 10, 10, 15}

	for i, x := range inputs {
		f.UpdateData(int64(i), x, "a")
		assert.Equal(t, want[i], f.Compute("a"), "step %d", i)
	}
}

func TestExponentialFilterFirstSamplePassesThrough(t *testing.T) {
	f := newExponentialFilter()
	f.Configure(true, 10)
	f.SetChannels([]string{"a"})

	f.UpdateData(0, 42, "a")
	assert.Equal(t, float64(42), f.Compute("a"))
}

func TestExponentialFilterResetClearsState(t *testing.T) {
	f := newExponentialFilter()
	f.Configure(true, 3)
	f.SetChannels([]string{"a"})

	f.UpdateData(0, 10, "a")
	f.Compute("a")
	f.UpdateData(1, 20, "a")
	f.Compute("a")

	f.Reset()
	f.UpdateData(2, 5, "a")
	assert.Equal(t, float64(5), f.Compute("a"), "after Reset the first sample passes through again")
}
