package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedianFilterOdd(t *testing.T) {
	f := newMedianFilter()
	f.Configure(true, 5)
	f.SetChannels([]string{"a"})

	for i, v := range []float64{5, 1, 3} {
		f.UpdateData(int64(i), v, "a")
	}
	assert.Equal(t, float64(3), f.Compute("a"))
}

func TestMedianFilterEven(t *testing.T) {
	f := newMedianFilter()
	f.Configure(true, 5)
	f.SetChannels([]string{"a"})

	for i, v := range []float64{1, 2, 3, 4} {
		f.UpdateData(int64(i), v, "a")
	}
	// Linear-interpolated median of an even-length sorted set is the mean
	// of the two middle values.
	assert.Equal(t, float64(2.5), f.Compute("a"))
}

func TestMedianFilterEmpty(t *testing.T) {
	f := newMedianFilter()
	f.Configure(true, 5)
	f.SetChannels([]string{"a"})
	assert.Equal(t, float64(0), f.Compute("a"))
}
