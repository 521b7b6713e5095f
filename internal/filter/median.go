package filter

import "sort"

// medianFilter computes the median of a sorted copy of the ring (spec.md
// §4.6, scenario S4): the middle value for an odd length, the mean of the
// two middle values for an even length.
type medianFilter struct {
	*ringSet
}

func newMedianFilter() *medianFilter {
	return &medianFilter{ringSet: newRingSet()}
}

func (f *medianFilter) Compute(channel string) float64 {
	r := f.ring(channel)
	if r == nil || r.len() == 0 {
		return 0
	}
	values := r.values()
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func (f *medianFilter) Reset() { f.clearRings() }

func (f *medianFilter) ReadyToPublish() bool { return true }

func (f *medianFilter) AfterPublish() {}
