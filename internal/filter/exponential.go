package filter

import "math"

// exponentialFilter implements spec.md §4.6's exponential average: the
// first sample on a channel passes through unchanged, then
// y = alpha*x + (1-alpha)*y_prev, with alpha fixed at 2/(N+1) for a
// sample-based timebase or recomputed from the gap to the previous sample
// for a time-based one (scenario S3).
type exponentialFilter struct {
	*ringSet
	yPrev map[string]float64
	count map[string]int
}

func newExponentialFilter() *exponentialFilter {
	return &exponentialFilter{
		ringSet: newRingSet(),
		yPrev:   make(map[string]float64),
		count:   make(map[string]int),
	}
}

func (f *exponentialFilter) SetChannels(channels []string) {
	f.ringSet.SetChannels(channels)
	f.yPrev = make(map[string]float64, len(channels))
	f.count = make(map[string]int, len(channels))
}

func (f *exponentialFilter) Compute(channel string) float64 {
	r := f.ring(channel)
	if r == nil {
		return 0
	}
	newest, ok := r.newest()
	if !ok {
		return 0
	}

	f.count[channel]++
	if f.count[channel] == 1 {
		f.yPrev[channel] = newest.value
		return newest.value
	}

	alpha := f.alpha(r, newest)
	y := alpha*newest.value + (1-alpha)*f.yPrev[channel]
	f.yPrev[channel] = y
	return y
}

// alpha is constant for a sample-based timebase; for a time-based one it is
// recomputed each step from the gap to the previous sample, per spec.md
// §4.6: alpha = 1 - exp(-(dt/2)/T).
func (f *exponentialFilter) alpha(r *ring, newest sample) float64 {
	if f.timebaseSamples {
		n := f.windowValue
		return 2 / (n + 1)
	}

	prev, ok := r.secondNewest()
	if !ok {
		return 1
	}
	dtSeconds := float64(newest.ts-prev.ts) / 1e9
	tSeconds := f.windowValue
	if tSeconds <= 0 {
		return 1
	}
	return 1 - math.Exp(-(dtSeconds/2)/tSeconds)
}

func (f *exponentialFilter) Reset() {
	f.clearRings()
	for ch := range f.yPrev {
		delete(f.yPrev, ch)
	}
	for ch := range f.count {
		delete(f.count, ch)
	}
}

func (f *exponentialFilter) ReadyToPublish() bool { return true }

func (f *exponentialFilter) AfterPublish() {}
