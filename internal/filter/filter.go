package filter

// Method is the narrow capability set spec.md §4.6/§9 specifies in place of
// a virtual-method filter hierarchy: configure, feed samples, compute a
// value per channel, reset, and gate publication. The platform (module.go)
// owns exactly one Method at a time; replacing the active method discards
// the old instance (and its rings) entirely rather than mutating it in
// place, matching "Filter ring ... destroyed at filter replacement."
type Method interface {
	// SetChannels (re)creates an empty ring per channel, preserving the
	// timebase configuration already set by Configure.
	SetChannels(channels []string)
	// Configure sets the shared window parameters: timebaseSamples selects
	// count-based pruning (true) vs time-based (false, windowValue in
	// seconds); windowValue is the raw timebase_value from config.
	Configure(timebaseSamples bool, windowValue float64)
	// UpdateData appends one (ts, value) sample on channel's ring.
	UpdateData(ts int64, value float64, channel string)
	// Compute returns the filtered value for channel.
	Compute(channel string) float64
	// Reset clears every channel's ring and any per-channel filter state,
	// preserving the channel set (spec.md §8 law 4).
	Reset()
	// ReadyToPublish reports whether the caller should emit the value just
	// computed for this cycle. Always true except for the downsample
	// method, which only fires once its window has elapsed.
	ReadyToPublish() bool
	// AfterPublish runs once per incoming upstream message (not once per
	// channel) after values have been emitted, letting a method like
	// downsample advance its shared counters.
	AfterPublish()
}

// ringSet is the shared per-channel ring management every Method embeds, so
// the window-pruning logic in ring.go is written exactly once.
type ringSet struct {
	timebaseSamples bool
	windowValue     float64
	rings           map[string]*ring
}

func newRingSet() *ringSet {
	return &ringSet{rings: make(map[string]*ring)}
}

func (rs *ringSet) Configure(timebaseSamples bool, windowValue float64) {
	rs.timebaseSamples = timebaseSamples
	rs.windowValue = windowValue
	for ch := range rs.rings {
		rs.rings[ch] = newRing(timebaseSamples, windowValue)
	}
}

func (rs *ringSet) SetChannels(channels []string) {
	rs.rings = make(map[string]*ring, len(channels))
	for _, ch := range channels {
		rs.rings[ch] = newRing(rs.timebaseSamples, rs.windowValue)
	}
}

func (rs *ringSet) UpdateData(ts int64, value float64, channel string) {
	r, ok := rs.rings[channel]
	if !ok {
		return
	}
	r.push(ts, value)
}

func (rs *ringSet) clearRings() {
	for _, r := range rs.rings {
		r.clear()
	}
}

func (rs *ringSet) ring(channel string) *ring {
	return rs.rings[channel]
}

// NewMethod builds the Method named by method ("average", "median",
// "exponential_average", "downsample_average").
func NewMethod(method string) Method {
	switch method {
	case "average":
		return newAverageFilter()
	case "median":
		return newMedianFilter()
	case "exponential_average":
		return newExponentialFilter()
	case "downsample_average":
		return newDownsampleFilter()
	default:
		return newAverageFilter()
	}
}
