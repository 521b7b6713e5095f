package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/transport"
)

type recordingDataIn struct {
	calls []map[string]interface{}
}

func (r *recordingDataIn) record(_ int64, payload map[string]interface{}, _ int, _, _, _ bool) {
	r.calls = append(r.calls, payload)
}

func newBoundModule(t *testing.T, sampling bool) (*Module, *recordingDataIn) {
	t.Helper()
	m := New("db1", "filt1")
	rec := &recordingDataIn{}

	subscribed := make(map[string]bool)
	m.Bind(
		func(key string, _ transport.SubscribeHandler) { subscribed[key] = true },
		func(key string, _ transport.SubscribeHandler) { delete(subscribed, key) },
		rec.record,
		func() bool { return sampling },
	)
	return m, rec
}

func TestApplyConfigValidation(t *testing.T) {
	m := New("db1", "filt1")
	assert.Contains(t, m.ValidateConfig(`{"timebase":"bogus","timebase_value":1,"method":"average"}`), "timebase must be")
	assert.Contains(t, m.ValidateConfig(`{"timebase":"samples","timebase_value":0,"method":"average"}`), "timebase_value")
	assert.Contains(t, m.ValidateConfig(`{"timebase":"samples","timebase_value":1,"method":"bogus"}`), "unknown method")
	assert.Equal(t, "", m.ValidateConfig(`{"timebase":"samples","timebase_value":3,"method":"average","channels":["a"]}`))
}

func TestOnUpstreamComputesAverageWhileSampling(t *testing.T) {
	m, rec := newBoundModule(t, true)

	cfg := Config{InputModule: "src", Channels: []string{"a"}, Timebase: "samples", TimebaseValue: 2, Method: "average"}
	require.NoError(t, m.ApplyConfig(jsonutil.ToString(cfg)))

	m.onUpstream("db1/m/src", []byte(`{"ts":1,"a":10}`))
	m.onUpstream("db1/m/src", []byte(`{"ts":2,"a":20}`))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, float64(10), rec.calls[0]["a_filtered"])
	assert.Equal(t, float64(15), rec.calls[1]["a_filtered"])
}

func TestOnUpstreamDropsWhenNotSampling(t *testing.T) {
	m, rec := newBoundModule(t, false)

	cfg := Config{InputModule: "src", Channels: []string{"a"}, Timebase: "samples", TimebaseValue: 2, Method: "average"}
	require.NoError(t, m.ApplyConfig(jsonutil.ToString(cfg)))

	m.onUpstream("db1/m/src", []byte(`{"ts":1,"a":10}`))
	assert.Empty(t, rec.calls, "no sample should be emitted while the broker is not sampling")
}

func TestSchemasReflectChannels(t *testing.T) {
	m := New("db1", "filt1")
	cfg := Config{InputModule: "src", Channels: []string{"a", "b"}, Timebase: "samples", TimebaseValue: 2, Method: "median"}
	require.NoError(t, m.ApplyConfig(jsonutil.ToString(cfg)))

	schemas := m.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "a_filtered", schemas[0].Topic)
	assert.Equal(t, "median", schemas[0].Properties["method"])
}
