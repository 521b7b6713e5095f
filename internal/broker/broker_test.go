package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/messages"
)

type fakePublisher struct {
	published []string
	payloads  [][]byte
}

func (p *fakePublisher) Publish(key string, payload []byte) {
	p.published = append(p.published, key)
	p.payloads = append(p.payloads, payload)
}

type fakePolicy struct {
	policy messages.DataConfig
}

func (p *fakePolicy) Policy() messages.DataConfig { return p.policy }

func newTestBroker(policy messages.DataConfig) (*Broker, *fakePublisher) {
	pub := &fakePublisher{}
	b := New("db1", "mod1", pub, &fakePolicy{policy: policy})
	b.SetSchemas([]Schema{{Topic: "temp"}})
	return b, pub
}

// TestDataInDecimation covers scenario S1: fixed-rate publish fires on the
// first sample and then only once the configured period has elapsed. The
// base timestamp is chosen non-zero so the "never published yet" sentinel
// (currentTS[schema] == 0) can't be mistaken for a just-published sample at
// ts=0.
func TestDataInDecimation(t *testing.T) {
	b, pub := newTestBroker(messages.DataConfig{
		EnableLiveAll:       false,
		EnableLiveFixedRate: true,
		LiveRateHz:          10, // period = 100ms = 1e8 ns
		EnableCapture:       false,
	})

	require.True(t, b.StartSampling())

	const base = int64(1e9)
	b.DataIn(base, map[string]interface{}{"v": 1}, 0, false, true, true)
	b.DataIn(base+5e7, map[string]interface{}{"v": 2}, 0, false, true, true) // 50ms after the last publish, too soon
	b.DataIn(base+1e8, map[string]interface{}{"v": 3}, 0, false, true, true) // exactly one period after the last publish

	b.Shutdown()

	require.Len(t, pub.published, 2)
	assert.Equal(t, "db1/m/mod1/temp/livedec", pub.published[0])
	assert.Equal(t, "db1/m/mod1/temp/livedec", pub.published[1])
	assert.Contains(t, string(pub.payloads[0]), `"v":1`, "first sample always publishes")
	assert.Contains(t, string(pub.payloads[1]), `"v":3`, "the too-soon sample must be skipped, not the one a full period later")
}

func TestDataInDroppedWhenIdle(t *testing.T) {
	b, pub := newTestBroker(messages.DataConfig{EnableLiveAll: true})

	b.DataIn(0, map[string]interface{}{"v": 1}, 0, false, true, true)
	b.Shutdown()

	assert.Empty(t, pub.published, "samples before StartSampling must be dropped")
}

func TestStartCaptureFromIdleImpliesSampling(t *testing.T) {
	b, _ := newTestBroker(messages.DataConfig{EnableCapture: false})
	defer b.Shutdown()

	require.True(t, b.StartCapture())
	assert.True(t, b.SamplingRunning())
	assert.True(t, b.CaptureRunning())

	require.True(t, b.StopCapture())
	assert.False(t, b.SamplingRunning(), "sampling implied by StartCapture from Idle must also stop")
}

func TestStopCaptureIsIdempotent(t *testing.T) {
	b, _ := newTestBroker(messages.DataConfig{})
	defer b.Shutdown()

	require.True(t, b.StartCapture())
	require.True(t, b.StopCapture())
	assert.False(t, b.StopCapture(), "second StopCapture call is a no-op")
}

func TestLatestDataBeforeAnySample(t *testing.T) {
	b, _ := newTestBroker(messages.DataConfig{})
	defer b.Shutdown()
	assert.Equal(t, "{}", b.LatestData())
}
