// Package broker implements the per-module fan-out engine of spec.md §4.3:
// it accepts sample records, writes them to a binary log channel, and emits
// live copies to the "all-samples" and "fixed-rate" topics under a single
// serializing lock that is never held across a publish call.
//
// Grounded on _examples/original_source/libs/cpp/{header,source}/DataBroker.cpp
// for the state machine and data_in algorithm, and on
// golang/cmd/mqtt-kafka-bridge/mqtt.go's dual incoming/outgoing queue +
// dedicated sender goroutine pattern for the two live-stream publishers.
package broker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/messages"
	"github.com/virtual-vehicle/databeam/internal/metrics"
)

// State is the broker's sampling/capture state machine (spec.md §4.3.1).
type State int

const (
	Idle State = iota
	Sampling
	Capturing
)

// Publisher is the minimal transport capability the broker needs: fire a
// publish at a key. Implemented by transport.Endpoint/transport.Router.
type Publisher interface {
	Publish(key string, data []byte)
}

// PolicyProvider supplies the broker with the module's current live/capture
// policy (spec.md §4.3, backed by internal/dataconfig.Store).
type PolicyProvider interface {
	Policy() messages.DataConfig
}

type liveItem struct {
	schemaIndex int
	payload     []byte
}

const sentinelSchemaIndex = -1

// Broker is the per-module data broker of spec.md §4.3.
type Broker struct {
	dbID       string
	moduleName string
	publisher  Publisher
	policy     PolicyProvider

	mu          sync.Mutex
	state       State
	schemas     []Schema
	allTopics   []string
	fixedTopics []string
	currentTS   []int64
	channelIDs  []uint16

	samplingBeforeCapture bool
	logOpen               bool
	log                   LogWriter
	frameIndex             uint32

	latestJSON string

	allQueue   chan liveItem
	fixedQueue chan liveItem
	wg         sync.WaitGroup
}

// New constructs a broker for one module. It does not start publishers
// until SetSchemas is called.
func New(dbID, moduleName string, publisher Publisher, policy PolicyProvider) *Broker {
	return &Broker{
		dbID:       dbID,
		moduleName: moduleName,
		publisher:  publisher,
		policy:     policy,
		latestJSON: "{}",
	}
}

// SetSchemas stops the publisher goroutines, rebuilds per-schema topics and
// decimation state, and restarts the goroutines. Callable only when not
// sampling (spec.md §4.3).
func (b *Broker) SetSchemas(schemas []Schema) {
	b.mu.Lock()
	if b.state != Idle {
		b.mu.Unlock()
		zap.S().Errorw("broker: SetSchemas called while not idle; caller must quiesce first")
		return
	}

	b.stopPublishersLocked()

	b.schemas = make([]Schema, len(schemas))
	b.allTopics = make([]string, len(schemas))
	b.fixedTopics = make([]string, len(schemas))
	b.currentTS = make([]int64, len(schemas))
	b.channelIDs = make([]uint16, len(schemas))
	for i, s := range schemas {
		b.schemas[i] = s
		b.allTopics[i] = fmt.Sprintf("%s/m/%s/%s/liveall", b.dbID, b.moduleName, s.Topic)
		b.fixedTopics[i] = fmt.Sprintf("%s/m/%s/%s/livedec", b.dbID, b.moduleName, s.Topic)
	}

	b.allQueue = make(chan liveItem, 1024)
	b.fixedQueue = make(chan liveItem, 1024)
	b.mu.Unlock()

	b.wg.Add(2)
	go b.publishLoop(b.allQueue, b.allTopics)
	go b.publishLoop(b.fixedQueue, b.fixedTopics)
}

func (b *Broker) stopPublishersLocked() {
	if b.allQueue != nil {
		b.allQueue <- liveItem{schemaIndex: sentinelSchemaIndex}
	}
	if b.fixedQueue != nil {
		b.fixedQueue <- liveItem{schemaIndex: sentinelSchemaIndex}
	}
	b.mu.Unlock()
	b.wg.Wait()
	b.mu.Lock()
}

// publishLoop owns one queue; a sentinel item (schemaIndex == -1) ends the
// goroutine. The broker lock is never held during Publish, per spec.md
// §4.3.3 and §5.
func (b *Broker) publishLoop(queue chan liveItem, topics []string) {
	defer b.wg.Done()
	for item := range queue {
		if item.schemaIndex == sentinelSchemaIndex {
			return
		}
		if item.schemaIndex < 0 || item.schemaIndex >= len(topics) {
			zap.S().Errorw("broker: schema index out of range in publisher, dropped", "index", item.schemaIndex)
			continue
		}
		b.publisher.Publish(topics[item.schemaIndex], item.payload)
	}
}

// PrepareCapture creates a fresh log writer, registers each schema and opens
// the file. If capture is disabled in policy, file work is skipped but the
// broker is still considered prepared (spec.md §4.3).
func (b *Broker) PrepareCapture(openFile func() (LogWriter, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Capturing {
		return fmt.Errorf("broker: capture already running")
	}

	if !b.policy.Policy().EnableCapture {
		b.logOpen = false
		return nil
	}

	w, err := openFile()
	if err != nil {
		zap.S().Errorw("broker: prepareCapture failed to open log", "error", err)
		b.logOpen = false
		return err
	}

	ids := make([]uint16, len(b.schemas))
	for i, s := range b.schemas {
		id, err := w.OpenSchema(s)
		if err != nil {
			zap.S().Errorw("broker: prepareCapture failed to register schema", "schema", s.Topic, "error", err)
			_ = w.Close()
			b.logOpen = false
			return err
		}
		ids[i] = id
	}

	b.log = w
	b.channelIDs = ids
	b.logOpen = true
	return nil
}

// StartSampling transitions Idle->Sampling, clearing decimation state.
func (b *Broker) StartSampling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Idle {
		zap.S().Debug("broker: startSampling called while not idle")
		return false
	}
	for i := range b.currentTS {
		b.currentTS[i] = 0
	}
	b.state = Sampling
	return true
}

// StopSampling transitions Sampling->Idle.
func (b *Broker) StopSampling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Sampling {
		zap.S().Debug("broker: stopSampling called while not sampling, no-op")
		return false
	}
	b.state = Idle
	return true
}

// StartCapture transitions to Capturing. If called from Idle it first
// enters Sampling internally, recording samplingBeforeCapture=false so
// StopCapture tears sampling down too (spec.md §4.3.1).
func (b *Broker) StartCapture() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Capturing {
		zap.S().Debug("broker: startCapture called while already capturing")
		return false
	}
	if !b.logOpen && b.policy.Policy().EnableCapture {
		zap.S().Error("broker: startCapture refused, log was not opened")
		return false
	}

	b.samplingBeforeCapture = b.state == Sampling
	b.state = Capturing
	b.frameIndex = 0
	return true
}

// StopCapture transitions out of Capturing. Idempotent: a second call is a
// no-op (spec.md §8.5).
func (b *Broker) StopCapture() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Capturing {
		zap.S().Debug("broker: stopCapture called while not running, no-op")
		return false
	}

	if b.logOpen && b.log != nil {
		if err := b.log.Close(); err != nil {
			zap.S().Errorw("broker: error closing capture log", "error", err)
		}
	}
	b.logOpen = false
	b.log = nil

	if b.samplingBeforeCapture {
		b.state = Sampling
	} else {
		b.state = Idle
	}
	return true
}

// LatestData returns the last completed sample JSON with its ts field, or
// "{}" before any sample (spec.md §4.3).
func (b *Broker) LatestData() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestJSON
}

// SamplingRunning reports whether sampling (or capture, which implies it)
// is active.
func (b *Broker) SamplingRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != Idle
}

// CaptureRunning reports whether capture is active.
func (b *Broker) CaptureRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == Capturing
}

// Shutdown stops capture and sampling in order, then drains both queues
// with a sentinel (spec.md §4.3.1 "Terminal").
func (b *Broker) Shutdown() {
	b.StopCapture()
	b.StopSampling()

	b.mu.Lock()
	b.stopPublishersLocked()
	b.mu.Unlock()
}

// DataIn is the hot path (spec.md §4.3.2). payload is the already-populated
// sample builder as a JSON-serializable map; the broker injects the "ts"
// field itself.
func (b *Broker) DataIn(tsNS int64, payload map[string]interface{}, schemaIndex int, writeMcap, writeLive, updateLatest bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Idle {
		return
	}
	if schemaIndex < 0 || schemaIndex >= len(b.schemas) {
		zap.S().Errorw("broker: data_in schema index out of range, dropped", "index", schemaIndex)
		metrics.SamplesDropped.Inc()
		return
	}

	withTS := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		withTS[k] = v
	}
	withTS["ts"] = tsNS
	serialized := jsonutil.ToString(withTS)

	if updateLatest {
		b.latestJSON = serialized
	}

	if writeMcap && b.state == Capturing && b.logOpen && b.log != nil {
		if schemaIndex < len(b.channelIDs) {
			msg := LogMessage{
				ChannelID:   b.channelIDs[schemaIndex],
				LogTime:     tsNS,
				PublishTime: tsNS,
				Sequence:    b.frameIndex,
				Data:        []byte(serialized),
			}
			b.frameIndex++
			if err := b.log.WriteMessage(msg); err != nil {
				zap.S().Errorw("broker: capture write failed", "error", err)
			} else {
				metrics.CaptureBytesWritten.Add(float64(len(serialized)))
			}
		}
	}

	if !writeLive {
		return
	}

	policy := b.policy.Policy()

	if policy.EnableLiveAll {
		b.enqueueNonBlocking(b.allQueue, liveItem{schemaIndex: schemaIndex, payload: []byte(serialized)})
	}

	if !policy.EnableLiveFixedRate {
		b.currentTS[schemaIndex] = 0
		return
	}

	periodNS := int64(float64(time.Second) / rateOrOne(policy.LiveRateHz))
	cur := b.currentTS[schemaIndex]
	delta := tsNS - cur
	if cur == 0 || delta >= periodNS {
		b.currentTS[schemaIndex] = tsNS
		b.enqueueNonBlocking(b.fixedQueue, liveItem{schemaIndex: schemaIndex, payload: []byte(serialized)})
	}
}

func (b *Broker) enqueueNonBlocking(queue chan liveItem, item liveItem) {
	select {
	case queue <- item:
	default:
		zap.S().Warn("broker: live queue full, dropping sample")
		metrics.SamplesDropped.Inc()
	}
}

func rateOrOne(hz float64) float64 {
	if hz <= 0 {
		return 1
	}
	return hz
}
