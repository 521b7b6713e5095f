package filter

import (
	"fmt"
	"sync"
	"time"

	"github.com/EagleChen/mapmutex"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/broker"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/runtime"
)

const lockKey = "filter"

// Config is the filter module's configuration, spec.md §4.6.
type Config struct {
	InputModule   string   `json:"input_module"`
	Channels      []string `json:"channels"`
	Timebase      string   `json:"timebase"`
	TimebaseValue float64  `json:"timebase_value"`
	Method        string   `json:"method"`
}

// DefaultConfig is applied before any "config" SET ever arrives.
var DefaultConfig = Config{
	InputModule:   "",
	Channels:      []string{},
	Timebase:      "samples",
	TimebaseValue: 10,
	Method:        "average",
}

// Module implements runtime.ModuleController for the filter module,
// grounded on
// _examples/original_source/extensions/io_modules/filter/{header,source}/*.{hpp,cpp}
// for the per-method arithmetic and on golang/cmd/mqtt-kafka-bridge's
// non-blocking lock-or-drop pattern for the subscription hot path.
type Module struct {
	dbID       string
	moduleName string

	mu     *mapmutex.Mutex // TryLock-only; the hot path must never block
	cfgMu  sync.Mutex
	cfg    Config
	method Method

	subscribe       runtime.SubscribeFunc
	unsubscribe     runtime.SubscribeFunc
	dataIn          runtime.DataInFunc
	samplingRunning func() bool

	currentUpstream string
}

// New constructs an unconfigured filter module; call Bind before starting
// the runtime.
func New(dbID, moduleName string) *Module {
	return &Module{
		dbID:       dbID,
		moduleName: moduleName,
		mu:         mapmutex.NewMapMutex(),
		cfg:        DefaultConfig,
		method:     newConfiguredMethod(DefaultConfig.Method, DefaultConfig),
	}
}

// newConfiguredMethod builds and configures a fresh Method for cfg.
func newConfiguredMethod(method string, cfg Config) Method {
	m := NewMethod(method)
	m.Configure(cfg.Timebase == "samples", cfg.TimebaseValue)
	m.SetChannels(cfg.Channels)
	return m
}

func (m *Module) Bind(subscribe, unsubscribe runtime.SubscribeFunc, dataIn runtime.DataInFunc, samplingRunning func() bool) {
	m.subscribe = subscribe
	m.unsubscribe = unsubscribe
	m.dataIn = dataIn
	m.samplingRunning = samplingRunning
}

func (m *Module) DefaultConfig() string {
	return jsonutil.ToString(DefaultConfig)
}

func (m *Module) ValidateConfig(cfgJSON string) string {
	var cfg Config
	if err := jsonutil.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return "malformed config json: " + err.Error()
	}
	switch cfg.Timebase {
	case "samples", "time":
	default:
		return fmt.Sprintf("timebase must be \"samples\" or \"time\", got %q", cfg.Timebase)
	}
	if cfg.TimebaseValue <= 0 {
		return "timebase_value must be > 0"
	}
	switch cfg.Method {
	case "average", "median", "exponential_average", "downsample_average":
	default:
		return fmt.Sprintf("unknown method %q", cfg.Method)
	}
	return ""
}

// ApplyConfig unsubscribes the previous upstream topic, rebuilds the filter
// of the selected method, configures it, and subscribes to the new
// upstream topic, all under the filter lock (spec.md §4.6). Replacing the
// method discards the old one (and its rings) entirely.
func (m *Module) ApplyConfig(cfgJSON string) error {
	var cfg Config
	if err := jsonutil.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return err
	}

	for !m.mu.TryLock(lockKey) {
		time.Sleep(time.Millisecond)
	}
	defer m.mu.Unlock(lockKey)

	if m.currentUpstream != "" && m.unsubscribe != nil {
		m.unsubscribe(m.currentUpstream, m.onUpstream)
	}

	newMethod := newConfiguredMethod(cfg.Method, cfg)

	m.cfgMu.Lock()
	m.cfg = cfg
	m.method = newMethod
	m.cfgMu.Unlock()

	upstream := m.dbID + "/m/" + cfg.InputModule
	m.currentUpstream = upstream
	if m.subscribe != nil && cfg.InputModule != "" {
		m.subscribe(upstream, m.onUpstream)
	}
	return nil
}

func (m *Module) ConfigEvent(cfgKey string) {
	zap.S().Debugw("filter: config_event", "key", cfgKey)
}

// Schemas publishes one schema per configured channel's filtered output.
func (m *Module) Schemas() []broker.Schema {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	schemas := make([]broker.Schema, len(m.cfg.Channels))
	for i, ch := range m.cfg.Channels {
		schemas[i] = broker.Schema{
			Topic:     ch + "_filtered",
			DtypeName: "filter",
			Properties: map[string]interface{}{
				"channel": ch,
				"method":  m.cfg.Method,
			},
		}
	}
	return schemas
}

func (m *Module) MeasurementName() string {
	return m.moduleName
}

func (m *Module) PrepareSampling() error { return nil }

func (m *Module) StopSampling() error { return nil }

func (m *Module) DocsHTML() string {
	return "<h1>Filter module</h1><p>Applies average, median, exponential-average, or downsample-average filtering to an upstream topic's channels.</p>"
}

// onUpstream is the subscription hot path (spec.md §4.6, §5): a
// non-blocking lock acquire, per-channel ring update, filtered-value
// computation keyed "<channel>_filtered", and a single DataIn call.
func (m *Module) onUpstream(_ string, payload []byte) {
	if !m.mu.TryLock(lockKey) {
		// applyConfig is replacing the filter; drop this sample.
		return
	}
	defer m.mu.Unlock(lockKey)

	var msg map[string]interface{}
	if err := jsonutil.Unmarshal(payload, &msg); err != nil {
		zap.S().Debugw("filter: malformed upstream message dropped", "error", err)
		return
	}

	tsRaw, ok := msg["ts"]
	if !ok {
		return
	}
	ts, ok := toInt64(tsRaw)
	if !ok {
		return
	}

	m.cfgMu.Lock()
	channels := m.cfg.Channels
	method := m.method
	m.cfgMu.Unlock()

	sampling := m.samplingRunning != nil && m.samplingRunning()

	out := make(map[string]interface{}, len(channels))
	anyReady := false
	for _, ch := range channels {
		raw, present := msg[ch]
		if !present {
			continue
		}
		value, ok := toFloat64(raw)
		if !ok {
			continue
		}
		method.UpdateData(ts, value, ch)

		if !sampling {
			continue
		}
		filtered := method.Compute(ch)
		if method.ReadyToPublish() {
			out[ch+"_filtered"] = filtered
			anyReady = true
		}
	}
	method.AfterPublish()

	if sampling && anyReady && m.dataIn != nil {
		m.dataIn(ts, out, 0, true, true, true)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
