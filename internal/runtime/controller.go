package runtime

import (
	"github.com/virtual-vehicle/databeam/internal/broker"
	"github.com/virtual-vehicle/databeam/internal/transport"
)

// SubscribeFunc is the shape of transport.Router.Subscribe/Unsubscribe,
// handed to a module so it can talk to a transport it does not own.
type SubscribeFunc func(key string, handler transport.SubscribeHandler)

// DataInFunc is the shape of broker.Broker.DataIn, handed to a module so it
// can feed samples into a broker it does not own.
type DataInFunc func(tsNS int64, payload map[string]interface{}, schemaIndex int, writeMcap, writeLive, updateLatest bool)

// ModuleController is the narrow capability set a concrete module (the
// filter module, or any future module) implements; Runtime drives it the
// same way for every module, per spec.md §2 ("constructs a module-specific
// controller ... constructs the generic runtime around it").
type ModuleController interface {
	// DefaultConfig returns the module's default config as JSON text.
	DefaultConfig() string
	// ValidateConfig returns a human-readable reason the config is
	// rejected, or "" if it is accepted.
	ValidateConfig(cfgJSON string) string
	// ApplyConfig installs an already-validated config.
	ApplyConfig(cfgJSON string) error
	// ConfigEvent handles a "config_event" queryable for cfgKey.
	ConfigEvent(cfgKey string)

	// Schemas lists the schemas this module publishes.
	Schemas() []broker.Schema
	// MeasurementName names the capture directory/file for this module.
	MeasurementName() string

	// PrepareSampling/StopSampling let the module start/stop producing
	// samples (e.g. subscribing upstream).
	PrepareSampling() error
	StopSampling() error

	// DocsHTML returns the module's documentation blob.
	DocsHTML() string

	// Bind supplies the runtime's transport and broker hooks once they
	// exist; called exactly once, before the controller handshake starts.
	Bind(subscribe, unsubscribe SubscribeFunc, dataIn DataInFunc, samplingRunning func() bool)
}
