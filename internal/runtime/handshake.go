package runtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/backoff"
	"github.com/virtual-vehicle/databeam/internal/jobmanager"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/messages"
)

const (
	registerInterval = 1 * time.Second
	pingTimeout      = 1 * time.Second
)

// subscribeBroadcasts wires the controller-wide start/stop broadcast topics
// of spec.md §3 to synchronized broker state transitions, as distinct from
// the direct per-module "sampling"/"prepare_capture"/"stop_capture"
// queryables handled in queryables.go: a broadcast always drives the
// broker's start, while prepare_capture only stages the log file and
// prepare_sampling only readies the module, so a controller can fan a single
// broadcast out to many modules and have them all actually start sampling
// together.
func (rt *Runtime) subscribeBroadcasts() {
	rt.router.Subscribe(rt.cfg.DBID+"/c/bc/start_sampling", rt.onStartSamplingBroadcast)
	rt.router.Subscribe(rt.cfg.DBID+"/c/bc/start_capture", rt.onStartCaptureBroadcast)
}

func (rt *Runtime) onStartSamplingBroadcast(_ string, _ []byte) {
	rt.broker.StartSampling()
}

func (rt *Runtime) onStartCaptureBroadcast(_ string, _ []byte) {
	rt.broker.StartCapture()
}

func (rt *Runtime) query(topic string, payload []byte, timeout time.Duration) []byte {
	return rt.router.Query(rt.cfg.ControllerAddress(), topic, payload, timeout)
}

// handshake implements spec.md §4.6: ping the controller until reachable,
// fetch the external DataBeam registry, then REGISTER and keep
// re-registering every second until the runtime is told to shut down, at
// which point it REMOVEs itself and tears everything else down.
func (rt *Runtime) handshake() {
	rt.waitForController()
	rt.fetchExternalRegistry()
	rt.registerLoop()
	rt.Shutdown()
}

func (rt *Runtime) waitForController() {
	var retries int64
	for !rt.done.Cancelled() {
		reply := rt.query("ping", []byte(`"ping"`), pingTimeout)
		if len(reply) > 0 {
			zap.S().Infow("runtime: controller reachable", "db_id", rt.cfg.DBID)
			return
		}
		zap.S().Debugw("runtime: controller not reachable yet, retrying", "attempt", retries)
		backoff.Sleep(retries, 200*time.Millisecond, 5*time.Second, rt.done.Done())
		retries++
	}
}

func (rt *Runtime) fetchExternalRegistry() {
	req, err := jsonutil.Marshal(messages.ConfigQuery{Cmd: "GET"})
	if err != nil {
		return
	}
	reply := rt.query("databeam_registry", req, pingTimeout)
	if len(reply) == 0 {
		zap.S().Debug("runtime: databeam_registry query failed, continuing without external peers")
		return
	}

	var entries []messages.ExternalDataBeam
	if err := jsonutil.Unmarshal(reply, &entries); err != nil {
		zap.S().Debugw("runtime: malformed databeam_registry reply", "error", err)
		return
	}

	ids := make([]string, len(entries))
	hosts := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.DBID
		hosts[i] = e.Hostname
	}
	rt.router.SetExternalDatabeams(ids, hosts)
}

// registerLoop sends REGISTER, then re-sends it every registerInterval
// (spec.md §4.6 "re-registers every second so the controller's module table
// self-heals after a controller restart") until the cancellation token
// fires, at which point it sends REMOVE once.
func (rt *Runtime) registerLoop() {
	reg := messages.ModuleRegistry{Cmd: "REGISTER", Name: rt.cfg.ModuleName, Type: rt.moduleType}
	body, err := jsonutil.Marshal(reg)
	if err != nil {
		zap.S().Errorw("runtime: marshal register message failed", "error", err)
		return
	}

	ticker := time.NewTicker(registerInterval)
	defer ticker.Stop()

	rt.query("module_registry", body, pingTimeout)
	rt.jobs.Submit(jobmanager.NewReadyJob(rt.cfg.ModuleName, true))

	for {
		select {
		case <-rt.done.Done():
			rt.deregister()
			return
		case <-ticker.C:
			rt.query("module_registry", body, pingTimeout)
		}
	}
}

func (rt *Runtime) deregister() {
	rt.jobs.Submit(jobmanager.NewReadyJob(rt.cfg.ModuleName, false))
	rem := messages.ModuleRegistry{Cmd: "REMOVE", Name: rt.cfg.ModuleName, Type: rt.moduleType}
	body, err := jsonutil.Marshal(rem)
	if err != nil {
		return
	}
	rt.query("module_registry", body, pingTimeout)
}
