// Package runtime wires together transport, broker, dataconfig, jobmanager
// and a concrete ModuleController into the single generic module process
// described by spec.md §2 ("the generic runtime around it").
package runtime

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/host"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/broker"
	"github.com/virtual-vehicle/databeam/internal/dataconfig"
	"github.com/virtual-vehicle/databeam/internal/env"
	"github.com/virtual-vehicle/databeam/internal/fsutil"
	"github.com/virtual-vehicle/databeam/internal/jobmanager"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/shutdown"
	"github.com/virtual-vehicle/databeam/internal/transport"
)

// Runtime is the generic per-module process: one Broker, one transport
// Router, one persisted config pair, one job manager, driven by a
// module-specific ModuleController.
type Runtime struct {
	cfg        env.Config
	moduleType string
	module     ModuleController

	router   *transport.Router
	broker   *broker.Broker
	dataCfg  *dataconfig.Store
	cfgStore *configStore
	jobs     *jobmanager.Manager
	health   healthcheck.Handler

	done *shutdown.Token
}

// New builds and connects every collaborator but does not yet register with
// the controller or start serving (call Run for that).
func New(cfg env.Config, moduleType string, module ModuleController) (*Runtime, error) {
	if err := fsutil.EnsureDir(cfg.ConfigDir); err != nil {
		return nil, fmt.Errorf("runtime: ensure config dir: %w", err)
	}
	if err := fsutil.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("runtime: ensure data dir: %w", err)
	}

	done := shutdown.NewToken()

	ports := transport.Ports{
		Host:         cfg.RouterHost,
		SubPort:      cfg.SubPort,
		PubPort:      cfg.PubPort,
		FrontendPort: cfg.FrontendPort,
		BackendPort:  cfg.BackendPort,
	}
	localEndpoint, err := transport.NewEndpoint(cfg.ModuleAddress(cfg.ModuleName), ports, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("runtime: connect local endpoint: %w", err)
	}

	hosts := transport.NewHostCache(cfg.RedisAddr, "databeam:hostcache:")
	router := transport.NewRouter(cfg.DBID, localEndpoint, ports, time.Now().UnixNano()+1, hosts)

	dataCfgPath := filepath.Join(cfg.ConfigDir, "data_config.json")
	dataCfg, err := dataconfig.Load(dataCfgPath, dataconfig.Default)
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("runtime: load data config: %w", err)
	}

	b := broker.New(cfg.DBID, cfg.ModuleName, router, dataCfg)
	module.Bind(router.Subscribe, router.Unsubscribe, b.DataIn, b.SamplingRunning)
	b.SetSchemas(module.Schemas())

	cfgStore := newConfigStore(cfg.ConfigDir)
	if _, err := cfgStore.load(module.DefaultConfig()); err != nil {
		router.Close()
		return nil, fmt.Errorf("runtime: load module config: %w", err)
	}
	if current, err := cfgStore.current(); err == nil {
		if reason := module.ValidateConfig(current); reason == "" {
			_ = module.ApplyConfig(current)
		} else {
			zap.S().Warnw("runtime: stored config rejected at startup, applying default", "reason", reason)
			_ = module.ApplyConfig(module.DefaultConfig())
		}
	}

	queryFn := func(topic string, payload []byte, timeout time.Duration) []byte {
		return router.Query(cfg.ControllerAddress(), topic, payload, timeout)
	}
	jobs, err := jobmanager.New(cfg, filepath.Join(cfg.DataDir, ".jobqueue", cfg.ModuleName), queryFn)
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("runtime: open job queue: %w", err)
	}

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(5000))

	rt := &Runtime{
		cfg:        cfg,
		moduleType: moduleType,
		module:     module,
		router:     router,
		broker:     b,
		dataCfg:    dataCfg,
		cfgStore:   cfgStore,
		jobs:       jobs,
		health:     health,
		done:       done,
	}

	rt.registerQueryables()
	rt.subscribeBroadcasts()
	return rt, nil
}

// Run blocks until the runtime's cancellation token is triggered (by a
// signal, or by a caller invoking Shutdown from another goroutine): it
// performs the controller handshake, serves the health-check handler (its
// /live and /ready endpoints), and re-registers on a timer until told to
// stop.
func (rt *Runtime) Run() {
	rt.done.WatchSignals()

	go func() {
		addr := ":" + rt.cfg.HealthPort
		if err := http.ListenAndServe(addr, rt.health); err != nil {
			zap.S().Warnw("runtime: health endpoint stopped", "error", err)
		}
	}()

	rt.handshake()
}

// Shutdown triggers the cancellation token, tears down capture/sampling,
// and closes the job manager and the transport, in the order spec.md §5
// ("Terminal") requires. It sends no REMOVE itself; registerLoop sends it
// when the token fires.
func (rt *Runtime) Shutdown() {
	rt.done.Trigger()
	rt.broker.Shutdown()
	rt.jobs.Shutdown()
	rt.router.Close()
}

func (rt *Runtime) hostInfo() map[string]interface{} {
	info, err := host.Info()
	if err != nil {
		zap.S().Debugw("runtime: gopsutil host info unavailable", "error", err)
		return nil
	}
	raw, err := jsonutil.Marshal(info)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := jsonutil.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
