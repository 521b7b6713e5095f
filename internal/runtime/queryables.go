package runtime

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/broker"
	"github.com/virtual-vehicle/databeam/internal/fsutil"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/messages"
)

// registerQueryables declares every handler in spec.md §4.4's table.
func (rt *Runtime) registerQueryables() {
	rt.router.DeclareQueryable("ping", rt.handlePing)
	rt.router.DeclareQueryable("config", rt.handleConfig)
	rt.router.DeclareQueryable("config_event", rt.handleConfigEvent)
	rt.router.DeclareQueryable("data_config", rt.handleDataConfig)
	rt.router.DeclareQueryable("sampling", rt.handleSampling)
	rt.router.DeclareQueryable("prepare_sampling", rt.handlePrepareSampling)
	rt.router.DeclareQueryable("stop_sampling", rt.handleStopSampling)
	rt.router.DeclareQueryable("prepare_capture", rt.handlePrepareCapture)
	rt.router.DeclareQueryable("stop_capture", rt.handleStopCapture)
	rt.router.DeclareQueryable("get_latest", rt.handleGetLatest)
	rt.router.DeclareQueryable("get_schemas", rt.handleGetSchemas)
	rt.router.DeclareQueryable("get_metadata", rt.handleGetMetadata)
	rt.router.DeclareQueryable("get_docu", rt.handleGetDocu)
}

func replyJSON(v interface{}) []byte {
	return []byte(jsonutil.ToString(v))
}

func (rt *Runtime) handlePing(_ string, _ []byte) []byte {
	return []byte(`"pong"`)
}

func (rt *Runtime) handleConfig(_ string, payload []byte) []byte {
	var req messages.ConfigRequest
	if err := jsonutil.Unmarshal(payload, &req); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("config", "malformed request")})
	}

	switch req.Cmd {
	case messages.ConfigGetDefault:
		return replyJSON(struct {
			Status  messages.Status `json:"status"`
			CfgJSON string          `json:"cfg_json"`
		}{messages.OK(), rt.module.DefaultConfig()})

	case messages.ConfigGet:
		current, err := rt.cfgStore.current()
		if err != nil {
			return replyJSON(struct {
				Status messages.Status `json:"status"`
			}{messages.Err("config", err.Error())})
		}
		return replyJSON(struct {
			Status  messages.Status `json:"status"`
			CfgJSON string          `json:"cfg_json"`
		}{messages.OK(), current})

	case messages.ConfigSet:
		if reason := rt.module.ValidateConfig(req.CfgJSON); reason != "" {
			return replyJSON(struct {
				Status messages.Status `json:"status"`
			}{messages.Err("config", reason)})
		}
		if err := rt.module.ApplyConfig(req.CfgJSON); err != nil {
			return replyJSON(struct {
				Status messages.Status `json:"status"`
			}{messages.Err("config", err.Error())})
		}
		if rt.broker.SamplingRunning() {
			zap.S().Warn("runtime: config changed schemas while sampling; broker keeps its prior schema set until stopped")
		} else {
			rt.broker.SetSchemas(rt.module.Schemas())
		}
		changed, err := rt.cfgStore.setIfChanged(req.CfgJSON)
		if err != nil {
			zap.S().Errorw("runtime: failed to persist config", "error", err)
		}
		_ = changed
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.OK()})

	default:
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("config", "unknown cmd")})
	}
}

func (rt *Runtime) handleConfigEvent(_ string, payload []byte) []byte {
	var req messages.ConfigEvent
	if err := jsonutil.Unmarshal(payload, &req); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("config_event", "malformed request")})
	}
	rt.module.ConfigEvent(req.CfgKey)
	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handleDataConfig(_ string, payload []byte) []byte {
	var req messages.DataConfigRequest
	if err := jsonutil.Unmarshal(payload, &req); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("data_config", "malformed request")})
	}

	switch req.Cmd {
	case messages.DataConfigGet:
		return replyJSON(struct {
			Status messages.Status      `json:"status"`
			Config messages.DataConfig  `json:"config"`
		}{messages.OK(), rt.dataCfg.Policy()})
	case messages.DataConfigSet:
		if err := rt.dataCfg.Set(req.Config); err != nil {
			return replyJSON(struct {
				Status messages.Status `json:"status"`
			}{messages.Err("data_config", err.Error())})
		}
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.OK()})
	default:
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("data_config", "unknown cmd")})
	}
}

func (rt *Runtime) handleSampling(_ string, payload []byte) []byte {
	var req messages.StartStop
	_ = jsonutil.Unmarshal(payload, &req)
	if req.Start {
		rt.broker.StartSampling()
	} else {
		rt.broker.StopSampling()
		if err := rt.module.StopSampling(); err != nil {
			zap.S().Errorw("runtime: module StopSampling failed", "error", err)
		}
	}
	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handlePrepareSampling(_ string, _ []byte) []byte {
	if err := rt.module.PrepareSampling(); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("prepare_sampling", err.Error())})
	}
	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handleStopSampling(_ string, _ []byte) []byte {
	rt.broker.StopSampling()
	if err := rt.module.StopSampling(); err != nil {
		zap.S().Errorw("runtime: module StopSampling failed", "error", err)
	}
	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handlePrepareCapture(_ string, _ []byte) []byte {
	name := rt.module.MeasurementName()
	measurementDir := filepath.Join(rt.cfg.DataDir, rt.cfg.DeployVersion, name, rt.cfg.ModuleName)
	if err := fsutil.EnsureDir(measurementDir); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("prepare_capture", err.Error())})
	}

	meta := messages.MeasurementInfo{
		Name:      name,
		Type:      rt.moduleType,
		StartedAt: time.Now().UnixNano(),
		Host:      rt.hostInfo(),
	}
	metaBody, err := jsonutil.MarshalIndent(meta)
	if err == nil {
		_ = fsutil.WriteFileAtomic(filepath.Join(measurementDir, "module_meta.json"), metaBody, 0o644)
	}

	capturePath := filepath.Join(measurementDir, rt.cfg.ModuleName+".mcap")

	if err := rt.broker.PrepareCapture(func() (broker.LogWriter, error) {
		return broker.OpenMcapFile(capturePath)
	}); err != nil {
		return replyJSON(struct {
			Status messages.Status `json:"status"`
		}{messages.Err("prepare_capture", err.Error())})
	}

	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handleStopCapture(_ string, _ []byte) []byte {
	rt.broker.StopCapture()
	return replyJSON(struct {
		Status messages.Status `json:"status"`
	}{messages.OK()})
}

func (rt *Runtime) handleGetLatest(_ string, _ []byte) []byte {
	return []byte(rt.broker.LatestData())
}

func (rt *Runtime) handleGetSchemas(_ string, _ []byte) []byte {
	schemas := rt.module.Schemas()
	topics := make([]string, len(schemas))
	for i, s := range schemas {
		topics[i] = s.Topic
	}
	return replyJSON(messages.SchemasReply{Topics: topics})
}

func (rt *Runtime) handleGetMetadata(_ string, _ []byte) []byte {
	meta := messages.MeasurementInfo{
		Name: rt.module.MeasurementName(),
		Type: rt.moduleType,
		Host: rt.hostInfo(),
	}
	return replyJSON(meta)
}

func (rt *Runtime) handleGetDocu(_ string, _ []byte) []byte {
	return replyJSON(messages.Docs{HTML: rt.module.DocsHTML()})
}
