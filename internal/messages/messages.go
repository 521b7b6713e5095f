// Package messages defines the wire structs exchanged over the bus
// (spec.md §3, §6). All payloads are JSON text; these types are the Go side
// of that taxonomy, mirroring the plain struct style of
// golang/pkg/datamodel/messageStructs.go.
package messages

// ConfigCmd enumerates the commands carried by a "config" queryable request.
type ConfigCmd string

const (
	ConfigGet        ConfigCmd = "GET"
	ConfigSet        ConfigCmd = "SET"
	ConfigGetDefault ConfigCmd = "GET_DEFAULT"
)

// DataConfigCmd enumerates the commands carried by a "data_config" request.
type DataConfigCmd string

const (
	DataConfigGet DataConfigCmd = "GET"
	DataConfigSet DataConfigCmd = "SET"
)

// Status is carried in the replies of the config, config_event,
// data_config, sampling and capture queryables (spec.md §6); ping,
// get_latest, get_schemas, get_metadata and get_docu reply without it.
type Status struct {
	Error   bool   `json:"error"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OK builds a non-error status.
func OK() Status { return Status{Error: false} }

// Err builds an error status with the given human-readable message.
func Err(title, message string) Status {
	return Status{Error: true, Title: title, Message: message}
}

// StartStop is the payload for sampling/capture start-stop queryables.
type StartStop struct {
	Start bool `json:"start"`
}

// ModuleRegistry is sent by a module to the controller on REGISTER/REMOVE.
type ModuleRegistry struct {
	Cmd  string `json:"cmd"` // "REGISTER" | "REMOVE"
	Name string `json:"name"`
	Type string `json:"type"`
}

// DataConfig is the persisted per-module live/capture policy (spec.md §4.3).
type DataConfig struct {
	EnableLiveAll       bool    `json:"enable_live_all"`
	EnableLiveFixedRate bool    `json:"enable_live_fixed_rate"`
	LiveRateHz          float64 `json:"live_rate_hz"`
	EnableCapture       bool    `json:"enable_capture"`
}

// DataConfigRequest is the payload of a "data_config" queryable request.
type DataConfigRequest struct {
	Cmd    DataConfigCmd `json:"cmd"`
	Config DataConfig    `json:"config"`
}

// ConfigRequest is the payload of a "config" queryable request.
type ConfigRequest struct {
	Cmd     ConfigCmd `json:"cmd"`
	CfgJSON string    `json:"cfg_json"`
}

// ConfigEvent is the payload of a "config_event" queryable request.
type ConfigEvent struct {
	Cmd    string `json:"cmd"`
	CfgKey string `json:"cfg_key"`
}

// ConfigQuery requests controller metadata about external DataBeam
// deployments ("databeam_registry").
type ConfigQuery struct {
	Cmd string `json:"cmd"`
}

// MeasurementInfo is the metadata template written alongside a capture file.
type MeasurementInfo struct {
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	StartedAt int64                  `json:"started_at_ns"`
	Host      map[string]interface{} `json:"host,omitempty"`
}

// Docs carries module documentation HTML.
type Docs struct {
	HTML string `json:"html"`
}

// ExternalDataBeam is one entry of the controller's databeam_registry reply.
type ExternalDataBeam struct {
	DBID     string `json:"db_id"`
	Hostname string `json:"hostname"`
}

// SchemasReply lists topic names for get_schemas.
type SchemasReply struct {
	Topics []string `json:"topics"`
}

// JobSubmit is sent to the controller's job_submit/job_update queryables.
type JobSubmit struct {
	ID   int64       `json:"id"`
	Type string      `json:"type"`
	Done bool        `json:"done"`
	Data interface{} `json:"data"`
}

// JobSubmitReply is the controller's reply to job_submit, carrying the
// assigned job id.
type JobSubmitReply struct {
	ID int64 `json:"id"`
}

// ReadyJobData is the payload of a "ready" job.
type ReadyJobData struct {
	ModuleName string `json:"module_name"`
	Ready      bool   `json:"ready"`
}

// LogJobData is the payload of a one-shot "log" job.
type LogJobData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	TimeStr string `json:"time_str"`
}

// NetworkMessage enumerates small-integer bus command codes, mirroring
// libs/cpp/header/NetworkMessages.h in original_source.
type NetworkMessage int

const (
	MsgPing NetworkMessage = iota
	MsgPong
	MsgRegister
	MsgRemove
	MsgStartSampling
	MsgStopSampling
	MsgStartCapture
	MsgStopCapture
)
