package broker

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"

	"github.com/cristalhq/base64"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
)

// mcapFile is the default LogWriter: a length-prefixed sequence of JSON
// frames on disk, one per schema registration and one per sample. Sample
// payload bytes are base64-encoded into the JSON envelope via
// github.com/cristalhq/base64, since the envelope itself is JSON text but
// carries an opaque byte payload (spec.md §6: "a binary log with one
// channel per schema, JSON message bodies").
//
// The real on-wire capture format is explicitly out of scope (spec.md §1);
// this implementation only needs to uphold the stated invariants: schemas
// registered before first write, monotonic sequence, matched channelId,
// close on stop.
type mcapFile struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	nextID   uint16
	enc      *base64.Encoding
}

type schemaFrame struct {
	Kind       string                 `json:"kind"`
	ChannelID  uint16                 `json:"channel_id"`
	Topic      string                 `json:"topic"`
	DtypeName  string                 `json:"dtype_name"`
	Properties map[string]interface{} `json:"properties"`
}

type messageFrame struct {
	Kind        string `json:"kind"`
	ChannelID   uint16 `json:"channel_id"`
	LogTime     int64  `json:"log_time"`
	PublishTime int64  `json:"publish_time"`
	Sequence    uint32 `json:"sequence"`
	Data        string `json:"data"`
}

// OpenMcapFile creates (or truncates) the capture file at path.
func OpenMcapFile(path string) (LogWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &mcapFile{f: f, w: bufio.NewWriter(f), enc: base64.StdEncoding}, nil
}

func (m *mcapFile) OpenSchema(schema Schema) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	frame := schemaFrame{
		Kind:       "schema",
		ChannelID:  id,
		Topic:      schema.Topic,
		DtypeName:  schema.DtypeName,
		Properties: schema.Properties,
	}
	if err := m.writeFrame(frame); err != nil {
		return 0, err
	}
	return id, nil
}

func (m *mcapFile) WriteMessage(msg LogMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := messageFrame{
		Kind:        "message",
		ChannelID:   msg.ChannelID,
		LogTime:     msg.LogTime,
		PublishTime: msg.PublishTime,
		Sequence:    msg.Sequence,
		Data:        m.enc.EncodeToString(msg.Data),
	}
	return m.writeFrame(frame)
}

func (m *mcapFile) writeFrame(v interface{}) error {
	body, err := jsonutil.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := m.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = m.w.Write(body)
	return err
}

// Close flushes buffered frames and closes the underlying file. Idempotent:
// a second call returns the error from the (already closed) file handle
// rather than panicking, so callers following spec.md §7's "stopCapture is
// idempotent with respect to log_open" don't need extra bookkeeping here.
func (m *mcapFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.w.Flush(); err != nil {
		_ = m.f.Close()
		return err
	}
	return m.f.Close()
}
