package logreader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cristalhq/base64"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
)

// schemaFrame/messageFrame mirror the on-disk layout written by
// internal/broker/mcapfile.go: a length-prefixed JSON frame per record.
// This package intentionally keeps its own copy of the frame shape rather
// than importing internal/broker, since the two are independent readers of
// the same documented wire contract (spec.md §1's "opaque writer").
type schemaFrame struct {
	Kind      string `json:"kind"`
	ChannelID uint16 `json:"channel_id"`
	Topic     string `json:"topic"`
	DtypeName string `json:"dtype_name"`
}

type messageFrame struct {
	Kind        string `json:"kind"`
	ChannelID   uint16 `json:"channel_id"`
	LogTime     int64  `json:"log_time"`
	PublishTime int64  `json:"publish_time"`
	Sequence    uint32 `json:"sequence"`
	Data        string `json:"data"`
}

// ReadRows iterates messages of topic in log order starting at startTime
// (inclusive, nanoseconds; 0 means from the beginning), decoding each into
// schema's flat column layout, stopping once max rows have been produced
// (spec.md §4.7). max <= 0 means unbounded.
func ReadRows(path, topic string, schema Schema, startTime int64, max int) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	channelTopics := make(map[uint16]string)
	var rows []Row

	for {
		body, kind, err := readFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("logreader: read frame: %w", err)
		}

		switch kind {
		case "schema":
			var sf schemaFrame
			if err := jsonutil.Unmarshal(body, &sf); err != nil {
				continue
			}
			channelTopics[sf.ChannelID] = sf.Topic

		case "message":
			var mf messageFrame
			if err := jsonutil.Unmarshal(body, &mf); err != nil {
				continue
			}
			if channelTopics[mf.ChannelID] != topic {
				continue
			}
			if mf.PublishTime < startTime {
				continue
			}

			row, err := decodeRow(mf, schema)
			if err != nil {
				zap.S().Debugw("logreader: dropping undecodable row", "error", err)
				continue
			}
			rows = append(rows, row)
			if max > 0 && len(rows) >= max {
				return rows, nil
			}
		}
	}
	return rows, nil
}

func readFrame(r io.Reader) ([]byte, string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, "", err
	}

	var hdr struct {
		Kind string `json:"kind"`
	}
	if err := jsonutil.Unmarshal(body, &hdr); err != nil {
		return nil, "", err
	}
	return body, hdr.Kind, nil
}

// decodeRow base64-decodes the message's opaque data field, parses it as
// JSON, and fills schema's declared fields per spec.md §4.7: the publish
// time goes to schema.TSField; each present top-level field converts to the
// schema's declared primitive type; nested arrays fill a bounded 2-D
// sub-buffer; strings truncate to Size-1 bytes (no terminator byte is
// appended).
func decodeRow(mf messageFrame, schema Schema) (Row, error) {
	raw, err := base64.StdEncoding.DecodeString(mf.Data)
	if err != nil {
		return nil, err
	}
	var msg map[string]interface{}
	if err := jsonutil.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	row := make(Row, len(schema.Fields)+1)
	if schema.TSField != "" {
		row[schema.TSField] = mf.PublishTime
	}

	for _, f := range schema.Fields {
		val, present := msg[f.Name]
		if !present {
			continue
		}

		if f.ArrayCols > 0 {
			arr, ok := val.([]interface{})
			if !ok {
				continue
			}
			if len(arr) > f.ArrayCols {
				arr = arr[:f.ArrayCols]
			}
			cols := make([]interface{}, len(arr))
			for i, elem := range arr {
				converted, err := convertField(elem, f)
				if err != nil {
					continue
				}
				cols[i] = converted
			}
			row[f.Name] = cols
			continue
		}

		converted, err := convertField(val, f)
		if err != nil {
			zap.S().Debugw("logreader: field conversion failed, skipping", "field", f.Name, "error", err)
			continue
		}
		row[f.Name] = converted
	}

	return row, nil
}

func convertField(val interface{}, f Field) (interface{}, error) {
	switch f.Type {
	case Uint64:
		n, ok := val.(float64)
		if !ok || n < 0 || n >= math.MaxUint64 || n != math.Trunc(n) {
			return nil, fmt.Errorf("logreader: field %q is not a uint64", f.Name)
		}
		return uint64(n), nil
	case Int64:
		n, ok := val.(float64)
		if !ok || n < math.MinInt64 || n >= math.MaxInt64 || n != math.Trunc(n) {
			return nil, fmt.Errorf("logreader: field %q is not an int64", f.Name)
		}
		return int64(n), nil
	case Float64:
		n, ok := val.(float64)
		if !ok {
			return nil, fmt.Errorf("logreader: field %q is not a number", f.Name)
		}
		return n, nil
	case Bool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("logreader: field %q is not a bool", f.Name)
		}
		return b, nil
	case Bytes:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("logreader: field %q is not a string", f.Name)
		}
		if f.Size > 0 && len(s) > f.Size-1 {
			s = s[:f.Size-1]
		}
		return s, nil
	default:
		return nil, fmt.Errorf("logreader: unknown field type for %q", f.Name)
	}
}
