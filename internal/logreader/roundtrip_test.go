package logreader_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/broker"
	"github.com/virtual-vehicle/databeam/internal/logreader"
)

// TestReadRowsRoundTripsMcapFile writes a capture log through the broker's
// default LogWriter and reads it back through logreader, exercising both
// sides of the documented frame contract.
func TestReadRowsRoundTripsMcapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.mcap")

	w, err := broker.OpenMcapFile(path)
	require.NoError(t, err)

	channelID, err := w.OpenSchema(broker.Schema{Topic: "temp", DtypeName: "sensor"})
	require.NoError(t, err)

	require.NoError(t, w.WriteMessage(broker.LogMessage{
		ChannelID:   channelID,
		LogTime:     100,
		PublishTime: 100,
		Sequence:    0,
		Data:        []byte(`{"value":42.5}`),
	}))
	require.NoError(t, w.WriteMessage(broker.LogMessage{
		ChannelID:   channelID,
		LogTime:     200,
		PublishTime: 200,
		Sequence:    1,
		Data:        []byte(`{"value":43.5}`),
	}))
	require.NoError(t, w.Close())

	schema := logreader.Schema{
		TSField: "ts",
		Fields:  []logreader.Field{{Name: "value", Type: logreader.Float64}},
	}
	rows, err := logreader.ReadRows(path, "temp", schema, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(100), rows[0]["ts"])
	assert.Equal(t, 42.5, rows[0]["value"])
	assert.Equal(t, int64(200), rows[1]["ts"])
	assert.Equal(t, 43.5, rows[1]["value"])
}

func TestReadRowsRespectsStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.mcap")

	w, err := broker.OpenMcapFile(path)
	require.NoError(t, err)
	channelID, err := w.OpenSchema(broker.Schema{Topic: "temp"})
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(broker.LogMessage{ChannelID: channelID, PublishTime: 100, Data: []byte(`{"value":1}`)}))
	require.NoError(t, w.WriteMessage(broker.LogMessage{ChannelID: channelID, PublishTime: 300, Data: []byte(`{"value":2}`)}))
	require.NoError(t, w.Close())

	schema := logreader.Schema{TSField: "ts", Fields: []logreader.Field{{Name: "value", Type: logreader.Float64}}}
	rows, err := logreader.ReadRows(path, "temp", schema, 200, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(2), rows[0]["value"])
}

func TestInferSchemaMergesShapesAndDedupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.mcap")

	w, err := broker.OpenMcapFile(path)
	require.NoError(t, err)
	channelID, err := w.OpenSchema(broker.Schema{Topic: "temp"})
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(broker.LogMessage{ChannelID: channelID, Data: []byte(`{"a":1,"b":"x"}`)}))
	require.NoError(t, w.WriteMessage(broker.LogMessage{ChannelID: channelID, Data: []byte(`{"a":1,"b":"x"}`)})) // exact dup, deduped
	require.NoError(t, w.WriteMessage(broker.LogMessage{ChannelID: channelID, Data: []byte(`{"a":2,"c":true}`)}))
	require.NoError(t, w.Close())

	node, err := logreader.InferSchema(path, "temp", 0)
	require.NoError(t, err)

	_, hasA := node.Properties["a"]
	_, hasB := node.Properties["b"]
	_, hasC := node.Properties["c"]
	assert.True(t, hasA)
	assert.True(t, hasB)
	assert.True(t, hasC)
	assert.Equal(t, 2, node.Properties["a"].Count, "property present count reflects distinct messages merged, not raw message count")
}
