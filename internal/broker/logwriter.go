package broker

// LogMessage is one row written to a capture log channel (spec.md §4.3.2
// step 4).
type LogMessage struct {
	ChannelID   uint16
	LogTime     int64
	PublishTime int64
	Sequence    uint32
	Data        []byte
}

// LogWriter is the opaque binary capture log collaborator named in spec.md
// §1 ("the binary log file format (treated as an opaque writer with
// openSchema, writeMessage, close)"). Its invariants per spec.md §6: schemas
// registered before first write, monotonic sequence, matched channelId,
// close on stop.
type LogWriter interface {
	OpenSchema(schema Schema) (channelID uint16, err error)
	WriteMessage(msg LogMessage) error
	Close() error
}
