package logreader

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/coocood/freecache"
	"github.com/zeebo/xxh3"

	"github.com/cristalhq/base64"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
)

// TypeBits is a bitmask of JSON value kinds observed at one schema path
// (spec.md §4.7's "bitmask of observed types per path").
type TypeBits int

const (
	TypeNull TypeBits = 1 << iota
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeObject
)

// SchemaNode is one node of the inferred union-schema tree.
type SchemaNode struct {
	Types        TypeBits
	MaxStringLen int
	Properties   map[string]*PropertyStat // populated when Types includes TypeObject
	Element      *SchemaNode              // populated when Types includes TypeArray
}

// PropertyStat tracks how often a given object key was present, across all
// merged messages (byte-identical duplicates are merged only once).
type PropertyStat struct {
	Node  *SchemaNode
	Count int
}

func newSchemaNode() *SchemaNode {
	return &SchemaNode{Properties: make(map[string]*PropertyStat)}
}

// InferSchema walks path's capture log for topic and builds a union-schema
// tree summarizing every message's shape (spec.md §4.7's secondary mode).
// Byte-identical messages are deduplicated via a small freecache-backed
// cache before being walked, since an already-seen shape contributes
// nothing new to the union tree; maxMessages bounds how many matching
// messages, duplicates included, are read before returning (0 means
// unbounded).
func InferSchema(path, topic string, maxMessages int) (*SchemaNode, error) {
	rows, err := rawMessages(path, topic, maxMessages)
	if err != nil {
		return nil, err
	}

	seen := freecache.NewCache(4 * 1024 * 1024)

	root := newSchemaNode()
	for _, raw := range rows {
		key := hashKey(raw)
		if _, err := seen.Get(key); err == nil {
			continue
		}
		_ = seen.Set(key, []byte{1}, 600)

		var v interface{}
		if err := jsonutil.Unmarshal(raw, &v); err != nil {
			continue
		}
		mergeValue(root, v)
	}
	return root, nil
}

// rawMessages re-reads the log and returns the base64-decoded JSON body of
// each matching message, bypassing any consumer schema since inference
// needs the message's own shape, not a typed projection of it.
func rawMessages(path, topic string, max int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	channelTopics := make(map[uint16]string)
	var out [][]byte

	for {
		body, kind, err := readFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
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
			raw, err := base64.StdEncoding.DecodeString(mf.Data)
			if err != nil {
				continue
			}
			out = append(out, raw)
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}
	}
	return out, nil
}

// hashKey reduces a raw message body to a fixed-size xxh3 digest so the
// freecache dedup cache stores an 8-byte key instead of the full (possibly
// large) message body.
func hashKey(raw []byte) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], xxh3.Hash(raw))
	return buf[:]
}

func mergeValue(node *SchemaNode, v interface{}) {
	switch val := v.(type) {
	case nil:
		node.Types |= TypeNull
	case bool:
		node.Types |= TypeBool
	case float64:
		node.Types |= TypeNumber
	case string:
		node.Types |= TypeString
		if len(val) > node.MaxStringLen {
			node.MaxStringLen = len(val)
		}
	case []interface{}:
		node.Types |= TypeArray
		if node.Element == nil {
			node.Element = newSchemaNode()
		}
		for _, elem := range val {
			mergeValue(node.Element, elem)
		}
	case map[string]interface{}:
		node.Types |= TypeObject
		if node.Properties == nil {
			node.Properties = make(map[string]*PropertyStat)
		}
		for key, sub := range val {
			stat, ok := node.Properties[key]
			if !ok {
				stat = &PropertyStat{Node: newSchemaNode()}
				node.Properties[key] = stat
			}
			stat.Count++
			mergeValue(stat.Node, sub)
		}
	}
}

// JSONSchema renders node as a minimal JSON-Schema-flavored summary
// (spec.md §4.7 "emits a JSON-Schema summary").
func (n *SchemaNode) JSONSchema() map[string]interface{} {
	out := map[string]interface{}{
		"type": n.typeNames(),
	}
	if n.Types&TypeString != 0 {
		out["maxLength"] = n.MaxStringLen
	}
	if n.Types&TypeArray != 0 && n.Element != nil {
		out["items"] = n.Element.JSONSchema()
	}
	if n.Types&TypeObject != 0 && len(n.Properties) > 0 {
		props := make(map[string]interface{}, len(n.Properties))
		for key, stat := range n.Properties {
			props[key] = map[string]interface{}{
				"schema":       stat.Node.JSONSchema(),
				"presentCount": stat.Count,
			}
		}
		out["properties"] = props
	}
	return out
}

func (n *SchemaNode) typeNames() []string {
	var names []string
	if n.Types&TypeNull != 0 {
		names = append(names, "null")
	}
	if n.Types&TypeBool != 0 {
		names = append(names, "boolean")
	}
	if n.Types&TypeNumber != 0 {
		names = append(names, "number")
	}
	if n.Types&TypeString != 0 {
		names = append(names, "string")
	}
	if n.Types&TypeArray != 0 {
		names = append(names, "array")
	}
	if n.Types&TypeObject != 0 {
		names = append(names, "object")
	}
	return names
}
