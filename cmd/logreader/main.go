// Command logreader is the offline companion tool of spec.md §4.7: it
// iterates a capture log for one topic and either decodes rows into a flat
// schema or infers a union-schema summary of the topic's messages.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/logging"
	"github.com/virtual-vehicle/databeam/internal/logreader"
)

func main() {
	path := flag.String("file", "", "capture log path")
	topic := flag.String("topic", "", "topic to extract")
	infer := flag.Bool("infer", false, "infer a union schema instead of decoding rows")
	max := flag.Int("max", 0, "maximum rows/messages to read (0 = unbounded)")
	flag.Parse()

	sync := logging.Init("INFO")
	defer sync()

	if *path == "" || *topic == "" {
		fmt.Fprintln(os.Stderr, "usage: logreader -file <path> -topic <topic> [-infer] [-max N]")
		os.Exit(2)
	}

	if *infer {
		node, err := logreader.InferSchema(*path, *topic, *max)
		if err != nil {
			zap.S().Fatalw("logreader: infer failed", "error", err)
		}
		fmt.Println(jsonutil.ToString(node.JSONSchema()))
		return
	}

	rows, err := logreader.ReadRows(*path, *topic, logreader.Schema{TSField: "ts"}, 0, *max)
	if err != nil {
		zap.S().Fatalw("logreader: read failed", "error", err)
	}
	fmt.Println(jsonutil.ToString(rows))
}
