// Command filtermodule runs the streaming filter exemplar of spec.md §4.6
// as a standalone DataBeam module process.
package main

import (
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/env"
	"github.com/virtual-vehicle/databeam/internal/filter"
	"github.com/virtual-vehicle/databeam/internal/logging"
	"github.com/virtual-vehicle/databeam/internal/runtime"
)

func main() {
	cfg, err := env.Load()
	if err != nil {
		panic(err)
	}

	sync := logging.Init(cfg.LogLevel)
	defer sync()

	module := filter.New(cfg.DBID, cfg.ModuleName)

	rt, err := runtime.New(cfg, "filter", module)
	if err != nil {
		zap.S().Fatalw("filtermodule: failed to start runtime", "error", err)
	}

	rt.Run()
}
