// Package dataconfig persists the per-module live/capture policy of
// spec.md §4.3/§4.4 (the DataConfig wire struct) to data_config.json.
package dataconfig

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/fsutil"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/messages"
)

const cacheKey = "current"

// Store loads/saves the DataConfig JSON file and fronts it with a short-TTL
// in-memory cache, mirroring golang/internal/cache.go's memCache usage so a
// burst of "data_config GET" queries does not each hit disk.
type Store struct {
	path string

	mu      sync.RWMutex
	current messages.DataConfig

	hot *cache.Cache
}

// Default is the module-provided default policy when no file exists yet.
var Default = messages.DataConfig{
	EnableLiveAll:       true,
	EnableLiveFixedRate: true,
	LiveRateHz:          10,
	EnableCapture:       true,
}

// Load reads path if present, else seeds the file with def.
func Load(path string, def messages.DataConfig) (*Store, error) {
	s := &Store{
		path: path,
		hot:  cache.New(2*time.Second, 10*time.Second),
	}

	if fsutil.Exists(path) {
		raw, err := fsutil.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cfg messages.DataConfig
		if err := jsonutil.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		s.current = cfg
		return s, nil
	}

	s.current = def
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy satisfies broker.PolicyProvider.
func (s *Store) Policy() messages.DataConfig {
	if v, ok := s.hot.Get(cacheKey); ok {
		return v.(messages.DataConfig)
	}
	s.mu.RLock()
	cfg := s.current
	s.mu.RUnlock()
	s.hot.SetDefault(cacheKey, cfg)
	return cfg
}

// Set persists a new policy to disk (spec.md §4.4 "data_config" SET).
func (s *Store) Set(cfg messages.DataConfig) error {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	s.hot.SetDefault(cacheKey, cfg)
	return s.save()
}

func (s *Store) save() error {
	body, err := jsonutil.MarshalIndent(s.current)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, body, 0o644); err != nil {
		zap.S().Errorw("dataconfig: failed to persist", "path", s.path, "error", err)
		return err
	}
	return nil
}
