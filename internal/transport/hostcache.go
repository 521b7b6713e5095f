package transport

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// hostCache is an in-memory DB_ID->hostname table, best-effort mirrored to
// Redis so a restarted module does not need to wait for the controller's
// next databeam_registry broadcast before it can reach already-known
// remotes. Redis is optional: if it cannot be reached, lookups simply fall
// back to memory, mirroring golang/internal/cache.go's
// IsRedisAvailable/GetTiered degrade-gracefully pattern.
type hostCache struct {
	mu  sync.RWMutex
	mem map[string]string

	rdb       *redis.Client
	keyPrefix string
	ctx       context.Context
}

// NewHostCache constructs a HostLookup. redisAddr may be empty, in which
// case the cache is memory-only.
func NewHostCache(redisAddr, keyPrefix string) HostLookup {
	hc := &hostCache{
		mem:       make(map[string]string),
		keyPrefix: keyPrefix,
		ctx:       context.Background(),
	}
	if redisAddr != "" {
		hc.rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return hc
}

func (hc *hostCache) Lookup(dbID string) (string, bool) {
	hc.mu.RLock()
	host, ok := hc.mem[dbID]
	hc.mu.RUnlock()
	if ok {
		return host, true
	}

	if hc.rdb == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(hc.ctx, 250*time.Millisecond)
	defer cancel()
	val, err := hc.rdb.Get(ctx, hc.keyPrefix+dbID).Result()
	if err != nil {
		return "", false
	}
	hc.mu.Lock()
	hc.mem[dbID] = val
	hc.mu.Unlock()
	return val, true
}

func (hc *hostCache) Remember(dbID, hostname string) {
	hc.mu.Lock()
	hc.mem[dbID] = hostname
	hc.mu.Unlock()

	if hc.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(hc.ctx, 250*time.Millisecond)
	defer cancel()
	if err := hc.rdb.Set(ctx, hc.keyPrefix+dbID, hostname, 0).Err(); err != nil {
		zap.S().Debugw("hostcache: redis mirror failed, continuing memory-only", "error", err)
	}
}
