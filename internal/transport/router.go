package transport

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HostLookup resolves a remote DB_ID to a broker hostname. It is populated
// from the controller's databeam_registry reply and, best-effort, mirrored
// to Redis so a restarted module does not need to wait for the next
// broadcast (see internal/transport/hostcache.go), matching
// golang/internal/cache.go's degrade-gracefully tiered lookup pattern.
type HostLookup interface {
	Lookup(dbID string) (hostname string, ok bool)
	Remember(dbID, hostname string)
}

// Router wraps multiple endpoints, one per known remote DB_ID, and
// multiplexes operations by the first "/"-separated segment of a key
// (spec.md §4.2). Index 0 is always the local endpoint.
type Router struct {
	localDBID string
	ports     Ports // template; Host is overridden per remote
	seed      int64

	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	order     []string // dbID of each endpoint in creation order; order[0] is local

	hosts HostLookup
}

// NewRouter constructs a router whose local endpoint is already connected.
func NewRouter(localDBID string, local *Endpoint, ports Ports, seed int64, hosts HostLookup) *Router {
	r := &Router{
		localDBID: localDBID,
		ports:     ports,
		seed:      seed,
		endpoints: map[string]*Endpoint{localDBID: local},
		order:     []string{localDBID},
		hosts:     hosts,
	}
	return r
}

func dbIDOf(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

func (r *Router) local() *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[r.order[0]]
}

// endpointFor returns the endpoint for dbID, lazily creating it if the
// hostname is known, per spec.md §4.2.
func (r *Router) endpointFor(dbID string) (*Endpoint, bool) {
	r.mu.RLock()
	ep, ok := r.endpoints[dbID]
	r.mu.RUnlock()
	if ok {
		return ep, true
	}

	host, known := r.hosts.Lookup(dbID)
	if !known {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[dbID]; ok {
		return ep, true
	}

	ports := r.ports
	ports.Host = host
	ep, err := NewEndpoint(dbID, ports, r.seed+int64(len(r.order)))
	if err != nil {
		zap.S().Errorw("router: failed to add endpoint", "db_id", dbID, "host", host, "error", err)
		return nil, false
	}
	r.endpoints[dbID] = ep
	r.order = append(r.order, dbID)
	return ep, true
}

// Publish routes by the key's DB_ID segment, lazily adding an endpoint if
// needed; unknown DB_IDs are logged and dropped.
func (r *Router) Publish(key string, data []byte) {
	dbID := dbIDOf(key)
	ep, ok := r.endpointFor(dbID)
	if !ok {
		zap.S().Errorw("router: unknown db_id for publish, dropped", "key", key)
		return
	}
	ep.Publish(key, data)
}

// Subscribe routes by DB_ID. Subscriptions may only be added once the
// endpoint exists; unknown DB_IDs are logged as errors.
func (r *Router) Subscribe(key string, handler SubscribeHandler) {
	dbID := dbIDOf(key)
	ep, ok := r.endpointFor(dbID)
	if !ok {
		zap.S().Errorw("router: unknown db_id for subscribe", "key", key)
		return
	}
	ep.Subscribe(key, handler)
}

// Unsubscribe routes by DB_ID, same rules as Subscribe.
func (r *Router) Unsubscribe(key string, handler SubscribeHandler) {
	dbID := dbIDOf(key)
	ep, ok := r.endpointFor(dbID)
	if !ok {
		zap.S().Errorw("router: unknown db_id for unsubscribe", "key", key)
		return
	}
	ep.Unsubscribe(key, handler)
}

// DeclareQueryable always uses the local endpoint; external queryables are
// not supported (spec.md §4.2).
func (r *Router) DeclareQueryable(topic string, handler QueryableHandler) {
	r.local().DeclareQueryable(topic, handler)
}

// Query always uses the local endpoint.
func (r *Router) Query(destIdentity, topic string, data []byte, timeout time.Duration) []byte {
	return r.local().Query(destIdentity, topic, data, timeout)
}

// SetExternalDatabeams stores the DB_ID->hostname mapping and eagerly
// creates an endpoint for every listed remote (spec.md §4.2).
func (r *Router) SetExternalDatabeams(ids, hosts []string) {
	n := len(ids)
	if len(hosts) < n {
		n = len(hosts)
	}
	for i := 0; i < n; i++ {
		r.hosts.Remember(ids[i], hosts[i])
		if _, ok := r.endpointFor(ids[i]); !ok {
			zap.S().Errorw("router: could not eagerly create endpoint", "db_id", ids[i])
		}
	}
}

// Close shuts down every endpoint owned by the router.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.endpoints {
		ep.Close()
	}
}
