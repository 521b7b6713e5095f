package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostCacheMemoryOnlyFallback(t *testing.T) {
	hc := NewHostCache("", "databeam:hostcache:")

	_, ok := hc.Lookup("db1")
	assert.False(t, ok, "unknown DB_ID must miss cleanly with no Redis configured")

	hc.Remember("db1", "host-1")
	host, ok := hc.Lookup("db1")
	assert.True(t, ok)
	assert.Equal(t, "host-1", host)
}
