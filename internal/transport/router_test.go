package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDbIDOf(t *testing.T) {
	assert.Equal(t, "db1", dbIDOf("db1/m/mod1/temp/liveall"))
	assert.Equal(t, "db1", dbIDOf("db1/c/bc/start_sampling"))
	assert.Equal(t, "onlydbid", dbIDOf("onlydbid"))
}
