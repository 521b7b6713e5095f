package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBackoffTimeZeroRetriesIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), GetBackoffTime(0, 200*time.Millisecond, 5*time.Second))
}

func TestGetBackoffTimeCapsAtMaximum(t *testing.T) {
	for retries := int64(1); retries < 40; retries++ {
		d := GetBackoffTime(retries, 200*time.Millisecond, 5*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestSleepReturnsEarlyWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)

	start := time.Now()
	Sleep(10, time.Second, time.Minute, done)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "a closed done channel must short-circuit the sleep")
}
