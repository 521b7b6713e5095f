package jobmanager

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-vehicle/databeam/internal/env"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
)

// stubController answers job_submit with an incrementing ID plus done=true
// and job_update with done=true, so a submitted job completes on its first
// query.
type stubController struct {
	mu     sync.Mutex
	nextID int64
	calls  []string
}

func (s *stubController) query(_ string, payload []byte, _ time.Duration) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wire struct {
		ID int64 `json:"id"`
	}
	_ = jsonutil.Unmarshal(payload, &wire)

	if wire.ID == -1 {
		s.calls = append(s.calls, "submit")
		s.nextID++
		// A one-shot job (LogJob, ReadyJob) completes on its first
		// round-trip: the controller acknowledges done=true immediately.
		return []byte(jsonutil.ToString(struct {
			ID   int64 `json:"id"`
			Done bool  `json:"done"`
		}{ID: s.nextID, Done: true}))
	}

	s.calls = append(s.calls, "update")
	return []byte(`{"done":true}`)
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerSubmitCompletesJob(t *testing.T) {
	dir := t.TempDir()
	ctrl := &stubController{}
	cfg := env.Config{DBID: "db1"}

	m, err := New(cfg, dir, ctrl.query)
	require.NoError(t, err)
	defer m.Shutdown()

	job := NewReadyJob("mod1", true)
	m.Submit(job)

	waitForCondition(t, 2*time.Second, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.calls) >= 1
	})
	waitForCondition(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&job.queued) == 0
	})
	assert.True(t, job.Done, "the stub's done=true reply must complete the job")
	assert.Equal(t, int64(-1), job.ID, "a completed job's id is reset to -1")
}

func TestLogGUIReusesFreedJob(t *testing.T) {
	dir := t.TempDir()
	ctrl := &stubController{}
	cfg := env.Config{DBID: "db1"}

	m, err := New(cfg, dir, ctrl.query)
	require.NoError(t, err)
	defer m.Shutdown()

	m.LogGUI("mod1", "first message", "12:00:00")

	waitForCondition(t, 2*time.Second, func() bool {
		m.freeMu.Lock()
		defer m.freeMu.Unlock()
		return len(m.freeLogJobs) == 1
	})

	m.freeMu.Lock()
	reused := m.freeLogJobs[0]
	m.freeMu.Unlock()

	m.LogGUI("mod1", "second message", "12:00:01")

	waitForCondition(t, 2*time.Second, func() bool {
		m.freeMu.Lock()
		defer m.freeMu.Unlock()
		return len(m.freeLogJobs) == 1
	})

	assert.Same(t, reused, m.freeLogJobs[0], "the completed LogJob must be pooled back onto the free list")
}

func TestSubmitDedupsAlreadyQueuedJob(t *testing.T) {
	job := NewReadyJob("mod1", true)
	assert.True(t, job.markQueued())
	assert.False(t, job.markQueued(), "a job already marked queued must refuse a second claim")
	job.clearQueued()
	assert.True(t, job.markQueued(), "clearQueued must allow the job to be claimed again")
}
