package jobmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/beeker1121/goque"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/env"
	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/shutdown"
)

// QueryFunc performs a timeout-bounded query against the controller,
// matching transport.Endpoint.Query / transport.Router.Query.
type QueryFunc func(topic string, payload []byte, timeout time.Duration) []byte

// Manager is a single-consumer background worker draining a job queue
// (spec.md §4.5). The queue is backed by github.com/beeker1121/goque so a
// burst of job updates survives a worker-goroutine stall without being
// dropped on the floor, mirroring
// golang/cmd/mqtt-kafka-bridge/queue.go's use of goque for at-least-once
// delivery of bus traffic. Job pointers themselves are not persisted across
// a restart (goque can only serialize the wire item, not the live *Job), so
// durability here protects in-process backpressure, not full crash
// recovery — see DESIGN.md.
type Manager struct {
	controllerAddr string
	query          QueryFunc

	disk   *goque.Queue
	notify chan struct{}

	pendingMu sync.Mutex
	pending   map[uint64]*Job
	nextSeq   uint64

	freeMu      sync.Mutex
	freeLogJobs []*Job

	done *shutdown.Token
	wg   sync.WaitGroup
}

// New opens the on-disk job queue at queueDir and starts the update worker.
func New(cfg env.Config, queueDir string, query QueryFunc) (*Manager, error) {
	disk, err := goque.OpenQueue(queueDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		controllerAddr: cfg.ControllerAddress(),
		query:          query,
		disk:           disk,
		notify:         make(chan struct{}, 1),
		pending:        make(map[uint64]*Job),
		done:           shutdown.NewToken(),
	}
	m.wg.Add(1)
	go m.updateWorker()
	return m, nil
}

// Submit enqueues job for processing unless it is already queued (spec.md
// §3 "is_queued" style dedup, mirrored from JobEntry::update).
func (m *Manager) Submit(job *Job) {
	if !job.markQueued() {
		return
	}

	seq := atomic.AddUint64(&m.nextSeq, 1)
	m.pendingMu.Lock()
	m.pending[seq] = job
	m.pendingMu.Unlock()

	if _, err := m.disk.Enqueue(seqToBytes(seq)); err != nil {
		zap.S().Errorw("jobmanager: failed to enqueue", "error", err)
		job.clearQueued()
		m.pendingMu.Lock()
		delete(m.pending, seq)
		m.pendingMu.Unlock()
		return
	}

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// LogGUI announces a one-shot UI log line, reusing a pooled LogJob from the
// free list when one is available (spec.md §4.5, §8.7).
func (m *Manager) LogGUI(name, message, timeStr string) {
	m.freeMu.Lock()
	var job *Job
	n := len(m.freeLogJobs)
	if n > 0 {
		job = m.freeLogJobs[n-1]
		m.freeLogJobs = m.freeLogJobs[:n-1]
	} else {
		job = &Job{ID: -1, Type: KindLog}
	}
	m.freeMu.Unlock()

	job.ID = -1
	job.Done = false
	job.Data = logData(name, message, timeStr)
	m.Submit(job)
}

func logData(name, message, timeStr string) interface{} {
	return struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		TimeStr string `json:"time_str"`
	}{Name: name, Message: message, TimeStr: timeStr}
}

func (m *Manager) freeLogJob(job *Job) {
	m.freeMu.Lock()
	m.freeLogJobs = append(m.freeLogJobs, job)
	m.freeMu.Unlock()
}

// updateWorker drains the disk queue, performing one timeout-bounded query
// per job (spec.md §4.5 flow 1-3).
func (m *Manager) updateWorker() {
	defer m.wg.Done()
	zap.S().Debug("jobmanager: started update worker")

	for {
		item, err := m.disk.Dequeue()
		if err == goque.ErrEmpty {
			select {
			case <-m.done.Done():
				return
			case <-m.notify:
				continue
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}
		if err != nil {
			zap.S().Errorw("jobmanager: dequeue failed", "error", err)
			continue
		}

		seq := bytesToSeq(item.Value)
		m.pendingMu.Lock()
		job, ok := m.pending[seq]
		delete(m.pending, seq)
		m.pendingMu.Unlock()
		if !ok {
			// Leftover entry from a previous process lifetime whose job
			// pointer no longer exists; nothing to apply.
			continue
		}

		m.process(job)
	}
}

func (m *Manager) process(job *Job) {
	defer job.clearQueued()

	body, err := jsonutil.Marshal(job.toWire())
	if err != nil {
		zap.S().Errorw("jobmanager: marshal job failed", "error", err)
		return
	}

	var reply []byte
	if job.ID == -1 {
		reply = m.query("job_submit", body, time.Second)
		if len(reply) == 0 {
			zap.S().Debugw("jobmanager: job_submit failed, caller must re-enqueue", "type", job.Type)
			return
		}
		var parsed struct {
			ID int64 `json:"id"`
		}
		if err := jsonutil.Unmarshal(reply, &parsed); err != nil {
			zap.S().Errorw("jobmanager: malformed job_submit reply", "error", err)
			return
		}
		job.ID = parsed.ID
	} else {
		reply = m.query("job_update", body, time.Second)
		if len(reply) == 0 {
			zap.S().Debugw("jobmanager: job_update failed, caller must re-enqueue", "id", job.ID)
			return
		}
	}

	var status struct {
		Done bool `json:"done"`
	}
	if err := jsonutil.Unmarshal(reply, &status); err == nil {
		job.Done = status.Done
	}

	if job.Done {
		job.ID = -1
		if job.Type == KindLog {
			m.freeLogJob(job)
		}
	}
}

// Shutdown stops the worker and closes the disk queue.
func (m *Manager) Shutdown() {
	m.done.Trigger()
	m.wg.Wait()
	if err := m.disk.Close(); err != nil {
		zap.S().Errorw("jobmanager: close queue failed", "error", err)
	}
}

func seqToBytes(seq uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(seq >> (8 * i))
	}
	return b
}

func bytesToSeq(b []byte) uint64 {
	var seq uint64
	for i := 0; i < 8 && i < len(b); i++ {
		seq |= uint64(b[i]) << (8 * i)
	}
	return seq
}
