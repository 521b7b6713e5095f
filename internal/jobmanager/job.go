// Package jobmanager implements the controller-tracked asynchronous job
// queue of spec.md §4.5, grounded on
// _examples/original_source/libs/cpp/{header,source}/JobManager.cpp and its
// JobEntry/LogJob companions.
package jobmanager

import (
	"sync/atomic"

	"github.com/virtual-vehicle/databeam/internal/messages"
)

// Kind distinguishes the two job payloads named in spec.md §4.5.
type Kind string

const (
	KindReady Kind = "ready"
	KindLog   Kind = "log"
)

// Job is a controller-tracked asynchronous unit: a ready announcement or a
// one-shot UI log line. ID is -1 until the controller assigns one on first
// submit.
type Job struct {
	ID   int64
	Type Kind
	Done bool
	Data interface{}

	queued int32 // atomic; mirrors JobEntry::is_queued
}

func (j *Job) markQueued() bool {
	return atomic.CompareAndSwapInt32(&j.queued, 0, 1)
}

func (j *Job) clearQueued() {
	atomic.StoreInt32(&j.queued, 0)
}

// wireItem is the JSON body submitted to job_submit/job_update.
type wireItem struct {
	ID   int64       `json:"id"`
	Type Kind        `json:"type"`
	Done bool        `json:"done"`
	Data interface{} `json:"data"`
}

func (j *Job) toWire() wireItem {
	return wireItem{ID: j.ID, Type: j.Type, Done: j.Done, Data: j.Data}
}

// NewReadyJob builds a "ready" job announcing a readiness toggle.
func NewReadyJob(moduleName string, ready bool) *Job {
	return &Job{
		ID:   -1,
		Type: KindReady,
		Data: messages.ReadyJobData{ModuleName: moduleName, Ready: ready},
	}
}
