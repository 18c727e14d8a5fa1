// Package pacer implements coalesced scheduled-cleanup dispatch: when the
// drain status transitions to required and no maintenance run is currently
// scheduled, hand the cleanup task to an executor exactly once; any further
// transitions while that task is still pending are absorbed rather than
// queuing a second run. A CAS on a single "scheduled" flag guards the
// handoff to the executor.
package pacer

import "sync/atomic"

// Executor runs a cleanup task, possibly asynchronously. A plain goroutine
// spawn satisfies this trivially; it exists so callers can inject a worker
// pool instead.
type Executor interface {
	Execute(task func())
}

// Inline runs the task synchronously on the calling goroutine. Used as the
// default when no executor is configured.
type Inline struct{}

func (Inline) Execute(task func()) { task() }

// Pacer coalesces repeated schedule requests into at most one pending
// executor dispatch.
type Pacer struct {
	scheduled atomic.Bool
	executor  Executor
}

// New creates a Pacer dispatching through executor. A nil executor runs
// tasks inline.
func New(executor Executor) *Pacer {
	if executor == nil {
		executor = Inline{}
	}
	return &Pacer{executor: executor}
}

// Schedule hands task to the executor unless a previously scheduled task is
// still pending, in which case this call is a no-op: the pending run will
// observe whatever state prompted this call once it executes. The pending
// flag is cleared when task returns, letting the next Schedule through.
func (p *Pacer) Schedule(task func()) {
	if !p.scheduled.CompareAndSwap(false, true) {
		return
	}
	p.executor.Execute(func() {
		defer p.scheduled.Store(false)
		task()
	})
}

// IsScheduled reports whether a task is currently pending, for tests and for
// blocking operations that need the drain to have happened before they can
// proceed.
func (p *Pacer) IsScheduled() bool { return p.scheduled.Load() }
