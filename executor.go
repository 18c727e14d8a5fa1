package boundedcache

import (
	"time"

	"github.com/zhouwentong1993/caffeine/internal/pacer"
)

// Executor runs a maintenance task, possibly asynchronously, and reports
// whether it accepted the task. A rejection (e.g. a saturated worker pool)
// falls back to running the drain inline on the calling goroutine, so a
// rejecting Executor never loses work — it only loses the offload.
type Executor interface {
	Execute(task func()) bool
}

// GoExecutor runs every task on its own goroutine. It never rejects.
type GoExecutor struct{}

func (GoExecutor) Execute(task func()) bool {
	go task()
	return true
}

// executorAdapter lets an Executor (which can reject) satisfy
// internal/pacer.Executor (which cannot): a rejection runs the task inline
// instead, since the pacer's contract requires the task to always run.
type executorAdapter struct {
	executor Executor
}

func (a executorAdapter) Execute(task func()) {
	if !a.executor.Execute(task) {
		task()
	}
}

func toPacerExecutor(e Executor) pacer.Executor {
	if e == nil {
		return pacer.Inline{}
	}
	return executorAdapter{executor: e}
}

// Scheduler delays a task by d and returns a handle that can cancel it
// before it runs. Used to proactively trigger a drain around an entry's
// variable-expiry deadline instead of waiting for the next read or write.
type Scheduler interface {
	Schedule(task func(), d int64) ScheduledTask
}

// ScheduledTask cancels a task scheduled by a Scheduler. Cancel is a no-op
// if the task already ran.
type ScheduledTask interface {
	Cancel()
}

// TimeScheduler is a Scheduler backed by time.AfterFunc.
type TimeScheduler struct{}

func (TimeScheduler) Schedule(task func(), d int64) ScheduledTask {
	timer := time.AfterFunc(time.Duration(d), task)
	return timerTask{timer: timer}
}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Cancel() { t.timer.Stop() }
