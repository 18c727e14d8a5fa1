package timerwheel

import (
	"testing"
	"time"

	"github.com/zhouwentong1993/caffeine/internal/node"
)

func newExpiringNode(k int, deadline int64) *node.Node[int, string] {
	n := node.New[int, string](k, uint64(k), "v", 1, node.Strong, 0)
	n.SetVariableExpireTime(deadline)
	return n
}

func TestScheduleAndAdvancePastDeadlineExpires(t *testing.T) {
	start := int64(0)
	w := New[int, string](start)

	deadline := start + int64(500*time.Millisecond)
	n := newExpiringNode(1, deadline)
	w.Schedule(n, start, deadline)

	expired := w.AdvanceTo(start + int64(time.Second))
	if len(expired) != 1 || expired[0] != n {
		t.Fatalf("AdvanceTo() expired = %v, want [n]", expired)
	}
}

func TestAdvanceBeforeDeadlineDoesNotExpire(t *testing.T) {
	start := int64(0)
	w := New[int, string](start)

	deadline := start + int64(10*time.Second)
	n := newExpiringNode(1, deadline)
	w.Schedule(n, start, deadline)

	expired := w.AdvanceTo(start + int64(time.Second))
	if len(expired) != 0 {
		t.Fatalf("AdvanceTo() expired %d nodes before deadline, want 0", len(expired))
	}

	expired = w.AdvanceTo(start + int64(11*time.Second))
	if len(expired) != 1 || expired[0] != n {
		t.Fatalf("AdvanceTo() after deadline expired = %v, want [n]", expired)
	}
}

func TestDescheduleRemovesNode(t *testing.T) {
	start := int64(0)
	w := New[int, string](start)

	deadline := start + int64(time.Second)
	n := newExpiringNode(1, deadline)
	w.Schedule(n, start, deadline)
	if !n.InTimerWheel() {
		t.Fatalf("node not marked InTimerWheel after Schedule")
	}

	w.Deschedule(n)
	if n.InTimerWheel() {
		t.Fatalf("node still marked InTimerWheel after Deschedule")
	}

	expired := w.AdvanceTo(start + int64(2*time.Second))
	if len(expired) != 0 {
		t.Fatalf("AdvanceTo() expired a descheduled node")
	}
}

func TestCascadeFromCoarseToFineLevel(t *testing.T) {
	start := int64(0)
	w := New[int, string](start)

	// A deadline far enough out to land in a coarser level than level 0.
	deadline := start + int64(2*time.Minute)
	n := newExpiringNode(1, deadline)
	w.Schedule(n, start, deadline)

	if w.AdvanceTo(start + int64(30*time.Second)); len(w.buckets) == 0 {
		t.Fatalf("unexpected empty wheel")
	}

	expired := w.AdvanceTo(start + int64(3*time.Minute))
	if len(expired) != 1 || expired[0] != n {
		t.Fatalf("AdvanceTo() after cascade expired = %v, want [n]", expired)
	}
}
