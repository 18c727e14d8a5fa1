package maintenance

import (
	"testing"

	"github.com/zhouwentong1993/caffeine/internal/clock"
	"github.com/zhouwentong1993/caffeine/internal/datamap"
	"github.com/zhouwentong1993/caffeine/internal/node"
	"github.com/zhouwentong1993/caffeine/internal/region"
	"github.com/zhouwentong1993/caffeine/internal/stats"
)

func TestRecordWriteThenCleanUpInsertsNode(t *testing.T) {
	c := clock.NewManual(0)
	data := datamap.New[int, string](0)
	policy := region.New[int, string](100, 1)
	loop := New(Config[int, string]{
		Clock:   c,
		Data:    data,
		Policy:  policy,
		Maximum: 100,
	}, 0)

	n := node.New[int, string](1, 1, "v", 1, node.Strong, 0)
	data.PutIfAbsent(n)
	loop.RecordWrite(WriteTask[int, string]{Kind: WriteAdd, Node: n})
	loop.PerformCleanUp()

	if n.Region() != node.Window {
		t.Fatalf("Region() after add = %v, want Window", n.Region())
	}
	if policy.WeightedSize() != 1 {
		t.Fatalf("WeightedSize() = %d, want 1", policy.WeightedSize())
	}
}

func TestRecordWriteRemoveUnlinksNode(t *testing.T) {
	c := clock.NewManual(0)
	data := datamap.New[int, string](0)
	policy := region.New[int, string](100, 1)
	loop := New(Config[int, string]{
		Clock:   c,
		Data:    data,
		Policy:  policy,
		Maximum: 100,
	}, 0)

	n := node.New[int, string](1, 1, "v", 1, node.Strong, 0)
	data.PutIfAbsent(n)
	loop.RecordWrite(WriteTask[int, string]{Kind: WriteAdd, Node: n})
	loop.PerformCleanUp()

	loop.RecordWrite(WriteTask[int, string]{Kind: WriteRemove, Node: n, Cause: stats.CauseExplicit})
	loop.PerformCleanUp()

	if !n.IsDead() {
		t.Fatalf("Lifecycle() after remove = %v, want Dead", n.Lifecycle())
	}
	if policy.WeightedSize() != 0 {
		t.Fatalf("WeightedSize() after remove = %d, want 0", policy.WeightedSize())
	}
}

func TestEvictionOnOverflowCallsListener(t *testing.T) {
	c := clock.NewManual(0)
	data := datamap.New[int, string](0)
	policy := region.New[int, string](2, 1)
	policy.SetWindowMaximum(1)

	var evictedKeys []int
	loop := New(Config[int, string]{
		Clock:   c,
		Data:    data,
		Policy:  policy,
		Maximum: 2,
		OnEvict: func(n *node.Node[int, string], cause stats.DeletionCause) {
			evictedKeys = append(evictedKeys, n.Key())
		},
	}, 0)

	for i := 0; i < 5; i++ {
		n := node.New[int, string](i, uint64(i), "v", 1, node.Strong, 0)
		data.PutIfAbsent(n)
		loop.RecordWrite(WriteTask[int, string]{Kind: WriteAdd, Node: n})
	}
	loop.PerformCleanUp()

	if policy.WeightedSize() > 2 {
		t.Fatalf("WeightedSize() = %d, exceeds maximum 2", policy.WeightedSize())
	}
	if len(evictedKeys) == 0 {
		t.Fatalf("expected at least one eviction once capacity was exceeded")
	}
}

func TestAfterAccessExpiration(t *testing.T) {
	c := clock.NewManual(0)
	data := datamap.New[int, string](0)
	policy := region.New[int, string](100, 1)

	var evicted bool
	loop := New(Config[int, string]{
		Clock:                  c,
		Data:                   data,
		Policy:                 policy,
		Maximum:                100,
		ExpireAfterAccessNanos: int64(1000),
		OnEvict: func(n *node.Node[int, string], cause stats.DeletionCause) {
			if cause == stats.CauseExpired {
				evicted = true
			}
		},
	}, 0)

	n := node.New[int, string](1, 1, "v", 1, node.Strong, 0)
	data.PutIfAbsent(n)
	loop.RecordWrite(WriteTask[int, string]{Kind: WriteAdd, Node: n})
	loop.PerformCleanUp()

	c.Set(2000)
	loop.PerformCleanUp()

	if !evicted {
		t.Fatalf("expected after-access expiration once the tolerance window passed")
	}
	if _, ok := data.Get(1); ok {
		t.Fatalf("expired node still present in data map")
	}
}
