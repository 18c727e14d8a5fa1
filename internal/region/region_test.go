package region

import (
	"testing"

	"github.com/zhouwentong1993/caffeine/internal/node"
)

func newTestNode(k int, weight int64) *node.Node[int, string] {
	return node.New[int, string](k, uint64(k), "v", weight, node.Strong, 0)
}

func TestAddPlacesInWindow(t *testing.T) {
	p := New[int, string](100, 1)
	n := newTestNode(1, 1)
	p.Add(n)

	if n.Region() != node.Window {
		t.Fatalf("Region() = %v, want Window", n.Region())
	}
	if p.WindowWeightedSize() != 1 {
		t.Fatalf("WindowWeightedSize() = %d, want 1", p.WindowWeightedSize())
	}
}

func TestRecordAccessPromotesProbationToProtected(t *testing.T) {
	p := New[int, string](100, 1)
	n := newTestNode(1, 1)
	n.SetRegion(node.MainProbation)
	p.probation.PushBack(n)
	p.mainWeighted += n.Weight()

	p.RecordAccess(n)

	if n.Region() != node.MainProtected {
		t.Fatalf("Region() after access = %v, want MainProtected", n.Region())
	}
	if p.ProtectedWeightedSize() != 1 {
		t.Fatalf("ProtectedWeightedSize() = %d, want 1", p.ProtectedWeightedSize())
	}
}

func TestEvictExcessShedsDownToMaximum(t *testing.T) {
	p := New[int, string](4, 1)
	// Force a tiny window so everything but the most recent entries lands
	// in main and exercises the admission comparison.
	p.SetWindowMaximum(1)

	var evicted []int
	for i := 0; i < 10; i++ {
		n := newTestNode(i, 1)
		p.Add(n)
		p.EvictExcess(func(n *node.Node[int, string], cause Cause) {
			evicted = append(evicted, n.Key())
		})
	}

	if p.WeightedSize() > p.Maximum() {
		t.Fatalf("WeightedSize() = %d exceeds maximum %d", p.WeightedSize(), p.Maximum())
	}
	if len(evicted) == 0 {
		t.Fatalf("expected some evictions once capacity was exceeded")
	}
}

func TestRemoveFromWindow(t *testing.T) {
	p := New[int, string](100, 1)
	n := newTestNode(1, 1)
	p.Add(n)

	p.Remove(n)

	if p.WindowWeightedSize() != 0 {
		t.Fatalf("WindowWeightedSize() after Remove = %d, want 0", p.WindowWeightedSize())
	}
	if n.InAccessDeque() {
		t.Fatalf("node still linked into a deque after Remove")
	}
}

func TestColdestReturnsWindowBeforeProbation(t *testing.T) {
	p := New[int, string](100, 1)
	w := newTestNode(1, 1)
	pr := newTestNode(2, 1)
	p.Add(w)
	pr.SetRegion(node.MainProbation)
	p.probation.PushBack(pr)
	p.mainWeighted += pr.Weight()

	coldest := p.Coldest(1)
	if len(coldest) != 1 || coldest[0] != w {
		t.Fatalf("Coldest(1) = %v, want [window entry]", coldest)
	}
}

func TestClearResetsEverything(t *testing.T) {
	p := New[int, string](100, 1)
	p.Add(newTestNode(1, 1))
	p.Clear()

	if p.WeightedSize() != 0 {
		t.Fatalf("WeightedSize() after Clear() = %d, want 0", p.WeightedSize())
	}
	if p.Sketch().Estimate(1) != 0 {
		t.Fatalf("sketch not cleared")
	}
}
