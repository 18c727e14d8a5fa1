package deque

import (
	"testing"

	"github.com/zhouwentong1993/caffeine/internal/node"
)

func newTestNode(k int) *node.Node[int, string] {
	return node.New[int, string](k, uint64(k), "v", 1, node.Strong, 0)
}

func TestPushBackOrder(t *testing.T) {
	d := NewAccessOrder[int, string]()
	a, b, c := newTestNode(1), newTestNode(2), newTestNode(3)

	d.PushBack(a)
	d.PushBack(b)
	d.PushBack(c)

	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	if d.First() != a || d.Last() != c {
		t.Fatalf("First/Last = %v/%v, want a/c", d.First().Key(), d.Last().Key())
	}

	var order []int
	d.Each(func(n *node.Node[int, string]) { order = append(order, n.Key()) })
	want := []int{1, 2, 3}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("order[%d] = %d, want %d", i, order[i], k)
		}
	}
}

func TestRemoveMiddle(t *testing.T) {
	d := NewAccessOrder[int, string]()
	a, b, c := newTestNode(1), newTestNode(2), newTestNode(3)
	d.PushBack(a)
	d.PushBack(b)
	d.PushBack(c)

	d.Remove(b)

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if d.Contains(b) {
		t.Fatalf("deque still contains removed node")
	}
	if b.InAccessDeque() {
		t.Fatalf("removed node still reports InAccessDeque")
	}
	if d.First() != a || d.Last() != c {
		t.Fatalf("First/Last after remove = %v/%v, want a/c", d.First().Key(), d.Last().Key())
	}
}

func TestRemoveHeadAndTail(t *testing.T) {
	d := NewAccessOrder[int, string]()
	a, b := newTestNode(1), newTestNode(2)
	d.PushBack(a)
	d.PushBack(b)

	d.Remove(a)
	if d.First() != b || d.Last() != b {
		t.Fatalf("after removing head, First/Last = %v/%v, want b/b", d.First(), d.Last())
	}

	d.Remove(b)
	if d.Len() != 0 || d.First() != nil || d.Last() != nil {
		t.Fatalf("deque not empty after removing all nodes")
	}
}

func TestMoveToBack(t *testing.T) {
	d := NewAccessOrder[int, string]()
	a, b, c := newTestNode(1), newTestNode(2), newTestNode(3)
	d.PushBack(a)
	d.PushBack(b)
	d.PushBack(c)

	d.MoveToBack(a)

	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	if d.Last() != a {
		t.Fatalf("Last() = %v, want a", d.Last().Key())
	}
	var order []int
	d.Each(func(n *node.Node[int, string]) { order = append(order, n.Key()) })
	want := []int{2, 3, 1}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("order[%d] = %d, want %d", i, order[i], k)
		}
	}
}

func TestMoveToBackAlreadyLast(t *testing.T) {
	d := NewAccessOrder[int, string]()
	a, b := newTestNode(1), newTestNode(2)
	d.PushBack(a)
	d.PushBack(b)

	d.MoveToBack(b)

	if d.Len() != 2 || d.Last() != b || d.First() != a {
		t.Fatalf("MoveToBack on tail mutated deque unexpectedly")
	}
}

func TestWriteOrderIndependentOfAccessOrder(t *testing.T) {
	access := NewAccessOrder[int, string]()
	write := NewWriteOrder[int, string]()
	a, b := newTestNode(1), newTestNode(2)

	access.PushBack(a)
	access.PushBack(b)
	write.PushBack(b)
	write.PushBack(a)

	var accessOrder, writeOrder []int
	access.Each(func(n *node.Node[int, string]) { accessOrder = append(accessOrder, n.Key()) })
	write.Each(func(n *node.Node[int, string]) { writeOrder = append(writeOrder, n.Key()) })

	if accessOrder[0] != 1 || accessOrder[1] != 2 {
		t.Fatalf("access order = %v, want [1 2]", accessOrder)
	}
	if writeOrder[0] != 2 || writeOrder[1] != 1 {
		t.Fatalf("write order = %v, want [2 1]", writeOrder)
	}
}
