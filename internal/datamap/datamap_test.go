package datamap

import (
	"testing"

	"github.com/zhouwentong1993/caffeine/internal/hash"
	"github.com/zhouwentong1993/caffeine/internal/node"
)

func newNode(k string) *node.Node[string, int] {
	return node.New[string, int](k, hash.Of(k), len(k), 1, node.Strong, 0)
}

func TestPutIfAbsentAndGet(t *testing.T) {
	m := New[string, int](0)
	n := newNode("a")

	got, inserted := m.PutIfAbsent(n)
	if !inserted || got != n {
		t.Fatalf("PutIfAbsent() = %v,%v want n,true", got, inserted)
	}

	_, inserted = m.PutIfAbsent(newNode("a"))
	if inserted {
		t.Fatalf("PutIfAbsent() on existing key reported inserted")
	}

	found, ok := m.Get("a")
	if !ok || found != n {
		t.Fatalf("Get() = %v,%v want n,true", found, ok)
	}
}

func TestPutReplacesAndReturnsOld(t *testing.T) {
	m := New[string, int](0)
	a := newNode("k")
	b := newNode("k")

	m.Put(a)
	old, existed := m.Put(b)
	if !existed || old != a {
		t.Fatalf("Put() old,existed = %v,%v want a,true", old, existed)
	}
	got, _ := m.Get("k")
	if got != b {
		t.Fatalf("Get() after replace = %v, want b", got)
	}
}

func TestRemoveOnlyIfIdentityMatches(t *testing.T) {
	m := New[string, int](0)
	a := newNode("k")
	b := newNode("k")
	m.Put(a)

	if m.Remove("k", a.KeyHash(), b) {
		t.Fatalf("Remove() with mismatched identity succeeded")
	}
	if _, ok := m.Get("k"); !ok {
		t.Fatalf("Get() reports missing after failed Remove")
	}

	if !m.Remove("k", a.KeyHash(), a) {
		t.Fatalf("Remove() with matching identity failed")
	}
	if _, ok := m.Get("k"); ok {
		t.Fatalf("Get() still reports present after successful Remove")
	}
}

func TestLenAndClear(t *testing.T) {
	m := New[string, int](4)
	for _, k := range []string{"a", "b", "c"} {
		m.PutIfAbsent(newNode(k))
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", m.Len())
	}
}

func TestRangeVisitsAllEntries(t *testing.T) {
	m := New[string, int](0)
	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		m.PutIfAbsent(newNode(k))
	}
	seen := map[string]bool{}
	m.Range(func(n *node.Node[string, int]) bool {
		seen[n.Key()] = true
		return true
	})
	for _, k := range keys {
		if !seen[k] {
			t.Fatalf("Range() did not visit key %q", k)
		}
	}
}
