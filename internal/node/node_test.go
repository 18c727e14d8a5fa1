package node

import (
	"runtime"
	"testing"
)

func TestNewNodeStartsAliveInWindow(t *testing.T) {
	n := New[int, string](1, 1, "v", 1, Strong, 100)

	if !n.IsAlive() {
		t.Fatalf("IsAlive() = false, want true for a new node")
	}
	if n.Region() != Window {
		t.Fatalf("Region() = %v, want Window", n.Region())
	}
	if n.AccessTime() != 100 || n.WriteTime() != 100 {
		t.Fatalf("AccessTime/WriteTime = %d/%d, want both 100", n.AccessTime(), n.WriteTime())
	}
	if n.HasVariableExpire() {
		t.Fatalf("HasVariableExpire() = true for a freshly created node")
	}
}

func TestRetireThenDieIsOneWay(t *testing.T) {
	n := New[int, string](1, 1, "v", 1, Strong, 0)

	n.Retire()
	if !n.IsRetired() {
		t.Fatalf("IsRetired() = false after Retire()")
	}
	n.Die()
	if !n.IsDead() {
		t.Fatalf("IsDead() = false after Die()")
	}

	// Retire after Die must not resurrect the lifecycle backward.
	n.Retire()
	if !n.IsDead() {
		t.Fatalf("Retire() after Die() moved the lifecycle away from Dead")
	}
}

func TestStrongValueIsAlwaysReachable(t *testing.T) {
	n := New[int, string](1, 1, "v1", 1, Strong, 0)

	v, ok := n.Value()
	if !ok || v != "v1" {
		t.Fatalf("Value() = (%q, %v), want (v1, true)", v, ok)
	}
	if n.IsCollected() {
		t.Fatalf("IsCollected() = true for a Strong node")
	}

	n.Lock()
	n.SetValue("v2")
	n.Unlock()

	v, ok = n.Value()
	if !ok || v != "v2" {
		t.Fatalf("Value() after SetValue = (%q, %v), want (v2, true)", v, ok)
	}
}

func TestWeakValueReachableUntilCollected(t *testing.T) {
	n := New[int, *int](1, 1, new(int), 1, Weak, 0)

	v, ok := n.Value()
	if !ok || v == nil {
		t.Fatalf("Value() on a freshly created Weak node = (%v, %v), want a live pointer", v, ok)
	}

	runtime.KeepAlive(v)
}

func TestSetValueResurrectsAWeakNode(t *testing.T) {
	n := New[int, string](1, 1, "original", 1, Weak, 0)

	n.Lock()
	n.SetValue("resurrected")
	n.Unlock()

	v, ok := n.Value()
	if !ok || v != "resurrected" {
		t.Fatalf("Value() after resurrecting SetValue = (%q, %v), want (resurrected, true)", v, ok)
	}
}

func TestRegionStringIsHumanReadable(t *testing.T) {
	cases := map[Region]string{
		Window:         "window",
		MainProbation:  "main-probation",
		MainProtected:  "main-protected",
		Region(99):     "unknown",
	}
	for region, want := range cases {
		if got := region.String(); got != want {
			t.Fatalf("Region(%d).String() = %q, want %q", region, got, want)
		}
	}
}

func TestAccessDequeLinkFlagRoundTrips(t *testing.T) {
	n := New[int, string](1, 1, "v", 1, Strong, 0)

	if n.InAccessDeque() {
		t.Fatalf("InAccessDeque() = true before linking")
	}
	n.SetLinkedAccess(true)
	if !n.InAccessDeque() {
		t.Fatalf("InAccessDeque() = false after SetLinkedAccess(true)")
	}
	n.SetLinkedAccess(false)
	if n.InAccessDeque() {
		t.Fatalf("InAccessDeque() = true after SetLinkedAccess(false)")
	}
}
