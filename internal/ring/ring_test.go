package ring

import "testing"

func TestPushPopOrder(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 4; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed on empty ring", i)
		}
	}
	for i := 1; i <= 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d,%v want %d,true", v, ok, i)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("Pop() on empty ring returned ok")
	}
}

func TestPushFullReturnsFalse(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 4; i++ {
		r.Push(i)
	}
	if r.Push(5) {
		t.Fatalf("Push() on full ring returned true")
	}
	if !r.IsFull() {
		t.Fatalf("IsFull() = false, want true")
	}
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := New[int](5)
	if r.Cap() != 8 {
		t.Fatalf("Cap() = %d, want 8", r.Cap())
	}
}

func TestReadBufferDropsOnFull(t *testing.T) {
	b := NewReadBuffer[int](2)
	if !b.Add(1) || !b.Add(2) {
		t.Fatalf("Add() failed on non-full buffer")
	}
	if b.Add(3) {
		t.Fatalf("Add() on full read buffer should report dropped")
	}
	var got []int
	n := b.Drain(10, func(v int) { got = append(got, v) })
	if n != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Drain() = %d,%v want 2,[1 2]", n, got)
	}
}

func TestWriteBufferDrainRespectsMax(t *testing.T) {
	b := NewWriteBuffer[int](8)
	for i := 0; i < 5; i++ {
		b.Add(i)
	}
	var got []int
	n := b.Drain(3, func(v int) { got = append(got, v) })
	if n != 3 {
		t.Fatalf("Drain(3) returned %d, want 3", n)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() after partial drain = %d, want 2", b.Len())
	}
}
