package texcache

import "testing"

func TestLRUListOrder(t *testing.T) {
	l := newLRUList[string]()
	na := l.PushFront("a")
	l.PushFront("b")
	l.PushFront("c")

	if got, _ := l.Oldest(); got != "a" {
		t.Fatalf("Oldest = %q, want a", got)
	}

	l.MoveToFront(na)
	if got, _ := l.Oldest(); got != "b" {
		t.Fatalf("Oldest after touch = %q, want b", got)
	}

	var order []string
	l.Walk(func(k string) bool {
		order = append(order, k)
		return true
	})
	want := []string{"b", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("walk order = %v, want %v", order, want)
		}
	}
}

func TestLRUListRemove(t *testing.T) {
	l := newLRUList[int]()
	n1 := l.PushFront(1)
	n2 := l.PushFront(2)
	l.PushFront(3)

	l.Remove(n2)
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if got, _ := l.Oldest(); got != 1 {
		t.Fatalf("Oldest = %d, want 1", got)
	}

	l.Remove(n1)
	if got, _ := l.Oldest(); got != 3 {
		t.Fatalf("Oldest = %d, want 3", got)
	}

	l.Clear()
	if _, ok := l.Oldest(); ok || l.Len() != 0 {
		t.Fatal("Clear left residue")
	}
}
