package msgqueue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/chronologos/mediaplug/internal/envelope"
)

func msg(i int) *envelope.Envelope {
	return envelope.New(envelope.ClassMedia, fmt.Sprintf("m%d", i))
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.PushBack(msg(i))
	}
	for i := 0; i < 5; i++ {
		e := q.PopFront()
		if e == nil || e.Name() != fmt.Sprintf("m%d", i) {
			t.Fatalf("pop %d = %v", i, e)
		}
	}
	if e := q.PopFront(); e != nil {
		t.Fatalf("pop on empty = %v", e)
	}
}

func TestGrowPreservesOrder(t *testing.T) {
	q := New()
	// Offset head so the ring wraps before growing.
	for i := 0; i < 10; i++ {
		q.PushBack(msg(-1))
		q.PopFront()
	}
	n := minCapacity*4 + 3
	for i := 0; i < n; i++ {
		q.PushBack(msg(i))
	}
	got := q.Drain()
	if len(got) != n {
		t.Fatalf("drained %d, want %d", len(got), n)
	}
	for i, e := range got {
		if e.Name() != fmt.Sprintf("m%d", i) {
			t.Fatalf("entry %d = %s", i, e.Name())
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len after drain = %d", q.Len())
	}
}

func TestReadySignal(t *testing.T) {
	q := New()
	select {
	case <-q.Ready():
		t.Fatal("signal before push")
	default:
	}
	q.PushBack(msg(0))
	q.PushBack(msg(1))
	select {
	case <-q.Ready():
	default:
		t.Fatal("no signal after push")
	}
}

func TestReset(t *testing.T) {
	q := New()
	q.PushBack(msg(0))
	q.Reset()
	if q.Len() != 0 || q.PopFront() != nil {
		t.Fatal("queue not empty after Reset")
	}
}

func TestConcurrentPush(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.PushBack(msg(i))
			}
		}()
	}
	wg.Wait()
	if q.Len() != 800 {
		t.Fatalf("Len = %d, want 800", q.Len())
	}
}
