package jobs

import (
	"testing"
	"time"
)

func TestQueue_PushPopComplete(t *testing.T) {
	q := New()
	q.Push("g1", &Job{ID: 1, Kind: Consume})

	job, ok := q.Pop("g1")
	if !ok || job.ID != 1 {
		t.Fatalf("unexpected pop result: %+v %v", job, ok)
	}
	if q.Empty("g1") {
		t.Fatal("expected not empty while job in flight")
	}
	q.Complete("g1", job)
	if !q.Empty("g1") {
		t.Fatal("expected empty after complete")
	}
}

func TestQueue_WaitBlocksUntilDrained(t *testing.T) {
	q := New()
	q.Push("g1", &Job{ID: 1})

	done := make(chan struct{})
	go func() {
		q.Wait("g1")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected Wait to block while job pending")
	case <-time.After(20 * time.Millisecond):
	}

	job, ok := q.Pop("g1")
	if !ok {
		t.Fatal("expected job")
	}
	q.Complete("g1", job)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Wait to unblock after complete")
	}
}

func TestQueue_ClearPreservesInFlight(t *testing.T) {
	q := New()
	q.Push("g1", &Job{ID: 1})
	q.Push("g1", &Job{ID: 2})

	job, ok := q.Pop("g1")
	if !ok {
		t.Fatal("expected job")
	}
	q.Clear("g1")
	if q.Empty("g1") {
		t.Fatal("expected not empty: one job still in flight")
	}
	q.Complete("g1", job)
	if !q.Empty("g1") {
		t.Fatal("expected empty once the in-flight job completes")
	}
}

func TestQueue_PopAnyAcrossGroups(t *testing.T) {
	q := New()
	q.Push("g2", &Job{ID: 42})

	job, gid, ok := q.PopAny([]string{"g1", "g2"})
	if !ok || gid != "g2" || job.ID != 42 {
		t.Fatalf("unexpected result: %+v %s %v", job, gid, ok)
	}
}

func TestQueue_CloseUnblocksPop(t *testing.T) {
	q := New()
	done := make(chan bool)
	go func() {
		_, ok := q.Pop("g1")
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected sentinel (ok=false) after close")
		}
	case <-time.After(time.Second):
		t.Fatal("expected Pop to unblock after Close")
	}
}
