package scheduler

import (
	"testing"

	"github.com/paneq/karafka/internal/jobs"
)

type fakeQueue struct {
	pushed []uint64
}

func (q *fakeQueue) Push(gid string, job *jobs.Job) { q.pushed = append(q.pushed, job.ID) }

func TestFIFO_PreservesSubmissionOrder(t *testing.T) {
	q := &fakeQueue{}
	s := FIFO{}
	batch := []*jobs.Job{{ID: 3}, {ID: 1}, {ID: 2}}
	s.ScheduleConsumption(q, "g1", batch)

	want := []uint64{3, 1, 2}
	if len(q.pushed) != len(want) {
		t.Fatalf("unexpected push count: %v", q.pushed)
	}
	for i, id := range want {
		if q.pushed[i] != id {
			t.Fatalf("order mismatch at %d: got %d want %d", i, q.pushed[i], id)
		}
	}
}

func TestNew_DefaultFIFORegistered(t *testing.T) {
	s, ok := New("fifo")
	if !ok {
		t.Fatal("expected fifo policy registered")
	}
	if _, ok := s.(FIFO); !ok {
		t.Fatalf("expected FIFO implementation, got %T", s)
	}
}

func TestNew_UnknownPolicy(t *testing.T) {
	if _, ok := New("does-not-exist"); ok {
		t.Fatal("expected unknown policy to be absent")
	}
}
