package kafkadriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/paneq/karafka/internal/messages"
)

func TestDiffPartitions(t *testing.T) {
	a := map[string][]int32{"orders": {0, 1, 2}}
	b := map[string][]int32{"orders": {1}}

	missing := diffPartitions(a, b)
	if len(missing["orders"]) != 2 {
		t.Fatalf("expected 2 missing partitions, got %v", missing["orders"])
	}
}

func TestDiffPartitions_NewTopic(t *testing.T) {
	a := map[string][]int32{"orders": {0}}
	b := map[string][]int32{}

	missing := diffPartitions(a, b)
	if len(missing["orders"]) != 1 || missing["orders"][0] != 0 {
		t.Fatalf("unexpected diff: %v", missing)
	}
}

func TestMapSaramaError_KnownCodes(t *testing.T) {
	cases := []struct {
		code sarama.KError
		want ErrorCode
	}{
		{sarama.KError(3), ErrUnknownTopicOrPart},
		{sarama.KError(7), ErrTransport},
		{sarama.KError(13), ErrNetworkException},
		{sarama.KError(14), ErrCoordinatorLoadInProgress},
		{sarama.KError(27), ErrAssignmentLost},
	}
	for _, c := range cases {
		de := mapSaramaError(c.code)
		if de == nil {
			t.Fatalf("code %d: expected mapped error, got nil", c.code)
		}
		if de.Code != c.want {
			t.Fatalf("code %d: got %s, want %s", c.code, de.Code, c.want)
		}
	}
}

func TestMapSaramaError_Unrecognized(t *testing.T) {
	if de := mapSaramaError(errors.New("boom")); de != nil {
		t.Fatalf("expected nil for unclassified error, got %v", de)
	}
}

func TestToHeaderMap(t *testing.T) {
	if got := toHeaderMap(nil); got != nil {
		t.Fatalf("expected nil for empty headers, got %v", got)
	}
	src := []*sarama.RecordHeader{{Key: []byte("trace-id"), Value: []byte("abc")}}
	got := toHeaderMap(src)
	if string(got["trace-id"]) != "abc" {
		t.Fatalf("unexpected header map: %v", got)
	}
}

func TestSaramaDriver_PollTimeout(t *testing.T) {
	d := &SaramaDriver{
		recCh:   make(chan messages.RawRecord),
		errCh:   make(chan error),
		fatalCh: make(chan error),
	}
	rec, err := d.Poll(context.Background(), 10*time.Millisecond)
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) on timeout, got (%v, %v)", rec, err)
	}
}

func TestSaramaDriver_PollDeliversRecord(t *testing.T) {
	d := &SaramaDriver{
		recCh:   make(chan messages.RawRecord, 1),
		errCh:   make(chan error),
		fatalCh: make(chan error),
	}
	d.recCh <- messages.RawRecord{Topic: "orders", Partition: 0, Offset: 5}

	rec, err := d.Poll(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.Topic != "orders" || rec.Offset != 5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSaramaDriver_AssignmentLostReflectsCleanup(t *testing.T) {
	d := &SaramaDriver{lastClaims: map[string][]int32{}}
	if d.AssignmentLost() {
		t.Fatal("expected false before any cleanup")
	}
	d.mu.Lock()
	d.assignmentLost = true
	d.mu.Unlock()
	if !d.AssignmentLost() {
		t.Fatal("expected true after cleanup marks assignment lost")
	}
}
