package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datallboy/godepot/internal/domain"
)

func TestControlChannelDeliversInOrder(t *testing.T) {
	owner, worker := NewControlChannel(4)
	ctx := context.Background()

	if err := owner.Download(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if err := owner.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := owner.Start(ctx); err != nil {
		t.Fatal(err)
	}

	want := []Message{{Kind: MsgDownload, Target: 42}, {Kind: MsgStop}, {Kind: MsgStart}}
	for i, w := range want {
		got, ok, err := worker.Poll()
		if err != nil || !ok {
			t.Fatalf("poll %d: ok=%v err=%v", i, ok, err)
		}
		if got != w {
			t.Fatalf("poll %d = %v, want %v", i, got, w)
		}
	}

	if _, ok, err := worker.Poll(); ok || err != nil {
		t.Fatalf("empty poll: ok=%v err=%v", ok, err)
	}
}

func TestControlChannelCloseDrainsFirst(t *testing.T) {
	owner, worker := NewControlChannel(4)
	if err := owner.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	owner.Close()
	owner.Close()

	if m, ok, err := worker.Poll(); !ok || err != nil || m.Kind != MsgStop {
		t.Fatalf("queued command lost: %v %v %v", m, ok, err)
	}
	_, _, err := worker.Poll()
	if !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("err = %v, want channel closed", err)
	}

	if err := owner.Start(context.Background()); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("send after close = %v", err)
	}
}

func TestQueryMatchesSequence(t *testing.T) {
	owner, worker := NewControlChannel(4)

	// A stale answer from an abandoned query must be skipped.
	worker.Reply(Reply{Seq: 99, Downloading: false})

	done := make(chan bool, 1)
	go func() {
		v, err := owner.Query(context.Background())
		if err != nil {
			t.Errorf("Query: %v", err)
		}
		done <- v
	}()

	var m Message
	for {
		var ok bool
		var err error
		m, ok, err = worker.Poll()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if m.Kind != MsgQuery {
		t.Fatalf("got %v, want query", m)
	}
	worker.Reply(Reply{Seq: m.Seq, Downloading: true})

	select {
	case v := <-done:
		if !v {
			t.Fatal("Query returned stale reply")
		}
	case <-time.After(time.Second):
		t.Fatal("Query did not return")
	}
}

func TestQueryAfterStaleRepliesFillBuffer(t *testing.T) {
	owner, worker := NewControlChannel(1)

	// Answers to abandoned queries occupy every reply slot.
	for seq := uint64(90); ; seq++ {
		if !worker.Reply(Reply{Seq: seq}) {
			break
		}
	}

	done := make(chan bool, 1)
	go func() {
		v, err := owner.Query(context.Background())
		if err != nil {
			t.Errorf("Query: %v", err)
		}
		done <- v
	}()

	var m Message
	for {
		var ok bool
		var err error
		m, ok, err = worker.Poll()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !worker.Reply(Reply{Seq: m.Seq, Downloading: true}) {
		t.Fatal("fresh reply was dropped")
	}

	select {
	case v := <-done:
		if !v {
			t.Fatal("Query returned stale reply")
		}
	case <-time.After(time.Second):
		t.Fatal("Query did not return")
	}
}

func TestQueryTimeout(t *testing.T) {
	owner, _ := NewControlChannel(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := owner.Query(ctx)
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("err = %v, want ErrQueryTimeout", err)
	}
}

func TestQueryAfterHalt(t *testing.T) {
	owner, worker := NewControlChannel(1)
	worker.Halt()
	worker.Halt()

	if _, err := owner.Query(context.Background()); !errors.Is(err, ErrWorkerHalted) {
		t.Fatalf("err = %v, want ErrWorkerHalted", err)
	}
	select {
	case <-owner.Halted():
	default:
		t.Fatal("Halted channel not closed")
	}
}
