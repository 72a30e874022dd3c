package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerRunsSubmittedTasks(t *testing.T) {
	w := NewWorker(nil)
	w.StartWithContext(context.Background())

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		w.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	deadline := time.Now().Add(2 * time.Second)
	for ran.Load() != 20 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	if got := ran.Load(); got != 20 {
		t.Fatalf("ran %d of 20", got)
	}
}

func TestWorkerDrainsOnStop(t *testing.T) {
	w := NewWorker(nil)
	w.StartWithContext(context.Background())
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		w.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	w.Stop()
	if got := ran.Load(); got != 50 {
		t.Fatalf("drained %d of 50", got)
	}
}

func TestWorkerSurvivesTaskError(t *testing.T) {
	w := NewWorker(nil)
	w.StartWithContext(context.Background())
	var ok atomic.Bool
	w.Submit("boom", func(ctx context.Context) error { return errors.New("boom") })
	w.Submit("after", func(ctx context.Context) error { ok.Store(true); return nil })
	w.Stop()
	if !ok.Load() {
		t.Fatal("task after failure did not run")
	}
}

func TestAsyncSMSSenderDelivers(t *testing.T) {
	w := NewWorker(nil)
	w.StartWithContext(context.Background())
	var got atomic.Value
	sender := NewAsyncSMSSender(w, func(ctx context.Context, phone, message string) error {
		got.Store(phone + "|" + message)
		return nil
	})
	if err := sender.Send(context.Background(), "+15551234567", "code 123456"); err != nil {
		t.Fatalf("send: %v", err)
	}
	w.Stop()
	if got.Load() != "+15551234567|code 123456" {
		t.Fatalf("delivery: %v", got.Load())
	}
}
