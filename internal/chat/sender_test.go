package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type lineLog struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (l *lineLog) write(target, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("broken pipe")
	}
	l.lines = append(l.lines, target+" "+line)
	return nil
}

func (l *lineLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func waitForLines(t *testing.T, l *lineLog, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := l.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, have %v", n, l.snapshot())
	return nil
}

func TestSenderFIFO(t *testing.T) {
	log := &lineLog{}
	s := NewSender(log.write, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 1; i <= 5; i++ {
		target := "#a"
		if i%2 == 0 {
			target = "bob"
		}
		if err := s.Enqueue(target, fmt.Sprintf("%d) item", i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	got := waitForLines(t, log, 5)
	want := []string{"#a 1) item", "bob 2) item", "#a 3) item", "bob 4) item", "#a 5) item"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSenderSplitsMultiline(t *testing.T) {
	log := &lineLog{}
	s := NewSender(log.write, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	if err := s.Enqueue("#a", "first\nsecond"); err != nil {
		t.Fatal(err)
	}
	got := waitForLines(t, log, 2)
	if got[0] != "#a first" || got[1] != "#a second" {
		t.Errorf("got %q", got)
	}
}

func TestSenderThrottles(t *testing.T) {
	log := &lineLog{}
	s := NewSender(log.write, 20, 1) // one line every 50ms after the first
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_ = s.Enqueue("#a", "x")
	}
	waitForLines(t, log, 3)
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 lines at 20/s took %v, expected throttling", elapsed)
	}
}

func TestSenderStop(t *testing.T) {
	s := NewSender((&lineLog{}).write, 0, 1)
	s.Stop()
	s.Stop() // idempotent
	for i := 0; i < 300; i++ {
		if err := s.Enqueue("#a", "x"); errors.Is(err, ErrSenderClosed) {
			return
		}
	}
	t.Fatal("expected ErrSenderClosed once the queue fills after Stop")
}

func TestSenderSurvivesWriteErrors(t *testing.T) {
	log := &lineLog{fail: true}
	s := NewSender(log.write, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	_ = s.Enqueue("#a", "lost")
	time.Sleep(20 * time.Millisecond)
	log.mu.Lock()
	log.fail = false
	log.mu.Unlock()
	_ = s.Enqueue("#a", "kept")

	got := waitForLines(t, log, 1)
	if got[0] != "#a kept" {
		t.Errorf("got %q", got)
	}
}
