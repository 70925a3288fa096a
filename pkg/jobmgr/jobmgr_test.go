package jobmgr

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

type statusLog struct {
	mu  sync.Mutex
	got []string
}

func (s *statusLog) report(msg string) {
	s.mu.Lock()
	s.got = append(s.got, msg)
	s.mu.Unlock()
}

func (s *statusLog) has(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.got, msg)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartAsyncRunsAndForgets(t *testing.T) {
	log := &statusLog{}
	m := NewManager(log.report)

	done := make(chan struct{})
	if err := m.StartAsync("idle:1", func(context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	<-done

	eventually(t, "job removal", func() bool { return !m.Running("idle:1") })
	eventually(t, "done report", func() bool { return log.has("done:idle:1") })
	if !log.has("running:idle:1") {
		t.Error("running was not reported")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	m := NewManager(nil)
	block := make(chan struct{})
	defer close(block)

	if err := m.StartAsync("a", func(context.Context) error { <-block; return nil }); err != nil {
		t.Fatal(err)
	}
	if err := m.StartAsync("a", func(context.Context) error { return nil }); !errors.Is(err, ErrJobRunning) {
		t.Errorf("duplicate = %v, want ErrJobRunning", err)
	}
}

func TestStopBeforeDelayPreventsRun(t *testing.T) {
	log := &statusLog{}
	m := NewManager(log.report)

	ran := make(chan struct{}, 1)
	if err := m.StartAfter("idle:g", 50*time.Millisecond, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop("idle:g"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ran:
		t.Fatal("stopped job ran")
	case <-time.After(120 * time.Millisecond):
	}
	if !log.has("cancelled:idle:g") {
		t.Error("cancellation was not reported")
	}
	if err := m.Stop("idle:g"); !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("second stop = %v", err)
	}
}

func TestNameReusableAfterStop(t *testing.T) {
	m := NewManager(nil)
	block := make(chan struct{})
	defer close(block)

	_ = m.StartAfter("x", time.Hour, func(context.Context) error { return nil })
	_ = m.Stop("x")

	if err := m.StartAsync("x", func(context.Context) error { <-block; return nil }); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	// the cancelled first run must not remove the new entry
	time.Sleep(20 * time.Millisecond)
	if !m.Running("x") {
		t.Error("new job lost its entry")
	}
}

func TestErrorReportedAndListing(t *testing.T) {
	log := &statusLog{}
	m := NewManager(log.report)

	_ = m.StartAsync("bad", func(context.Context) error { return errors.New("backend timed out") })
	eventually(t, "error report", func() bool { return log.has("error:bad:backend timed out") })
	eventually(t, "failed job removal", func() bool { return !m.Running("bad") })

	block := make(chan struct{})
	_ = m.StartAsync("b", func(context.Context) error { <-block; return nil })
	_ = m.StartAfter("a", time.Hour, func(context.Context) error { return nil })

	if got := m.List(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("List = %v", got)
	}
	if got := m.Status(); got != "Running jobs: a, b" {
		t.Errorf("Status = %q", got)
	}

	m.StopAll()
	close(block)
	if got := m.Status(); got != "No jobs are running." {
		t.Errorf("Status after StopAll = %q", got)
	}
}

func TestRestartResetsTheCountdown(t *testing.T) {
	m := NewManager(nil)
	fired := make(chan time.Time, 2)
	fire := func(context.Context) error {
		fired <- time.Now()
		return nil
	}

	start := time.Now()
	if err := m.Restart("idle:g", 80*time.Millisecond, fire); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	firstDue, _ := m.Due("idle:g")
	if err := m.Restart("idle:g", 80*time.Millisecond, fire); err != nil {
		t.Fatal(err)
	}
	if due, ok := m.Due("idle:g"); !ok || !due.After(firstDue) {
		t.Errorf("Due after restart = %v, %v; want later than %v", due, ok, firstDue)
	}

	at := <-fired
	if at.Sub(start) < 110*time.Millisecond {
		t.Errorf("job fired after %s; the first timer was not replaced", at.Sub(start))
	}
	select {
	case <-fired:
		t.Error("replaced job also fired")
	case <-time.After(100 * time.Millisecond):
	}
}
