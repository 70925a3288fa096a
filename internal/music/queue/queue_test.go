package queue

import (
	"fmt"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/sources"
)

func track(title string) sources.Track {
	return sources.Track{Title: title, URI: "https://example.com/" + title, Encoded: "enc-" + title}
}

func titles(tracks []sources.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestEnqueueCapacity(t *testing.T) {
	q := New(2)
	if err := q.Enqueue(track("a")); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := q.EnqueueFront(track("b")); err != nil {
		t.Fatalf("EnqueueFront b: %v", err)
	}

	if err := q.Enqueue(track("c")); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Enqueue past capacity = %v, want ErrCapacityExceeded", err)
	}
	if err := q.EnqueueFront(track("d")); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("EnqueueFront past capacity = %v, want ErrCapacityExceeded", err)
	}

	if got, want := titles(q.Tracks()), []string{"b", "a"}; !slices.Equal(got, want) {
		t.Errorf("Tracks = %v, want %v (failed inserts must not change the queue)", got, want)
	}
}

func TestSizeTracksEnqueuesMinusRemovals(t *testing.T) {
	q := New(50)
	added, removed := 0, 0
	for i := range 30 {
		if err := q.Enqueue(track(fmt.Sprint(i))); err == nil {
			added++
		}
		if i%3 == 0 {
			if _, err := q.RemoveAt(1); err == nil {
				removed++
			}
		}
		if _, err := q.RemoveAt(q.Size() + 1); err == nil {
			t.Fatal("RemoveAt(size+1) succeeded")
		}
	}
	if q.Size() != added-removed {
		t.Errorf("Size = %d, want %d", q.Size(), added-removed)
	}
}

func TestRemoveAtDrainsInOrder(t *testing.T) {
	q := New(10)
	for _, name := range []string{"a", "b", "c", "d"} {
		_ = q.Enqueue(track(name))
	}

	var got []string
	for !q.IsEmpty() {
		tr, err := q.RemoveAt(1)
		if err != nil {
			t.Fatalf("RemoveAt(1): %v", err)
		}
		got = append(got, tr.Title)
	}
	if want := []string{"a", "b", "c", "d"}; !slices.Equal(got, want) {
		t.Errorf("drain order = %v, want %v", got, want)
	}
}

func TestRemoveAtInvalidPosition(t *testing.T) {
	q := New(10)
	_ = q.Enqueue(track("a"))

	for _, pos := range []int{-1, 0, 2, 100} {
		if _, err := q.RemoveAt(pos); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("RemoveAt(%d) = %v, want ErrInvalidPosition", pos, err)
		}
	}
	if q.Size() != 1 {
		t.Errorf("Size = %d after invalid removals, want 1", q.Size())
	}
}

func TestRemoveMiddleShiftsPositions(t *testing.T) {
	q := New(10)
	for _, name := range []string{"first", "second", "third"} {
		_ = q.Enqueue(track(name))
	}

	removed, err := q.RemoveAt(2)
	if err != nil {
		t.Fatalf("RemoveAt(2): %v", err)
	}
	if removed.Title != "second" {
		t.Errorf("removed %q, want second", removed.Title)
	}

	page, err := q.Snapshot(1, 10)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got, want := titles(page.Tracks), []string{"first", "third"}; !slices.Equal(got, want) {
		t.Errorf("page = %v, want %v", got, want)
	}
}

func TestDequeueNextLoopOff(t *testing.T) {
	q := New(10)
	if _, ok := q.DequeueNext(); ok {
		t.Fatal("DequeueNext on empty queue returned a track")
	}

	_ = q.Enqueue(track("a"))
	_ = q.Enqueue(track("b"))
	for _, want := range []string{"a", "b"} {
		got, ok := q.DequeueNext()
		if !ok || got.Title != want {
			t.Errorf("DequeueNext = %q,%v want %q", got.Title, ok, want)
		}
	}
	if _, ok := q.DequeueNext(); ok {
		t.Error("DequeueNext after drain returned a track")
	}
}

func TestDequeueNextLoopCurrent(t *testing.T) {
	q := New(10)
	_ = q.Enqueue(track("a"))
	_ = q.Enqueue(track("b"))

	first, _ := q.DequeueNext()
	if err := q.SetLoopMode(LoopCurrent); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		got, ok := q.DequeueNext()
		if !ok || got.Title != first.Title {
			t.Fatalf("DequeueNext under LoopCurrent = %q, want %q", got.Title, first.Title)
		}
	}
	if q.Size() != 1 {
		t.Errorf("Size = %d, want 1 (LoopCurrent must not consume)", q.Size())
	}

	next, ok := q.Advance()
	if !ok || next.Title != "b" {
		t.Errorf("Advance = %q, want b", next.Title)
	}
	if got, _ := q.DequeueNext(); got.Title != "b" {
		t.Errorf("after Advance DequeueNext = %q, want b", got.Title)
	}
}

func TestLoopCurrentSurvivesClear(t *testing.T) {
	q := New(10)
	q.MarkPlayed(track("now"))
	_ = q.SetLoopMode(LoopCurrent)
	_ = q.Enqueue(track("later"))

	q.Clear()
	q.Clear()

	if !q.IsEmpty() {
		t.Fatal("queue not empty after Clear")
	}
	if got, ok := q.DequeueNext(); !ok || got.Title != "now" {
		t.Errorf("DequeueNext = %q,%v want now", got.Title, ok)
	}

	q.Forget()
	if _, ok := q.DequeueNext(); ok {
		t.Error("DequeueNext after Forget returned a track")
	}
}

func TestShufflePreservesTracks(t *testing.T) {
	q := New(100)
	q.MarkPlayed(track("playing"))
	var want []string
	for i := range 20 {
		name := fmt.Sprintf("t%02d", i)
		want = append(want, name)
		_ = q.Enqueue(track(name))
	}

	q.Shuffle()

	got := titles(q.Tracks())
	if slices.Contains(got, "playing") {
		t.Error("shuffle pulled the playing track into the queue")
	}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("shuffled multiset = %v, want %v", got, want)
	}
}

func TestShuffleUsesInjectedPermutation(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	q := New(10, WithShuffler(reverse))
	for _, name := range []string{"a", "b", "c"} {
		_ = q.Enqueue(track(name))
	}
	q.Shuffle()
	if got, want := titles(q.Tracks()), []string{"c", "b", "a"}; !slices.Equal(got, want) {
		t.Errorf("Tracks = %v, want %v", got, want)
	}
}

func TestSnapshotPaging(t *testing.T) {
	q := New(100)
	for i := 1; i <= 25; i++ {
		_ = q.Enqueue(track(fmt.Sprint(i)))
	}

	tests := []struct {
		page      int
		wantLen   int
		wantStart int
		wantErr   bool
	}{
		{page: 1, wantLen: 10, wantStart: 1},
		{page: 2, wantLen: 10, wantStart: 11},
		{page: 3, wantLen: 5, wantStart: 21},
		{page: 0, wantErr: true},
		{page: 4, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page%d", tt.page), func(t *testing.T) {
			p, err := q.Snapshot(tt.page, 10)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPage) {
					t.Fatalf("Snapshot(%d) err = %v, want ErrInvalidPage", tt.page, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Snapshot(%d): %v", tt.page, err)
			}
			if len(p.Tracks) != tt.wantLen || p.Start != tt.wantStart || p.Pages != 3 || p.Total != 25 {
				t.Errorf("Snapshot(%d) = len %d start %d pages %d total %d", tt.page, len(p.Tracks), p.Start, p.Pages, p.Total)
			}
			if p.Tracks[0].Title != fmt.Sprint(tt.wantStart) {
				t.Errorf("first track = %q, want %d", p.Tracks[0].Title, tt.wantStart)
			}
		})
	}

	empty := New(10)
	if p, err := empty.Snapshot(1, 10); err != nil || len(p.Tracks) != 0 {
		t.Errorf("empty Snapshot(1) = %v, %v", p, err)
	}
}

func TestSetLoopModeRejectsUnknown(t *testing.T) {
	q := New(10)
	if err := q.SetLoopMode(LoopMode(42)); !errors.Is(err, ErrInvalidLoopMode) {
		t.Errorf("SetLoopMode(42) = %v, want ErrInvalidLoopMode", err)
	}
	if q.LoopMode() != LoopOff {
		t.Errorf("LoopMode = %v, want off", q.LoopMode())
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := map[string]LoopMode{
		"off":   LoopOff,
		"TRACK": LoopCurrent,
		"queue": LoopAll,
		" all ": LoopAll,
	}
	for in, want := range tests {
		got, err := ParseLoopMode(in)
		if err != nil || got != want {
			t.Errorf("ParseLoopMode(%q) = %v, %v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLoopMode("sideways"); !errors.Is(err, ErrInvalidLoopMode) {
		t.Errorf("ParseLoopMode(sideways) err = %v", err)
	}
}

func TestCheckpointRollback(t *testing.T) {
	q := New(10)
	_ = q.Enqueue(track("a"))
	_ = q.Enqueue(track("b"))
	cp := q.Checkpoint()

	q.DequeueNext()
	_ = q.SetLoopMode(LoopAll)
	_ = q.EnqueueFront(track("x"))

	q.Rollback(cp)
	if got, want := titles(q.Tracks()), []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("Tracks after rollback = %v, want %v", got, want)
	}
	if q.LoopMode() != LoopOff {
		t.Errorf("LoopMode after rollback = %v", q.LoopMode())
	}
}

func TestReseedRespectsCapacity(t *testing.T) {
	q := New(2)
	n := q.Reseed([]sources.Track{track("a"), track("b"), track("c")})
	if n != 2 || q.Size() != 2 {
		t.Errorf("Reseed added %d, size %d; want 2, 2", n, q.Size())
	}
}
