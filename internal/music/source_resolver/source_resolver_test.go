package source_resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/keshon/domme-music/internal/music/sources"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls atomic.Int32
	ids   []string
	delay time.Duration
	err   error
	empty bool
}

func (f *fakeLoader) LoadTracks(_ context.Context, id string) ([]sources.Track, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	return []sources.Track{{Title: id, Encoded: "enc:" + id}}, nil
}

func newResolver(l Loader, cache bool) *SourceResolver {
	return New(l, Config{
		DefaultSource: sources.SourceYouTube,
		CacheEnabled:  cache,
		CacheSize:     10,
		CacheTTL:      time.Minute,
		Logger:        zerolog.Nop(),
	})
}

func TestIdentifier(t *testing.T) {
	r := newResolver(&fakeLoader{}, false)

	tests := []struct {
		name, input, source, want string
		wantErr                   error
	}{
		{"title search", "never gonna", "", "ytsearch:never gonna", nil},
		{"auto keyword", "never gonna", "auto", "ytsearch:never gonna", nil},
		{"youtube url cleaned", "https://www.youtube.com/watch?v=abc&t=5", "", "https://www.youtube.com/watch?v=abc", nil},
		{"youtube short url", "https://youtu.be/abc?t=5", "", "https://youtu.be/abc", nil},
		{"soundcloud url", "https://soundcloud.com/a/b", "", "https://soundcloud.com/a/b", nil},
		{"radio fallback", "https://stream.example.com/live.mp3", "", "https://stream.example.com/live.mp3", nil},
		{"soundcloud search", "lofi", "soundcloud", "scsearch:lofi", nil},
		{"unknown source", "lofi", "bandcamp", "", ErrUnknownSource},
		{"radio search", "lofi", "radio", "", ErrSearchNotSupported},
		{"mismatch", "https://soundcloud.com/a/b", "youtube", "", ErrSourceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Identifier(tt.input, tt.source)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnknownDefaultSourceFallsBackToYouTube(t *testing.T) {
	r := New(&fakeLoader{}, Config{DefaultSource: "radio", Logger: zerolog.Nop()})
	got, err := r.Identifier("abc", "")
	if err != nil || got != "ytsearch:abc" {
		t.Errorf("Identifier = %q, %v", got, err)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	l := &fakeLoader{}
	r := newResolver(l, true)
	tracks, err := r.Resolve(context.Background(), "   ")
	if err != nil || len(tracks) != 0 {
		t.Errorf("Resolve(blank) = %v, %v", tracks, err)
	}
	if l.calls.Load() != 0 {
		t.Error("blank query reached the loader")
	}
}

func TestResolveCachesNonEmptyResults(t *testing.T) {
	l := &fakeLoader{}
	r := newResolver(l, true)
	ctx := context.Background()

	for range 3 {
		tracks, err := r.Resolve(ctx, "song")
		if err != nil || len(tracks) != 1 {
			t.Fatalf("Resolve = %v, %v", tracks, err)
		}
	}
	if got := l.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
}

func TestResolveDoesNotCacheEmptyOrFailed(t *testing.T) {
	l := &fakeLoader{empty: true}
	r := newResolver(l, true)
	ctx := context.Background()

	r.Resolve(ctx, "nothing")
	r.Resolve(ctx, "nothing")
	if got := l.calls.Load(); got != 2 {
		t.Errorf("empty result was cached (calls = %d)", got)
	}

	boom := errors.New("node down")
	l.empty, l.err = false, boom
	if _, err := r.Resolve(ctx, "fails"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	l.err = nil
	if tracks, err := r.Resolve(ctx, "fails"); err != nil || len(tracks) != 1 {
		t.Errorf("retry after failure = %v, %v", tracks, err)
	}
}

func TestResolveCopiesCachedSlice(t *testing.T) {
	r := newResolver(&fakeLoader{}, true)
	ctx := context.Background()

	first, _ := r.Resolve(ctx, "song")
	first[0].Title = "mutated"
	second, _ := r.Resolve(ctx, "song")
	if second[0].Title == "mutated" {
		t.Error("cached tracks were mutated through a returned slice")
	}
}

func TestResolveDeduplicatesConcurrentLoads(t *testing.T) {
	l := &fakeLoader{delay: 50 * time.Millisecond}
	r := newResolver(l, false)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "same"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := l.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
}
