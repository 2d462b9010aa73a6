package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liuran001/TubeBot-Go/bot"
	logpkg "github.com/liuran001/TubeBot-Go/bot/logger"
)

type stubSearcher struct {
	results []bot.Candidate
	err     error
	calls   int
	limit   int
	block   bool
}

func (s *stubSearcher) Name() string { return "stub" }

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]bot.Candidate, error) {
	s.calls++
	s.limit = limit
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.results, s.err
}

func TestSearchKeepsProviderOrder(t *testing.T) {
	s := &stubSearcher{results: []bot.Candidate{{ID: "c"}, {ID: "a"}, {ID: ""}, {ID: "b"}}}
	r := New(s, 5, time.Second, logpkg.Discard())

	got := r.Search(context.Background(), "query", 5)
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
	if s.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", s.calls)
	}
}

func TestSearchClampsLimit(t *testing.T) {
	s := &stubSearcher{results: []bot.Candidate{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}}
	r := New(s, 3, time.Second, nil)

	if got := r.Search(context.Background(), "q", 50); len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if s.limit != 3 {
		t.Fatalf("provider asked for %d, want 3", s.limit)
	}
	if got := r.Search(context.Background(), "q", 2); len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}

func TestSearchProviderFailureIsEmpty(t *testing.T) {
	s := &stubSearcher{err: errors.New("boom")}
	r := New(s, 5, time.Second, logpkg.Discard())

	if got := r.Search(context.Background(), "q", 5); len(got) != 0 {
		t.Fatalf("expected empty result on failure, got %v", got)
	}
}

func TestSearchTimeout(t *testing.T) {
	s := &stubSearcher{block: true}
	r := New(s, 5, 20*time.Millisecond, logpkg.Discard())

	start := time.Now()
	if got := r.Search(context.Background(), "q", 5); len(got) != 0 {
		t.Fatalf("expected empty result on timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("search did not honour its timeout")
	}
}

func TestSearchBlankQuery(t *testing.T) {
	s := &stubSearcher{}
	r := New(s, 5, time.Second, nil)
	if got := r.Search(context.Background(), "  ", 5); got != nil {
		t.Fatalf("expected nil for blank query")
	}
	if s.calls != 0 {
		t.Fatalf("blank query must not reach the provider")
	}
}
