package playback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// ─── speech engine ──────────────────────────────────────────────────────────

type spoken struct {
	u    Utterance
	done func(error)
}

type fakeEngine struct {
	mu      sync.Mutex
	spoken  []spoken
	cancels int
}

func (e *fakeEngine) Speak(u Utterance, done func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, spoken{u: u, done: done})
}

func (e *fakeEngine) Cancel() {
	e.mu.Lock()
	e.cancels++
	e.mu.Unlock()
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spoken)
}

func (e *fakeEngine) last(t *testing.T) spoken {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.spoken) == 0 {
		t.Fatal("nothing spoken")
	}
	return e.spoken[len(e.spoken)-1]
}

func (e *fakeEngine) at(i int) spoken {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spoken[i]
}

// finish completes the most recent utterance successfully.
func (e *fakeEngine) finish(t *testing.T) Utterance {
	t.Helper()
	s := e.last(t)
	s.done(nil)
	return s.u
}

// ─── clock ──────────────────────────────────────────────────────────────────

type fakeTimer struct {
	clk     *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ─── session store ──────────────────────────────────────────────────────────

type fakeStore struct {
	mu        sync.Mutex
	created   []string
	attempts  []QuizAttempt
	createErr error
	recordErr error
	// block, when non-nil, holds CreateSession until it is closed.
	block chan struct{}
}

func (s *fakeStore) CreateSession(ctx context.Context, text, title string) (Session, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return Session{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.created = append(s.created, title)
	return Session{ID: fmt.Sprintf("s%d", len(s.created)), Title: title, Content: text, CreatedAt: time.Now()}, nil
}

func (s *fakeStore) RecordQuizAttempt(_ context.Context, a QuizAttempt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	if s.recordErr != nil {
		return "", s.recordErr
	}
	return fmt.Sprintf("a%d", len(s.attempts)), nil
}

func (s *fakeStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// ─── quiz generator ─────────────────────────────────────────────────────────

type fakeGen struct {
	mu       sync.Mutex
	excerpts []string
	err      error
	quiz     *Quiz
}

func (g *fakeGen) Generate(_ context.Context, excerpt string, _ Difficulty) (Quiz, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.excerpts = append(g.excerpts, excerpt)
	if g.err != nil {
		return Quiz{}, g.err
	}
	if g.quiz != nil {
		return *g.quiz, nil
	}
	return sampleQuiz(), nil
}

func (g *fakeGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.excerpts)
}

func sampleQuiz() Quiz {
	return Quiz{
		Question:    "What is discussed?",
		Options:     map[Key]string{KeyA: "alpha", KeyB: "beta", KeyC: "gamma", KeyD: "delta"},
		CorrectKey:  KeyB,
		Explanation: "beta is mentioned",
	}
}

var errBoom = errors.New("boom")

// ─── harness ────────────────────────────────────────────────────────────────

type harness struct {
	c      *Coordinator
	engine *fakeEngine
	clock  *fakeClock
	store  *fakeStore
	gen    *fakeGen
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{engine: &fakeEngine{}, clock: &fakeClock{}, store: &fakeStore{}, gen: &fakeGen{}}
	opts := Options{
		Store:     h.store,
		Generator: h.gen,
		Engine:    h.engine,
		Clock:     h.clock,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}
