package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var ctx = context.Background()

func start(t *testing.T, h *harness, text string, cursor int) {
	t.Helper()
	if err := h.c.Start(ctx, text, cursor); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// ─── start ──────────────────────────────────────────────────────────────────

func TestStart_EmptyContent(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		if err := h.c.Start(ctx, text, 0); !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("Start(%q): expected ErrEmptyContent, got %v", text, err)
		}
	}
	if len(h.store.created) != 0 {
		t.Fatal("no session should be created for empty content")
	}
}

func TestStart_SessionCreateError(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = errBoom

	err := h.c.Start(ctx, words(10), 0)
	var sce *SessionCreateError
	if !errors.As(err, &sce) {
		t.Fatalf("expected SessionCreateError, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Fatal("SessionCreateError should wrap the cause")
	}
	if s := h.c.Snapshot(); s.State != StateIdle || s.Playing {
		t.Fatalf("expected idle after failure, got %v", s.State)
	}
	if h.engine.count() != 0 {
		t.Fatal("nothing should be spoken")
	}

	// Not retried automatically; a second Start succeeds once the store recovers.
	h.store.createErr = nil
	start(t, h, words(10), 0)
	if s := h.c.Snapshot(); s.State != StatePlaying || s.SessionID != "s1" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestStart_DerivesTitle(t *testing.T) {
	h := newHarness(t)
	start(t, h, "Chapter One\nIt was a dark night.", 0)
	if h.store.created[0] != "Chapter One" {
		t.Fatalf("unexpected title %q", h.store.created[0])
	}
	if got := h.c.Snapshot().Title; got != "Chapter One" {
		t.Fatalf("snapshot title %q", got)
	}
}

func TestStart_ReusesSuppliedSession(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Session = &Session{ID: "existing", Title: "Imported"}
	})
	start(t, h, words(10), 0)
	if len(h.store.created) != 0 {
		t.Fatal("supplied session should be reused")
	}
	if got := h.c.Snapshot().SessionID; got != "existing" {
		t.Fatalf("expected existing session, got %q", got)
	}
}

func TestStart_NewTextCreatesNewSession(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(10), 0)
	h.c.Pause()
	start(t, h, "something else entirely", 0)
	if len(h.store.created) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(h.store.created))
	}
	if got := h.c.Snapshot().SessionID; got != "s2" {
		t.Fatalf("expected s2, got %q", got)
	}
}

func TestStart_WhilePlayingSameTextIsNoop(t *testing.T) {
	h := newHarness(t)
	text := words(120)
	start(t, h, text, 0)
	h.engine.finish(t)
	start(t, h, text, 0)
	if got := h.c.Snapshot().Cursor; got != 50 {
		t.Fatalf("cursor moved to %d", got)
	}
	if h.engine.count() != 2 {
		t.Fatalf("expected 2 utterances, got %d", h.engine.count())
	}
}

func TestStart_BusyWhileCreatingSession(t *testing.T) {
	h := newHarness(t)
	h.store.block = make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- h.c.Start(ctx, words(10), 0) }()

	waitFor(t, func() bool { return h.c.Snapshot().State == StateStarting })
	if err := h.c.Start(ctx, words(10), 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	h.c.TriggerQuiz()
	if h.gen.calls() != 0 {
		t.Fatal("quiz must not open while starting")
	}

	close(h.store.block)
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := h.c.Snapshot().State; got != StatePlaying {
		t.Fatalf("expected playing, got %v", got)
	}
}

// ─── chunking ───────────────────────────────────────────────────────────────

func TestChunks_120Words(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(120), 0)

	var sizes []int
	for h.c.Snapshot().Playing {
		u := h.engine.finish(t)
		sizes = append(sizes, len(strings.Fields(u.Text)))
	}
	if len(sizes) != 3 || sizes[0] != 50 || sizes[1] != 50 || sizes[2] != 20 {
		t.Fatalf("expected chunks [50 50 20], got %v", sizes)
	}
	s := h.c.Snapshot()
	if s.Playing || s.Cursor != 120 || s.State != StateFinished {
		t.Fatalf("unexpected end state %+v", s)
	}
	if h.clock.active() != 0 {
		t.Fatal("quiz timer should be disarmed after finishing")
	}
}

func TestChunks_ExhaustAnyLength(t *testing.T) {
	for _, n := range []int{1, 49, 50, 51, 99, 100, 101, 257} {
		h := newHarness(t)
		start(t, h, words(n), 0)
		for i := 0; h.c.Snapshot().Playing; i++ {
			if i > n {
				t.Fatalf("n=%d: playback did not terminate", n)
			}
			h.engine.finish(t)
		}
		if s := h.c.Snapshot(); s.Cursor != n || s.Playing {
			t.Fatalf("n=%d: cursor=%d playing=%v", n, s.Cursor, s.Playing)
		}
	}
}

func TestChunks_ShortTextSingleChunk(t *testing.T) {
	h := newHarness(t)
	start(t, h, "just a few words", 0)
	if u := h.engine.finish(t); u.Text != "just a few words" {
		t.Fatalf("unexpected utterance %q", u.Text)
	}
	if s := h.c.Snapshot(); s.State != StateFinished || s.Cursor != 4 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestStart_AtEndRestarts(t *testing.T) {
	h := newHarness(t)
	text := words(20)
	start(t, h, text, 0)
	h.engine.finish(t)
	start(t, h, text, 20)
	if u := h.engine.last(t).u; !strings.HasPrefix(u.Text, "w0 ") {
		t.Fatalf("expected restart from w0, got %q", u.Text)
	}
	if len(h.store.created) != 1 {
		t.Fatal("restart should keep the session")
	}
}

// ─── pause / resume ─────────────────────────────────────────────────────────

func TestPause_ResumeExactCursor(t *testing.T) {
	h := newHarness(t)
	text := words(200)
	start(t, h, text, 0)
	h.engine.finish(t)
	h.engine.finish(t)

	h.c.Pause()
	s := h.c.Snapshot()
	if s.Playing || s.State != StatePaused || s.Cursor != 100 {
		t.Fatalf("unexpected paused snapshot %+v", s)
	}
	if h.clock.active() != 0 {
		t.Fatal("pause should disarm the timer")
	}

	start(t, h, text, s.Cursor)
	if u := h.engine.last(t).u; !strings.HasPrefix(u.Text, "w100 ") {
		t.Fatalf("expected resume at w100, got %q", u.Text)
	}
}

func TestPause_Idempotent(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(60), 0)
	h.c.Pause()
	cancels := h.engine.cancels
	h.c.Pause()
	h.c.Pause()
	if h.engine.cancels != cancels {
		t.Fatal("second pause should not cancel again")
	}
}

func TestPause_StaleCompletionIgnored(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(120), 0)
	stale := h.engine.last(t)
	h.c.Pause()

	stale.done(nil)
	if got := h.c.Snapshot().Cursor; got != 0 {
		t.Fatalf("cancelled utterance advanced cursor to %d", got)
	}
}

func TestResume_UsesCurrentCursor(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(120), 0)
	h.engine.finish(t)
	h.c.Pause()
	if err := h.c.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if u := h.engine.last(t).u; !strings.HasPrefix(u.Text, "w50 ") {
		t.Fatalf("expected w50, got %q", u.Text)
	}
}

// ─── speed / voice ──────────────────────────────────────────────────────────

func TestChangeSpeed_RestartsCurrentChunk(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(120), 0)
	h.engine.finish(t)
	old := h.engine.last(t)

	if err := h.c.ChangeSpeed(1.5); err != nil {
		t.Fatalf("ChangeSpeed: %v", err)
	}
	u := h.engine.last(t).u
	if u.Rate != 1.5 || !strings.HasPrefix(u.Text, "w50 ") {
		t.Fatalf("expected chunk at w50 with rate 1.5, got %+v", u)
	}
	old.done(nil)
	if got := h.c.Snapshot().Cursor; got != 50 {
		t.Fatalf("stale completion advanced cursor to %d", got)
	}
}

func TestChangeSpeed_Invalid(t *testing.T) {
	h := newHarness(t)
	for _, r := range []float64{0, 0.49, 2.01, -1} {
		if err := h.c.ChangeSpeed(r); !errors.Is(err, ErrInvalidSpeed) {
			t.Fatalf("ChangeSpeed(%v): expected ErrInvalidSpeed, got %v", r, err)
		}
	}
}

func TestChangeVoice_WhilePausedDoesNotSpeak(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(120), 0)
	h.c.Pause()
	n := h.engine.count()
	h.c.ChangeVoice("en-GB")
	if h.engine.count() != n {
		t.Fatal("voice change while paused must not speak")
	}
	if err := h.c.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := h.engine.last(t).u.VoiceID; got != "en-GB" {
		t.Fatalf("expected voice en-GB, got %q", got)
	}
}

// ─── engine errors ──────────────────────────────────────────────────────────

func TestEngineError_PausesAtChunkStart(t *testing.T) {
	var mu sync.Mutex
	var notices []error
	h := newHarness(t, func(o *Options) {
		o.OnEvent = func(ev Event) {
			if ev.Kind == EventNotice {
				mu.Lock()
				notices = append(notices, ev.Err)
				mu.Unlock()
			}
		}
	})
	start(t, h, words(120), 0)
	h.engine.finish(t)
	h.engine.last(t).done(errBoom)

	s := h.c.Snapshot()
	if s.State != StatePaused || s.Cursor != 50 {
		t.Fatalf("expected paused at 50, got %+v", s)
	}
	if h.clock.active() != 0 {
		t.Fatal("engine failure should disarm the timer")
	}
	h.c.Close()
	mu.Lock()
	defer mu.Unlock()
	if len(notices) != 1 || !errors.Is(notices[0], errBoom) {
		t.Fatalf("expected one notice, got %v", notices)
	}
}

// ─── quiz timer ─────────────────────────────────────────────────────────────

func TestQuizTimer_FiresOnceAtHalfMinute(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.QuizInterval = 30 * time.Second })
	start(t, h, words(1000), 0)

	h.clock.Advance(29 * time.Second)
	if h.gen.calls() != 0 {
		t.Fatal("quiz fired early")
	}
	h.clock.Advance(time.Second)
	if h.gen.calls() != 1 {
		t.Fatalf("expected 1 quiz, got %d", h.gen.calls())
	}
	// Nothing re-arms while the quiz is open.
	h.clock.Advance(10 * time.Minute)
	if h.gen.calls() != 1 {
		t.Fatalf("quiz fired %d times before continue", h.gen.calls())
	}
	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	h.clock.Advance(30 * time.Second)
	if h.gen.calls() != 2 {
		t.Fatalf("expected re-armed timer to fire, got %d", h.gen.calls())
	}
}

func TestQuizTimer_SecondFireIsNoop(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(300), 0)
	h.c.TriggerQuiz()
	first := h.c.quiz
	if first == nil {
		t.Fatal("expected open quiz")
	}
	h.c.TriggerQuiz()
	if h.c.quiz != first {
		t.Fatal("quiz state replaced by second trigger")
	}
	if h.gen.calls() != 1 {
		t.Fatalf("expected 1 generation, got %d", h.gen.calls())
	}
}

func TestQuizTimer_StopsSpeechAndSnapshotsCursor(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(300), 0)
	h.engine.finish(t)
	h.engine.finish(t)
	inflight := h.engine.last(t)

	h.c.TriggerQuiz()
	s := h.c.Snapshot()
	if s.State != StateQuizPending || s.Playing {
		t.Fatalf("unexpected state %+v", s)
	}
	if s.Quiz == nil || s.Quiz.ResumeCursor != 100 {
		t.Fatalf("expected resume cursor 100, got %+v", s.Quiz)
	}
	inflight.done(nil)
	if got := h.c.Snapshot().Cursor; got != 100 {
		t.Fatalf("cancelled utterance advanced cursor to %d", got)
	}
}

func TestQuizTimer_IntervalChangeAppliesOnNextArm(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.QuizInterval = time.Minute })
	start(t, h, words(1000), 0)
	h.c.SetQuizInterval(5 * time.Minute)

	h.clock.Advance(time.Minute)
	if h.gen.calls() != 1 {
		t.Fatal("armed timer should keep its original interval")
	}
	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Minute)
	if h.gen.calls() != 1 {
		t.Fatal("new interval should apply after re-arm")
	}
	h.clock.Advance(4 * time.Minute)
	if h.gen.calls() != 2 {
		t.Fatalf("expected second quiz at 5m, got %d", h.gen.calls())
	}
}

func TestQuizTimer_StaleFireAfterPauseIgnored(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.QuizInterval = time.Minute })
	start(t, h, words(300), 0)
	timer := h.clock.timers[0]
	h.c.Pause()

	// Simulate a timer that fired concurrently with Stop.
	timer.f()
	if h.gen.calls() != 0 {
		t.Fatal("stale timer opened a quiz")
	}
}

func TestQuiz_GeneratorFailureYieldsPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.gen.err = ErrServiceUnavailable
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()

	s := h.c.Snapshot()
	if s.Quiz == nil {
		t.Fatal("expected placeholder quiz")
	}
	q := s.Quiz.Quiz
	if !q.Placeholder || q.Question != "Quiz generation failed. Continue?" {
		t.Fatalf("unexpected placeholder %+v", q)
	}
	if len(q.Options) != 1 || q.Options[q.CorrectKey] != "Continue" {
		t.Fatalf("placeholder should offer exactly one continue option, got %v", q.Options)
	}

	correct, err := h.c.AnswerQuiz(KeyA)
	if err != nil || !correct {
		t.Fatalf("AnswerQuiz: %v %v", correct, err)
	}
	h.c.Close()
	if h.store.attemptCount() != 0 {
		t.Fatal("placeholder answers must not be recorded")
	}
}

func TestQuiz_MalformedQuizYieldsPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.gen.quiz = &Quiz{Question: "missing options", CorrectKey: KeyA}
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()
	if s := h.c.Snapshot(); s.Quiz == nil || !s.Quiz.Quiz.Placeholder {
		t.Fatalf("expected placeholder, got %+v", s.Quiz)
	}
}

func TestQuiz_WindowCoversHeardText(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(300), 0)
	h.engine.finish(t)
	h.c.TriggerQuiz()

	excerpt := h.gen.excerpts[0]
	if !strings.HasPrefix(excerpt, "w0 ") || !strings.Contains(excerpt, "w49 w50") {
		t.Fatalf("excerpt should span heard text and lookahead: %q", excerpt)
	}
}

func TestQuiz_ManualTriggerWhilePaused(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(100), 0)
	h.c.Pause()
	h.c.TriggerQuiz()
	if got := h.c.Snapshot().State; got != StateQuizPending {
		t.Fatalf("expected quiz pending, got %v", got)
	}
	if err := h.c.Start(ctx, words(100), 0); !errors.Is(err, ErrQuizPending) {
		t.Fatalf("expected ErrQuizPending, got %v", err)
	}
}

func TestQuiz_TriggerAfterFinishKeepsEndCursor(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(4), 0)
	h.engine.finish(t)
	h.c.TriggerQuiz()

	s := h.c.Snapshot()
	if s.Quiz == nil || s.Quiz.ResumeCursor != 4 {
		t.Fatalf("expected resume cursor 4, got %+v", s.Quiz)
	}
	spoken := h.engine.count()
	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if s := h.c.Snapshot(); s.State != StateFinished || s.Cursor != 4 {
		t.Fatalf("expected finished at 4, got %+v", s)
	}
	if h.engine.count() != spoken {
		t.Fatal("continue at the end must not replay words")
	}
}

func TestQuiz_NoSessionNoQuiz(t *testing.T) {
	h := newHarness(t)
	h.c.TriggerQuiz()
	if h.gen.calls() != 0 || h.c.Snapshot().Quiz != nil {
		t.Fatal("quiz opened without a session")
	}
}

// ─── answers ────────────────────────────────────────────────────────────────

func TestAnswer_AtMostOnce(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()

	correct, err := h.c.AnswerQuiz(KeyC)
	if err != nil || correct {
		t.Fatalf("first answer: correct=%v err=%v", correct, err)
	}
	correct, err = h.c.AnswerQuiz(KeyB)
	if err != nil || correct {
		t.Fatalf("second answer should report the first result, got correct=%v err=%v", correct, err)
	}
	if got := h.c.Snapshot().Quiz.Answered; got != KeyC {
		t.Fatalf("answer changed to %q", got)
	}

	h.c.Close()
	if h.store.attemptCount() != 1 {
		t.Fatalf("expected one submission, got %d", h.store.attemptCount())
	}
	a := h.store.attempts[0]
	if a.SessionID != "s1" || a.UserAnswer != KeyC || a.CorrectAnswer != KeyB || a.IsCorrect {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if len(a.Options) != 4 {
		t.Fatalf("attempt should carry the options, got %v", a.Options)
	}
}

func TestAnswer_SubmissionFailureSwallowed(t *testing.T) {
	h := newHarness(t)
	h.store.recordErr = ErrNotFound
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()

	correct, err := h.c.AnswerQuiz(KeyB)
	if err != nil || !correct {
		t.Fatalf("AnswerQuiz: correct=%v err=%v", correct, err)
	}
	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatalf("continue after failed submission: %v", err)
	}
}

func TestAnswer_Errors(t *testing.T) {
	h := newHarness(t)
	if _, err := h.c.AnswerQuiz(KeyA); !errors.Is(err, ErrNoQuiz) {
		t.Fatalf("expected ErrNoQuiz, got %v", err)
	}
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()
	if _, err := h.c.AnswerQuiz("E"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if h.c.Snapshot().Quiz.IsAnswered() {
		t.Fatal("invalid key should not count as an answer")
	}
}

// ─── continue ───────────────────────────────────────────────────────────────

func TestContinue_RestoresSnapshotCursor(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(300), 0)
	h.engine.finish(t)
	h.engine.finish(t)
	h.c.TriggerQuiz()
	h.c.AnswerQuiz(KeyB)

	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	s := h.c.Snapshot()
	if s.Cursor != 100 || s.State != StatePlaying || s.Quiz != nil {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if u := h.engine.last(t).u; !strings.HasPrefix(u.Text, "w100 ") {
		t.Fatalf("expected playback from w100, got %q", u.Text)
	}
	if h.clock.active() != 1 {
		t.Fatal("continue should re-arm the timer")
	}
}

func TestContinue_WithoutAnswerSkips(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()
	if err := h.c.ContinueAfterQuiz(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	h.c.Close()
	if h.store.attemptCount() != 0 {
		t.Fatal("skipped quiz should not be recorded")
	}
}

func TestContinue_NoQuiz(t *testing.T) {
	h := newHarness(t)
	if err := h.c.ContinueAfterQuiz(); !errors.Is(err, ErrNoQuiz) {
		t.Fatalf("expected ErrNoQuiz, got %v", err)
	}
}

// ─── events / close ─────────────────────────────────────────────────────────

func TestEvents_DeliveredInOrder(t *testing.T) {
	var mu sync.Mutex
	var kinds []EventKind
	var states []State
	h := newHarness(t, func(o *Options) {
		o.OnEvent = func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, ev.Kind)
			if ev.Kind == EventState {
				states = append(states, ev.Snapshot.State)
			}
		}
	})
	start(t, h, words(60), 0)
	h.c.TriggerQuiz()
	h.c.AnswerQuiz(KeyB)
	h.c.Close()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateStarting, StatePlaying, StateQuizLoading, StateQuizPending}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
	if kinds[len(kinds)-1] != EventAnswered {
		t.Fatalf("expected last event answered, got %v", kinds[len(kinds)-1])
	}
}

func TestEvents_ObserverMayCallBack(t *testing.T) {
	var h *harness
	done := make(chan struct{})
	var once sync.Once
	h = newHarness(t, func(o *Options) {
		o.OnEvent = func(ev Event) {
			if ev.Kind == EventQuizReady {
				_, _ = h.c.AnswerQuiz(KeyB)
				once.Do(func() { close(done) })
			}
		}
	})
	start(t, h, words(60), 0)
	h.c.TriggerQuiz()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer deadlocked")
	}
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(60), 0)
	h.c.Close()
	h.c.Close()
	if err := h.c.Start(ctx, words(60), 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if h.clock.active() != 0 {
		t.Fatal("close should disarm the timer")
	}
	if s := h.c.Snapshot(); s.Playing || s.State != StatePaused {
		t.Fatalf("expected paused after close, got %+v", s)
	}

	before := h.engine.count()
	if err := h.c.ChangeSpeed(1.5); err != nil {
		t.Fatalf("ChangeSpeed: %v", err)
	}
	h.c.ChangeVoice("other")
	if h.engine.count() != before {
		t.Fatal("nothing may be spoken after close")
	}
}

func TestClose_QuizOperationsRejected(t *testing.T) {
	h := newHarness(t)
	start(t, h, words(100), 0)
	h.c.TriggerQuiz()
	h.c.Close()

	before := h.engine.count()
	if _, err := h.c.AnswerQuiz(KeyB); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from AnswerQuiz, got %v", err)
	}
	if err := h.c.ContinueAfterQuiz(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from ContinueAfterQuiz, got %v", err)
	}
	if h.engine.count() != before || h.clock.active() != 0 {
		t.Fatal("a closed coordinator must not speak or arm the timer")
	}
	if h.store.attemptCount() != 0 {
		t.Fatal("no attempt may be submitted after close")
	}
	if s := h.c.Snapshot(); s.Playing {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without collaborators")
	}
	_, err := New(Options{Store: &fakeStore{}, Generator: &fakeGen{}, Engine: &fakeEngine{}, Speed: 3})
	if !errors.Is(err, ErrInvalidSpeed) {
		t.Fatalf("expected ErrInvalidSpeed, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
