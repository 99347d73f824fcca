// Package playback reads a text aloud in fixed-size chunks, interrupts it
// with a comprehension quiz on a timer, and resumes from the word where the
// quiz was triggered.
//
// The Coordinator owns all mutable state behind one mutex. Callbacks from
// the speech engine and the quiz timer carry the epoch that was current when
// they were registered; a callback whose epoch has since moved on is
// discarded, so a cancelled utterance can never advance the cursor.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MinSpeed = 0.5
	MaxSpeed = 2.0

	DefaultQuizInterval = 2 * time.Minute

	submitTimeout = 15 * time.Second
)

// Options configures a Coordinator. Store, Generator and Engine are required.
type Options struct {
	Store     SessionStore
	Generator QuizGenerator
	Engine    SpeechEngine
	Clock     Clock
	Logger    *zap.Logger

	// Session, when set, is reused by the first Start instead of creating a
	// new one (resuming an imported or stored session).
	Session *Session
	// Title overrides the title derived from the text.
	Title string

	QuizInterval time.Duration
	Difficulty   Difficulty
	Speed        float64
	VoiceID      string

	// OnEvent receives events on a dedicated goroutine, in order.
	OnEvent func(Event)
}

// Snapshot is a read-only copy of the coordinator state.
type Snapshot struct {
	State        State
	SessionID    string
	Title        string
	WordCount    int
	Cursor       int
	Speed        float64
	VoiceID      string
	Playing      bool
	QuizInterval time.Duration
	Difficulty   Difficulty
	Quiz         *QuizState
}

type Coordinator struct {
	store  SessionStore
	gen    QuizGenerator
	engine SpeechEngine
	clock  Clock
	log    *zap.Logger
	events *eventQueue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	closed   bool
	title    string
	text     string
	words    []string
	session  *Session
	cursor   int
	chunkLen int
	speed    float64
	voice    string

	interval   time.Duration
	difficulty Difficulty
	quiz       *QuizState

	// epoch invalidates engine callbacks, timerEpoch invalidates timer fires.
	epoch      uint64
	timer      Timer
	timerEpoch uint64
}

func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil || opts.Generator == nil || opts.Engine == nil {
		return nil, errors.New("playback: store, generator and engine are required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QuizInterval == 0 {
		opts.QuizInterval = DefaultQuizInterval
	}
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	if opts.Speed < MinSpeed || opts.Speed > MaxSpeed {
		return nil, ErrInvalidSpeed
	}
	onEvent := opts.OnEvent
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:      opts.Store,
		gen:        opts.Generator,
		engine:     opts.Engine,
		clock:      opts.Clock,
		log:        opts.Logger,
		events:     newEventQueue(onEvent),
		ctx:        ctx,
		cancel:     cancel,
		title:      opts.Title,
		speed:      opts.Speed,
		voice:      opts.VoiceID,
		interval:   opts.QuizInterval,
		difficulty: ParseDifficulty(string(opts.Difficulty)),
	}
	if opts.Session != nil {
		s := *opts.Session
		c.session = &s
	}
	return c, nil
}

// Start begins or resumes playback of text at resumeCursor. The first call
// creates a session unless one was supplied; a call with different text
// discards the current session and creates a new one. A cursor at or past
// the end restarts from the beginning. Start while already playing the same
// text does nothing.
func (c *Coordinator) Start(ctx context.Context, text string, resumeCursor int) error {
	words := Words(text)
	if len(words) == 0 {
		return ErrEmptyContent
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case StateStarting, StateQuizLoading:
		c.mu.Unlock()
		return ErrBusy
	case StateQuizPending:
		c.mu.Unlock()
		return ErrQuizPending
	case StatePlaying:
		if text == c.text {
			c.mu.Unlock()
			return nil
		}
		c.haltLocked()
		c.setStateLocked(StatePaused)
	}

	sameText := c.text == "" || text == c.text
	sess := c.session
	if !sameText {
		sess = nil
	}

	if sess == nil {
		prev := c.state
		title := c.title
		if title == "" {
			title = DeriveTitle(text)
		}
		c.setStateLocked(StateStarting)
		c.mu.Unlock()

		created, err := c.store.CreateSession(ctx, text, title)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if err != nil {
			c.setStateLocked(prev)
			c.mu.Unlock()
			c.log.Warn("playback: create session failed", zap.Error(err))
			return &SessionCreateError{Err: err}
		}
		if created.Title == "" {
			created.Title = title
		}
		sess = &created
		c.log.Info("playback: session created", zap.String("session_id", created.ID), zap.Int("words", len(words)))
	}

	c.session = sess
	c.text = text
	c.words = words
	if resumeCursor < 0 || resumeCursor >= len(words) {
		resumeCursor = 0
	}
	c.cursor = resumeCursor
	c.playLocked()
	c.mu.Unlock()
	return nil
}

// Resume continues the current text from the cursor.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	text, cursor := c.text, c.cursor
	c.mu.Unlock()
	return c.Start(ctx, text, cursor)
}

// Pause stops speech and the quiz timer. It is a no-op unless playing.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return
	}
	c.haltLocked()
	c.setStateLocked(StatePaused)
}

// ChangeSpeed applies from the current chunk, which restarts if playing.
func (c *Coordinator) ChangeSpeed(rate float64) error {
	if rate < MinSpeed || rate > MaxSpeed {
		return ErrInvalidSpeed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speed == rate {
		return nil
	}
	c.speed = rate
	c.restartChunkLocked()
	return nil
}

// ChangeVoice applies from the current chunk, which restarts if playing.
func (c *Coordinator) ChangeVoice(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voice == id {
		return
	}
	c.voice = id
	c.restartChunkLocked()
}

// SetQuizInterval takes effect the next time the timer is armed. Zero or
// negative disables automatic quizzes.
func (c *Coordinator) SetQuizInterval(d time.Duration) {
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

func (c *Coordinator) SetDifficulty(d Difficulty) {
	c.mu.Lock()
	c.difficulty = ParseDifficulty(string(d))
	c.mu.Unlock()
}

// TriggerQuiz opens a quiz now, as if the timer had fired.
func (c *Coordinator) TriggerQuiz() {
	c.openQuiz(0, false)
}

// AnswerQuiz records the first answer to the open quiz and reports whether it
// was correct. Later calls change nothing and report the first answer's
// result. The attempt is submitted in the background; placeholder quizzes are
// never submitted.
func (c *Coordinator) AnswerQuiz(key Key) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if c.quiz == nil {
		return false, ErrNoQuiz
	}
	if c.quiz.IsAnswered() {
		return c.quiz.Correct(), nil
	}
	if _, ok := c.quiz.Quiz.Options[key]; !ok {
		return false, ErrInvalidKey
	}

	c.quiz.Answered = key
	correct := c.quiz.Correct()
	c.emitLocked(EventAnswered, nil)

	if !c.quiz.Quiz.Placeholder && c.session != nil {
		q := c.quiz.Quiz
		attempt := QuizAttempt{
			SessionID:     c.session.ID,
			Question:      q.Question,
			Options:       copyOptions(q.Options),
			UserAnswer:    key,
			CorrectAnswer: q.CorrectKey,
			IsCorrect:     correct,
		}
		c.wg.Add(1)
		go c.submit(attempt)
	}
	return correct, nil
}

// ContinueAfterQuiz closes the open quiz, answered or not, rewinds to the
// word where it was triggered and resumes playback with a fresh timer.
func (c *Coordinator) ContinueAfterQuiz() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.quiz == nil {
		return ErrNoQuiz
	}
	c.cursor = c.quiz.ResumeCursor
	c.quiz = nil
	c.playLocked()
	return nil
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops playback, cancels an outstanding quiz request, waits for
// attempt submissions and flushes pending events.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.state == StatePlaying {
		c.haltLocked()
		c.setStateLocked(StatePaused)
	} else {
		c.stopTimerLocked()
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.events.close()
}

// ─── internals (c.mu held unless noted) ─────────────────────────────────────

func (c *Coordinator) playLocked() {
	if c.cursor >= len(c.words) {
		c.finishLocked()
		return
	}
	c.setStateLocked(StatePlaying)
	c.armTimerLocked()
	c.speakLocked()
}

func (c *Coordinator) speakLocked() {
	end := chunkEnd(c.cursor, len(c.words))
	c.chunkLen = end - c.cursor
	c.epoch++
	ep := c.epoch
	c.engine.Speak(Utterance{
		Text:    strings.Join(c.words[c.cursor:end], " "),
		Rate:    c.speed,
		VoiceID: c.voice,
	}, func(err error) { c.onChunkDone(ep, err) })
}

func (c *Coordinator) restartChunkLocked() {
	if c.closed || c.state != StatePlaying {
		return
	}
	c.epoch++
	c.engine.Cancel()
	c.speakLocked()
}

// haltLocked cancels the utterance and the timer without changing state.
func (c *Coordinator) haltLocked() {
	c.epoch++
	c.engine.Cancel()
	c.stopTimerLocked()
}

func (c *Coordinator) finishLocked() {
	c.cursor = len(c.words)
	c.stopTimerLocked()
	c.setStateLocked(StateFinished)
}

// onChunkDone runs on the engine's goroutine.
func (c *Coordinator) onChunkDone(ep uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ep != c.epoch || c.state != StatePlaying || c.closed {
		return
	}
	if err != nil {
		c.log.Warn("playback: speech engine failed", zap.Int("cursor", c.cursor), zap.Error(err))
		c.haltLocked()
		c.setStateLocked(StatePaused)
		c.emitLocked(EventNotice, err)
		return
	}
	c.onChunkCompleteLocked(c.chunkLen)
}

func (c *Coordinator) onChunkCompleteLocked(n int) {
	c.cursor = min(c.cursor+n, len(c.words))
	if c.cursor >= len(c.words) {
		c.finishLocked()
		return
	}
	c.emitLocked(EventProgress, nil)
	c.speakLocked()
}

func (c *Coordinator) armTimerLocked() {
	c.stopTimerLocked()
	if c.interval <= 0 {
		return
	}
	te := c.timerEpoch
	c.timer = c.clock.AfterFunc(c.interval, func() { c.openQuiz(te, true) })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerEpoch++
}

// openQuiz runs on the timer goroutine (fromTimer) or the caller's. It holds
// the lock except while the generator is working.
func (c *Coordinator) openQuiz(te uint64, fromTimer bool) {
	c.mu.Lock()
	if fromTimer {
		if te != c.timerEpoch {
			c.mu.Unlock()
			return
		}
		c.timer = nil
	}
	if c.closed || c.session == nil || c.quiz != nil {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case StatePlaying, StatePaused, StateFinished:
	default:
		c.mu.Unlock()
		return
	}

	resume := c.cursor
	if c.state == StatePlaying {
		c.haltLocked()
	} else {
		c.stopTimerLocked()
	}
	excerpt := quizWindow(c.words, resume, c.text)
	difficulty := c.difficulty
	c.setStateLocked(StateQuizLoading)
	c.mu.Unlock()

	quiz, err := c.gen.Generate(c.ctx, excerpt, difficulty)
	if err == nil {
		err = quiz.Validate()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateQuizLoading {
		return
	}
	if err != nil {
		c.log.Warn("playback: quiz generation failed", zap.Error(err))
		quiz = PlaceholderQuiz()
		c.emitLocked(EventNotice, err)
	}
	c.quiz = &QuizState{Quiz: quiz, ResumeCursor: resume}
	c.setStateLocked(StateQuizPending)
	c.emitLocked(EventQuizReady, nil)
}

// submit runs on its own goroutine, tracked by c.wg.
func (c *Coordinator) submit(a QuizAttempt) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	id, err := c.store.RecordQuizAttempt(ctx, a)
	switch {
	case errors.Is(err, ErrNotFound):
		c.log.Warn("playback: session gone, attempt dropped", zap.String("session_id", a.SessionID))
	case err != nil:
		c.log.Warn("playback: record attempt failed", zap.String("session_id", a.SessionID), zap.Error(err))
	default:
		c.log.Debug("playback: attempt recorded", zap.String("attempt_id", id), zap.Bool("correct", a.IsCorrect))
	}
}

func (c *Coordinator) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.emitLocked(EventState, nil)
}

func (c *Coordinator) emitLocked(kind EventKind, err error) {
	c.events.push(Event{Kind: kind, Snapshot: c.snapshotLocked(), Err: err})
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        c.state,
		Title:        c.title,
		WordCount:    len(c.words),
		Cursor:       c.cursor,
		Speed:        c.speed,
		VoiceID:      c.voice,
		Playing:      c.state == StatePlaying,
		QuizInterval: c.interval,
		Difficulty:   c.difficulty,
	}
	if c.session != nil {
		s.SessionID = c.session.ID
		s.Title = c.session.Title
	}
	if c.quiz != nil {
		q := *c.quiz
		q.Quiz.Options = copyOptions(q.Quiz.Options)
		s.Quiz = &q
	}
	return s
}

func copyOptions(m map[Key]string) map[Key]string {
	out := make(map[Key]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
