package playback

import (
	"context"
	"strings"
	"time"
)

// Key identifies a quiz option.
type Key string

const (
	KeyA Key = "A"
	KeyB Key = "B"
	KeyC Key = "C"
	KeyD Key = "D"
)

// Keys lists the option keys in display order.
var Keys = []Key{KeyA, KeyB, KeyC, KeyD}

// ParseKey accepts a, A, " b " etc.
func ParseKey(s string) (Key, bool) {
	k := Key(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Keys {
		if k == v {
			return k, true
		}
	}
	return "", false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps anything unrecognised to medium.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}

type Session struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
}

type Quiz struct {
	Question    string
	Options     map[Key]string
	CorrectKey  Key
	Explanation string
	// Placeholder marks the stand-in quiz shown when generation failed.
	// Answers to it are never recorded.
	Placeholder bool
}

// Validate reports ErrFormat unless q has a question, exactly the four
// options A to D with text, and a correct key among them.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return formatErr("missing question")
	}
	if len(q.Options) != len(Keys) {
		return formatErr("expected 4 options")
	}
	for _, k := range Keys {
		if strings.TrimSpace(q.Options[k]) == "" {
			return formatErr("missing option " + string(k))
		}
	}
	if _, ok := q.Options[q.CorrectKey]; !ok {
		return formatErr("correct key not among options")
	}
	return nil
}

const placeholderQuestion = "Quiz generation failed. Continue?"

// PlaceholderQuiz is the single-option quiz offered when generation fails.
func PlaceholderQuiz() Quiz {
	return Quiz{
		Question:    placeholderQuestion,
		Options:     map[Key]string{KeyA: "Continue"},
		CorrectKey:  KeyA,
		Placeholder: true,
	}
}

// QuizState is an open quiz. Answered is empty until the first answer.
type QuizState struct {
	Quiz         Quiz
	Answered     Key
	ResumeCursor int
}

func (s QuizState) IsAnswered() bool { return s.Answered != "" }

// Correct reports whether the recorded answer matched.
func (s QuizState) Correct() bool { return s.IsAnswered() && s.Answered == s.Quiz.CorrectKey }

// QuizAttempt is the immutable record sent to the SessionStore.
type QuizAttempt struct {
	SessionID     string
	Question      string
	Options       map[Key]string
	UserAnswer    Key
	CorrectAnswer Key
	IsCorrect     bool
}

type Utterance struct {
	Text    string
	Rate    float64
	VoiceID string
}

// SpeechEngine speaks one utterance at a time. done receives nil when the
// utterance finished and an error when the engine failed. Implementations
// must not call done from inside Speak, and Cancel must not block on done.
type SpeechEngine interface {
	Speak(u Utterance, done func(error))
	Cancel()
}

type SessionStore interface {
	CreateSession(ctx context.Context, text, title string) (Session, error)
	RecordQuizAttempt(ctx context.Context, a QuizAttempt) (attemptID string, err error)
}

type QuizGenerator interface {
	Generate(ctx context.Context, excerpt string, d Difficulty) (Quiz, error)
}

// State is the coordinator's lifecycle state.
type State int

const (
	StateIdle State = iota
	// StateStarting: waiting on the SessionStore.
	StateStarting
	StatePlaying
	StatePaused
	// StateQuizLoading: waiting on the QuizGenerator.
	StateQuizLoading
	StateQuizPending
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateQuizLoading:
		return "quiz_loading"
	case StateQuizPending:
		return "quiz_pending"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Loading reports whether a remote call is outstanding.
func (s State) Loading() bool { return s == StateStarting || s == StateQuizLoading }
