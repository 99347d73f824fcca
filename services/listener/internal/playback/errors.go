package playback

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyContent       = errors.New("playback: content is empty")
	ErrServiceUnavailable = errors.New("playback: service unavailable")
	ErrFormat             = errors.New("playback: malformed quiz")
	ErrNotFound           = errors.New("playback: not found")
	ErrBusy               = errors.New("playback: a request is already in flight")
	ErrQuizPending        = errors.New("playback: a quiz is open")
	ErrNoQuiz             = errors.New("playback: no quiz is open")
	ErrInvalidKey         = errors.New("playback: not an option of the open quiz")
	ErrInvalidSpeed       = errors.New("playback: speed must be between 0.5 and 2.0")
	ErrClosed             = errors.New("playback: coordinator closed")
)

// SessionCreateError wraps a SessionStore failure during Start.
type SessionCreateError struct {
	Err error
}

func (e *SessionCreateError) Error() string {
	return "playback: create session: " + e.Err.Error()
}

func (e *SessionCreateError) Unwrap() error { return e.Err }

func formatErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrFormat, msg)
}
