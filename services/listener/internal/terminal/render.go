package terminal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/example/listening-companion/services/listener/internal/playback"
)

const Help = `commands:
  p        pause / resume
  + / -    speed up / slow down by 0.1
  v <id>   change voice
  t        quiz me now
  A-D      answer the open quiz (a, b, d also work; C for option C)
  c        continue after a quiz
  q        quit`

// Renderer prints coordinator events. It is safe for concurrent use.
type Renderer struct {
	Out io.Writer
	mu  sync.Mutex
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{Out: out}
}

// Printf writes a free-form line.
func (r *Renderer) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, format+"\n", args...)
}

// Render prints ev. Progress events print a status line, quiz events the
// question or the feedback.
func (r *Renderer) Render(ev playback.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := ev.Snapshot
	switch ev.Kind {
	case playback.EventState:
		fmt.Fprintf(r.Out, "[%s] %s\n", s.State, Status(s))
		if s.State == playback.StateFinished {
			fmt.Fprintln(r.Out, "Finished. Press q to quit.")
		}
	case playback.EventProgress:
		fmt.Fprintf(r.Out, "  %s\n", Status(s))
	case playback.EventQuizReady:
		if s.Quiz != nil {
			fmt.Fprint(r.Out, FormatQuiz(s.Quiz.Quiz))
		}
	case playback.EventAnswered:
		if s.Quiz != nil {
			fmt.Fprint(r.Out, FormatFeedback(*s.Quiz))
		}
	case playback.EventNotice:
		fmt.Fprintf(r.Out, "! %s\n", Notice(ev.Err))
	}
}

// Status is "title  cursor/words (pct%)  speed x".
func Status(s playback.Snapshot) string {
	pct := 0
	if s.WordCount > 0 {
		pct = s.Cursor * 100 / s.WordCount
	}
	return fmt.Sprintf("%s  %d/%d words (%d%%)  %.1fx", s.Title, s.Cursor, s.WordCount, pct, s.Speed)
}

func FormatQuiz(q playback.Quiz) string {
	var b strings.Builder
	b.WriteString("\n── Quiz ──────────────────────────────\n")
	b.WriteString(q.Question)
	b.WriteString("\n")
	for _, k := range playback.Keys {
		if text, ok := q.Options[k]; ok {
			fmt.Fprintf(&b, "  %s) %s\n", k, text)
		}
	}
	if q.Placeholder {
		b.WriteString("Press A or c to continue.\n")
	} else {
		b.WriteString("Answer with A-D, c to skip.\n")
	}
	return b.String()
}

func FormatFeedback(qs playback.QuizState) string {
	if qs.Quiz.Placeholder {
		return "Press c to continue.\n"
	}
	var b strings.Builder
	if qs.Correct() {
		b.WriteString("Correct!\n")
	} else {
		fmt.Fprintf(&b, "Not quite. The answer was %s) %s\n", qs.Quiz.CorrectKey, qs.Quiz.Options[qs.Quiz.CorrectKey])
	}
	if qs.Quiz.Explanation != "" {
		b.WriteString(qs.Quiz.Explanation)
		b.WriteString("\n")
	}
	b.WriteString("Press c to continue.\n")
	return b.String()
}

// Notice turns coordinator errors into short user messages.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, playback.ErrServiceUnavailable):
		return "The quiz service is unavailable right now."
	case errors.Is(err, playback.ErrFormat):
		return "The quiz came back malformed."
	case errors.Is(err, playback.ErrNotFound):
		return "The session no longer exists."
	case errors.Is(err, playback.ErrInvalidSpeed):
		return "Speed must stay between 0.5x and 2.0x."
	case errors.Is(err, playback.ErrBusy):
		return "Still working on the previous request."
	case errors.Is(err, playback.ErrNoQuiz):
		return "There is no open quiz."
	case errors.Is(err, playback.ErrInvalidKey):
		return "That is not one of the options."
	default:
		return err.Error()
	}
}
