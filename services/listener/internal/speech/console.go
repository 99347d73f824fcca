// Package speech provides playback.SpeechEngine implementations.
package speech

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/example/listening-companion/services/listener/internal/playback"
)

// WordsPerMinute is the speaking pace at rate 1.0.
const WordsPerMinute = 160

// Console "speaks" by writing each word to Out at the speaking pace.
type Console struct {
	Out io.Writer
	// After paces words; tests replace it. Defaults to time.After.
	After func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	writeMu sync.Mutex
	stop    chan struct{}
}

var _ playback.SpeechEngine = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{Out: out, After: time.After}
}

func (c *Console) Speak(u playback.Utterance, done func(error)) {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(u, stop, done)
}

// Cancel stops the current utterance. Its done callback is never called.
func (c *Console) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Console) run(u playback.Utterance, stop chan struct{}, done func(error)) {
	perWord := WordDelay(u.Rate)
	after := c.After
	if after == nil {
		after = time.After
	}
	for i, w := range strings.Fields(u.Text) {
		sep := " "
		if i == 0 {
			sep = ""
		}
		if err := c.write(stop, sep+w); err != nil {
			done(err)
			return
		}
		select {
		case <-stop:
			return
		case <-after(perWord):
		}
	}
	if err := c.write(stop, "\n"); err != nil {
		done(err)
		return
	}
	select {
	case <-stop:
		return
	default:
	}
	done(nil)
}

// write skips output once the utterance is cancelled.
func (c *Console) write(stop chan struct{}, s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-stop:
		return nil
	default:
	}
	_, err := io.WriteString(c.Out, s)
	return err
}

// WordDelay is the time one word takes at rate. Non-positive rates count
// as 1.0.
func WordDelay(rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(time.Minute) / (WordsPerMinute * rate))
}
