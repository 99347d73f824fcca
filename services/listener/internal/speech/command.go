package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/example/listening-companion/services/listener/internal/playback"
)

// Synthesizers lists the commands Detect looks for, in order.
var Synthesizers = []string{"espeak-ng", "espeak", "say"}

// Command speaks through an external synthesizer process.
type Command struct {
	Name string
	// Args builds the argument list for one utterance.
	Args func(u playback.Utterance) []string
	Log  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ playback.SpeechEngine = (*Command)(nil)

// NewCommand resolves name on PATH and picks matching flags.
func NewCommand(name string, log *zap.Logger) (*Command, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("speech: %s not found: %w", name, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Command{Name: path, Args: ArgsFor(name), Log: log}, nil
}

// Detect returns the first available synthesizer.
func Detect(log *zap.Logger) (*Command, error) {
	for _, name := range Synthesizers {
		if c, err := NewCommand(name, log); err == nil {
			return c, nil
		}
	}
	return nil, errors.New("speech: no synthesizer found (tried espeak-ng, espeak, say)")
}

// ArgsFor maps rate and voice onto the flags of a known synthesizer.
// espeak takes -s words per minute, say takes -r.
func ArgsFor(name string) func(u playback.Utterance) []string {
	rateFlag := "-s"
	if name == "say" {
		rateFlag = "-r"
	}
	return func(u playback.Utterance) []string {
		rate := u.Rate
		if rate <= 0 {
			rate = 1
		}
		args := []string{rateFlag, strconv.Itoa(int(WordsPerMinute*rate + 0.5))}
		if u.VoiceID != "" {
			args = append(args, "-v", u.VoiceID)
		}
		return append(args, "--", u.Text)
	}
}

func (c *Command) Speak(u playback.Utterance, done func(error)) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	cmd := exec.CommandContext(ctx, c.Name, c.Args(u)...)
	go func() {
		err := cmd.Run()
		if ctx.Err() != nil {
			return
		}
		cancel()
		if err != nil {
			c.Log.Warn("speech: synthesizer failed", zap.String("cmd", c.Name), zap.Error(err))
			done(fmt.Errorf("speech: %s: %w", c.Name, err))
			return
		}
		done(nil)
	}()
}

// Cancel kills the running synthesizer. Its done callback is never called.
func (c *Command) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
