package cli

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/listening-companion/services/listener/internal/playback"
	"github.com/example/listening-companion/services/listener/internal/speech"
)

const (
	engineAuto    = "auto"
	engineConsole = "console"
)

func engineName(name string) string {
	if name == "" {
		return engineAuto
	}
	return name
}

// DefaultEngine resolves "auto" to the first installed synthesizer and falls
// back to printing the text. Any other name is a synthesizer command.
func DefaultEngine(name string, out io.Writer, log *zap.Logger) (playback.SpeechEngine, error) {
	switch engineName(name) {
	case engineConsole:
		return speech.NewConsole(out), nil
	case engineAuto:
		if c, err := speech.Detect(log); err == nil {
			return c, nil
		}
		log.Info("no speech synthesizer found; printing text instead")
		return speech.NewConsole(out), nil
	default:
		c, err := speech.NewCommand(name, log)
		if err != nil {
			return nil, fmt.Errorf("engine %q: %w", name, err)
		}
		return c, nil
	}
}

func openTTY() (io.ReadCloser, error) {
	return os.Open("/dev/tty")
}
