// Package cli holds the cobra commands of the listen binary.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/logging"
	"github.com/example/listening-companion/services/listener/internal/clientconfig"
	"github.com/example/listening-companion/services/listener/internal/playback"
	"github.com/example/listening-companion/services/listener/internal/remote"
)

var errNotLoggedIn = errors.New("not logged in: run `listen login` or `listen register` first")

// EngineFactory builds the speech engine named by --engine or the config.
type EngineFactory func(name string, out io.Writer, log *zap.Logger) (playback.SpeechEngine, error)

type app struct {
	cfgPath  string
	apiURL   string
	logLevel string

	cfg    clientconfig.Config
	log    *zap.Logger
	client *remote.Client

	newEngine EngineFactory
	// openKeyboard returns the reader for keyboard commands when stdin
	// carries the text.
	openKeyboard func() (io.ReadCloser, error)
}

// NewRootCmd creates the listen command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{newEngine: DefaultEngine, openKeyboard: openTTY})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "listen",
		Short: "Listen to text and get quizzed on it",
		Long: `listen reads text aloud and pauses every few minutes for a
multiple-choice question about what you just heard.

Sessions, quiz attempts and analytics are stored by the listening-companion API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $LISTEN_CONFIG or ~/.config/listen/config.yaml)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (overrides config and LISTEN_API_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newRegisterCmd(a))
	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newPlayCmd(a))
	root.AddCommand(newSessionsCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newConfigCmd(a))

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if a.cfgPath == "" {
		p, err := clientconfig.Path()
		if err != nil {
			return err
		}
		a.cfgPath = p
	}
	cfg, err := clientconfig.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	a.cfg = cfg

	if a.log == nil {
		log, err := logging.NewConsole(a.logLevel)
		if err != nil {
			return err
		}
		a.log = log
	}
	a.client = remote.New(cfg.APIURL, cfg.Token, remote.WithLogger(a.log))
	return nil
}

func (a *app) requireToken() error {
	if strings.TrimSpace(a.cfg.Token) == "" {
		return errNotLoggedIn
	}
	return nil
}

// explain rewrites API failures into CLI messages.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case remote.IsUnauthorized(err):
		return fmt.Errorf("%w (%v)", errNotLoggedIn, err)
	case errors.Is(err, playback.ErrServiceUnavailable):
		return fmt.Errorf("the API is unavailable: %w", err)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
