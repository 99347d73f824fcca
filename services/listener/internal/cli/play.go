package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/listening-companion/services/listener/internal/clientconfig"
	"github.com/example/listening-companion/services/listener/internal/playback"
	"github.com/example/listening-companion/services/listener/internal/terminal"
)

const maxTextBytes = 10 << 20

type playFlags struct {
	url        string
	session    string
	title      string
	voice      string
	engine     string
	difficulty string
	speed      float64
	interval   float64
}

// source is what play reads aloud.
type source struct {
	text    string
	title   string
	session *playback.Session
}

func newPlayCmd(a *app) *cobra.Command {
	var f playFlags
	cmd := &cobra.Command{
		Use:   "play [file | -]",
		Short: "Read text aloud with periodic comprehension quizzes",
		Long: `Read a file, stdin (-), an imported URL (--url) or a stored session
(--session) aloud. Every quiz interval playback pauses for a question about
the passage just heard.

` + terminal.Help,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			src, fromStdin, err := a.loadSource(ctx, cmd, args, f)
			if err != nil {
				return err
			}
			opts, err := a.playbackOptions(cmd, f, src)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			engine, err := a.newEngine(engineName(firstNonEmpty(f.engine, a.cfg.Engine)), out, a.log)
			if err != nil {
				return err
			}

			keyboard := io.NopCloser(cmd.InOrStdin())
			if fromStdin {
				if keyboard, err = a.openKeyboard(); err != nil {
					a.log.Info("no terminal for keyboard commands; playing to the end", zap.Error(err))
					keyboard = nil
				}
			}
			if keyboard != nil {
				defer keyboard.Close()
			}

			return a.play(ctx, opts, engine, src, keyboard, terminal.NewRenderer(out))
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "import an article or YouTube video and play it")
	cmd.Flags().StringVar(&f.session, "session", "", "resume a stored session by id")
	cmd.Flags().StringVar(&f.title, "title", "", "session title (default: first words of the text)")
	cmd.Flags().StringVar(&f.voice, "voice", "", "voice id passed to the synthesizer")
	cmd.Flags().StringVar(&f.engine, "engine", "", "speech engine: auto, console or a synthesizer command")
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "", "quiz difficulty: easy, medium, hard")
	cmd.Flags().Float64Var(&f.speed, "speed", 0, "speaking rate between 0.5 and 2.0")
	cmd.Flags().Float64Var(&f.interval, "interval", 0, "minutes between quizzes: 0 (off), 0.5, 1, 2, 5, 10")
	return cmd
}

func (a *app) loadSource(ctx context.Context, cmd *cobra.Command, args []string, f playFlags) (source, bool, error) {
	picked := 0
	for _, set := range []bool{len(args) == 1, f.url != "", f.session != ""} {
		if set {
			picked++
		}
	}
	if picked != 1 {
		return source{}, false, errors.New("give exactly one of: a file, - for stdin, --url or --session")
	}

	switch {
	case f.url != "":
		imp, err := a.client.ImportURL(ctx, f.url)
		if err != nil {
			return source{}, false, explain(err)
		}
		return source{text: imp.Text, title: firstNonEmpty(f.title, imp.Title)}, false, nil

	case f.session != "":
		sess, err := a.client.GetSession(ctx, f.session)
		if err != nil {
			if errors.Is(err, playback.ErrNotFound) {
				return source{}, false, fmt.Errorf("session %s not found", f.session)
			}
			return source{}, false, explain(err)
		}
		return source{text: sess.Content, title: sess.Title, session: &sess}, false, nil
	}

	var (
		r         io.Reader
		fromStdin = args[0] == "-"
	)
	if fromStdin {
		r = cmd.InOrStdin()
	} else {
		fh, err := os.Open(args[0])
		if err != nil {
			return source{}, false, err
		}
		defer fh.Close()
		r = fh
	}
	data, err := io.ReadAll(io.LimitReader(r, maxTextBytes))
	if err != nil {
		return source{}, false, fmt.Errorf("read text: %w", err)
	}
	return source{text: string(data), title: f.title}, fromStdin, nil
}

func (a *app) playbackOptions(cmd *cobra.Command, f playFlags, src source) (playback.Options, error) {
	speed := a.cfg.Speed
	if cmd.Flags().Changed("speed") {
		speed = f.speed
	}
	minutes := a.cfg.QuizMinutes
	if cmd.Flags().Changed("interval") {
		v, err := clientconfig.ParseQuizMinutes(fmt.Sprint(f.interval))
		if err != nil {
			return playback.Options{}, err
		}
		minutes = v
	}
	interval := time.Duration(minutes * float64(time.Minute))
	if interval == 0 {
		interval = -1
	}

	return playback.Options{
		Store:        a.client,
		Generator:    a.client,
		Logger:       a.log,
		Session:      src.session,
		Title:        src.title,
		QuizInterval: interval,
		Difficulty:   playback.ParseDifficulty(firstNonEmpty(f.difficulty, a.cfg.Difficulty)),
		Speed:        speed,
		VoiceID:      firstNonEmpty(f.voice, a.cfg.Voice),
	}, nil
}

// play runs the coordinator until quit, end of keyboard input, ctx
// cancellation or, without a keyboard, the end of the text.
func (a *app) play(ctx context.Context, opts playback.Options, engine playback.SpeechEngine, src source, keyboard io.Reader, r *terminal.Renderer) error {
	finished := make(chan struct{})
	var once sync.Once
	opts.Engine = engine
	opts.OnEvent = func(ev playback.Event) {
		r.Render(ev)
		if ev.Kind == playback.EventState && ev.Snapshot.State == playback.StateFinished {
			once.Do(func() { close(finished) })
		}
	}

	coord, err := playback.New(opts)
	if err != nil {
		return err
	}
	defer coord.Close()

	if err := coord.Start(ctx, src.text, 0); err != nil {
		var sce *playback.SessionCreateError
		switch {
		case errors.Is(err, playback.ErrEmptyContent):
			return errors.New("nothing to play: the text is empty")
		case errors.As(err, &sce):
			return fmt.Errorf("could not create a session: %w", explain(sce.Err))
		}
		return err
	}

	if keyboard == nil {
		select {
		case <-ctx.Done():
		case <-finished:
		}
		return nil
	}

	r.Printf("Type h for help, q to quit.")
	stop := make(chan struct{})
	defer close(stop)
	lines := readLines(keyboard, stop)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := terminal.Parse(line)
			if err != nil {
				r.Printf("! %s", terminal.Notice(err))
				continue
			}
			if cmd.Action == terminal.ActionHelp {
				r.Printf("%s", terminal.Help)
				continue
			}
			quit, err := terminal.Dispatch(ctx, coord, cmd)
			if err != nil {
				r.Printf("! %s", terminal.Notice(err))
			}
			if quit {
				return nil
			}
		}
	}
}

func readLines(r io.Reader, stop <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-stop:
				return
			}
		}
	}()
	return ch
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
