package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/listening-companion/services/listener/internal/clientconfig"
	"github.com/example/listening-companion/services/listener/internal/playback"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			token := "(none)"
			if a.cfg.Token != "" {
				token = "(set)"
			}
			fmt.Fprintf(out, "file:          %s\n", a.cfgPath)
			fmt.Fprintf(out, "api_url:       %s\n", a.cfg.APIURL)
			fmt.Fprintf(out, "email:         %s\n", a.cfg.Email)
			fmt.Fprintf(out, "token:         %s\n", token)
			fmt.Fprintf(out, "engine:        %s\n", engineName(a.cfg.Engine))
			fmt.Fprintf(out, "voice:         %s\n", a.cfg.Voice)
			fmt.Fprintf(out, "speed:         %.1f\n", a.cfg.Speed)
			fmt.Fprintf(out, "quiz interval: %v min\n", a.cfg.QuizMinutes)
			fmt.Fprintf(out, "difficulty:    %s\n", a.cfg.Difficulty)
			return nil
		},
	}
	cmd.AddCommand(newConfigSetCmd(a))
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting: api_url, voice, speed, quiz_interval, difficulty, engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, val := strings.ToLower(args[0]), strings.TrimSpace(args[1])
			cfg := a.cfg
			switch key {
			case "api_url":
				cfg.APIURL = val
			case "voice":
				cfg.Voice = val
			case "engine":
				cfg.Engine = val
			case "speed":
				v, err := strconv.ParseFloat(val, 64)
				if err != nil || v < playback.MinSpeed || v > playback.MaxSpeed {
					return fmt.Errorf("speed must be a number between %.1f and %.1f", playback.MinSpeed, playback.MaxSpeed)
				}
				cfg.Speed = v
			case "quiz_interval", "quiz_interval_minutes":
				v, err := clientconfig.ParseQuizMinutes(val)
				if err != nil {
					return err
				}
				cfg.QuizMinutes = v
			case "difficulty":
				d := playback.ParseDifficulty(val)
				if string(d) != strings.ToLower(val) {
					return fmt.Errorf("difficulty must be easy, medium or hard")
				}
				cfg.Difficulty = string(d)
			default:
				return fmt.Errorf("unknown setting %q", key)
			}
			if err := clientconfig.Validate(cfg); err != nil {
				return err
			}
			if err := clientconfig.Save(a.cfgPath, cfg); err != nil {
				return err
			}
			a.cfg = cfg
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, val)
			return nil
		},
	}
}
