// Package terminal turns keyboard lines into coordinator calls and renders
// coordinator events as text.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/example/listening-companion/services/listener/internal/playback"
)

const speedStep = 0.1

type Action int

const (
	ActionToggle Action = iota
	ActionFaster
	ActionSlower
	ActionVoice
	ActionAnswer
	ActionContinue
	ActionQuiz
	ActionHelp
	ActionQuit
)

type Command struct {
	Action Action
	Key    playback.Key
	Voice  string
}

var ErrUnknownCommand = errors.New("unknown command (h for help)")

// Parse reads one input line. Answers are case-insensitive; "c" is always
// continue, so option C must be typed upper case while a quiz is open.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrUnknownCommand
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "p", "P":
		return Command{Action: ActionToggle}, nil
	case "+", "=":
		return Command{Action: ActionFaster}, nil
	case "-", "_":
		return Command{Action: ActionSlower}, nil
	case "c":
		return Command{Action: ActionContinue}, nil
	case "t", "T":
		return Command{Action: ActionQuiz}, nil
	case "h", "H", "?":
		return Command{Action: ActionHelp}, nil
	case "q", "Q", "quit", "exit":
		return Command{Action: ActionQuit}, nil
	case "v", "V", "voice":
		if len(fields) < 2 {
			return Command{}, errors.New("usage: v <voice-id>")
		}
		return Command{Action: ActionVoice, Voice: fields[1]}, nil
	}
	if len(fields) == 1 {
		if k, ok := playback.ParseKey(fields[0]); ok {
			return Command{Action: ActionAnswer, Key: k}, nil
		}
	}
	return Command{}, ErrUnknownCommand
}

// Player is the part of the coordinator the keyboard drives.
type Player interface {
	Snapshot() playback.Snapshot
	Pause()
	Resume(ctx context.Context) error
	ChangeSpeed(rate float64) error
	ChangeVoice(id string)
	TriggerQuiz()
	AnswerQuiz(key playback.Key) (bool, error)
	ContinueAfterQuiz() error
}

var _ Player = (*playback.Coordinator)(nil)

// Dispatch applies cmd to p. quit is true for ActionQuit.
func Dispatch(ctx context.Context, p Player, cmd Command) (quit bool, err error) {
	switch cmd.Action {
	case ActionToggle:
		switch p.Snapshot().State {
		case playback.StatePlaying:
			p.Pause()
			return false, nil
		case playback.StatePaused:
			return false, p.Resume(ctx)
		default:
			return false, fmt.Errorf("cannot pause or resume while %s", p.Snapshot().State)
		}
	case ActionFaster:
		return false, p.ChangeSpeed(StepSpeed(p.Snapshot().Speed, speedStep))
	case ActionSlower:
		return false, p.ChangeSpeed(StepSpeed(p.Snapshot().Speed, -speedStep))
	case ActionVoice:
		p.ChangeVoice(cmd.Voice)
		return false, nil
	case ActionAnswer:
		_, err := p.AnswerQuiz(cmd.Key)
		return false, err
	case ActionContinue:
		return false, p.ContinueAfterQuiz()
	case ActionQuiz:
		p.TriggerQuiz()
		return false, nil
	case ActionQuit:
		return true, nil
	}
	return false, nil
}

// StepSpeed adds delta and rounds to one decimal so repeated steps do not
// drift.
func StepSpeed(cur, delta float64) float64 {
	return math.Round((cur+delta)*10) / 10
}
