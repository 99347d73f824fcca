// Package clientconfig loads and saves the listener's YAML settings file.
package clientconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL       = "http://localhost:3001"
	DefaultSpeed        = 1.0
	DefaultQuizMinutes  = 2.0
	DefaultDifficulty   = "medium"
	defaultRelativePath = ".config/listen/config.yaml"
)

// QuizIntervals are the selectable quiz intervals in minutes. Zero turns the
// timer off.
var QuizIntervals = []float64{0, 0.5, 1, 2, 5, 10}

type Config struct {
	APIURL      string  `yaml:"api_url"`
	Token       string  `yaml:"token,omitempty"`
	Email       string  `yaml:"email,omitempty"`
	Voice       string  `yaml:"voice,omitempty"`
	Speed       float64 `yaml:"speed"`
	QuizMinutes float64 `yaml:"quiz_interval_minutes"`
	Difficulty  string  `yaml:"difficulty"`
	// Engine selects the speech engine: "console" or a synthesizer command.
	Engine string `yaml:"engine,omitempty"`
}

func Default() Config {
	return Config{
		APIURL:      DefaultAPIURL,
		Speed:       DefaultSpeed,
		QuizMinutes: DefaultQuizMinutes,
		Difficulty:  DefaultDifficulty,
	}
}

// QuizInterval converts QuizMinutes to a duration.
func (c Config) QuizInterval() time.Duration {
	return time.Duration(c.QuizMinutes * float64(time.Minute))
}

// Path returns LISTEN_CONFIG or ~/.config/listen/config.yaml.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv("LISTEN_CONFIG")); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("clientconfig: home dir: %w", err)
	}
	return filepath.Join(home, defaultRelativePath), nil
}

// Load reads path, fills defaults and applies LISTEN_API_URL and
// LISTEN_TOKEN. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("clientconfig: open %q: %w", path, err)
	default:
		defer f.Close()
		cfg, err = LoadFromReader(f)
		if err != nil {
			return Config{}, fmt.Errorf("clientconfig: parse %q: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("clientconfig: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined.
func Validate(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.APIURL) == "" {
		errs = append(errs, errors.New("api_url is required"))
	}
	if cfg.Speed < 0.5 || cfg.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("speed %v must be between 0.5 and 2.0", cfg.Speed))
	}
	if !slices.Contains(QuizIntervals, cfg.QuizMinutes) {
		errs = append(errs, fmt.Errorf("quiz_interval_minutes %v must be one of %v", cfg.QuizMinutes, QuizIntervals))
	}
	switch cfg.Difficulty {
	case "easy", "medium", "hard":
	default:
		errs = append(errs, fmt.Errorf("difficulty %q must be easy, medium or hard", cfg.Difficulty))
	}
	return errors.Join(errs...)
}

// Save writes cfg to path with owner-only permissions; the file holds a token.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("clientconfig: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("clientconfig: encode yaml: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("clientconfig: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("clientconfig: rename: %w", err)
	}
	return nil
}

// ParseQuizMinutes accepts one of QuizIntervals written as a number.
func ParseQuizMinutes(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !slices.Contains(QuizIntervals, v) {
		return 0, fmt.Errorf("quiz interval must be one of %v minutes", QuizIntervals)
	}
	return v, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LISTEN_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_TOKEN")); v != "" {
		cfg.Token = v
	}
}
