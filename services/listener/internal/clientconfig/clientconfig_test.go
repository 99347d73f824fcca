package clientconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LISTEN_API_URL", "")
	t.Setenv("LISTEN_TOKEN", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.Speed != 1 || cfg.Difficulty != "medium" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.QuizInterval() != 2*time.Minute {
		t.Fatalf("expected 2m interval, got %v", cfg.QuizInterval())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_url: http://file\ntoken: from-file\nspeed: 1.5\nquiz_interval_minutes: 0.5\ndifficulty: hard\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LISTEN_API_URL", "http://env")
	t.Setenv("LISTEN_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://env" || cfg.Token != "from-env" {
		t.Fatalf("env must override file: %+v", cfg)
	}
	if cfg.Speed != 1.5 || cfg.QuizInterval() != 30*time.Second || cfg.Difficulty != "hard" {
		t.Fatalf("file values lost: %+v", cfg)
	}
}

func TestLoadFromReader_Validation(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("speed: 3\nquiz_interval_minutes: 7\ndifficulty: insane\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"speed", "quiz_interval_minutes", "difficulty"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("colour: blue\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("LISTEN_API_URL", "")
	t.Setenv("LISTEN_TOKEN", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Token = "tok"
	cfg.Voice = "en-gb"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, cfg)
	}
}

func TestParseQuizMinutes(t *testing.T) {
	if v, err := ParseQuizMinutes("5"); err != nil || v != 5 {
		t.Fatalf("expected 5, got %v %v", v, err)
	}
	if _, err := ParseQuizMinutes("3"); err == nil {
		t.Fatal("expected error for 3")
	}
}

func TestPath_Override(t *testing.T) {
	t.Setenv("LISTEN_CONFIG", "/tmp/custom.yaml")
	p, err := Path()
	if err != nil || p != "/tmp/custom.yaml" {
		t.Fatalf("expected override, got %q %v", p, err)
	}
}
