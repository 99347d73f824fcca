package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ─── URL helpers ─────────────────────────────────────────────────────────────

func TestIsURL(t *testing.T) {
	yes := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=abc12345678",
		"https://youtu.be/dQw4w9WgXcQ",
		"http://youtu.be/1WQXUliy3rw",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
	}
	for _, u := range yes {
		if !IsURL(u) {
			t.Fatalf("expected %q to be a YouTube URL", u)
		}
	}
	for _, u := range []string{"https://example.com", "https://vimeo.com/123", ""} {
		if IsURL(u) {
			t.Fatalf("expected %q not to be a YouTube URL", u)
		}
	}
}

func TestVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/1WQXUliy3rw":                "1WQXUliy3rw",
		"https://example.com":                         "",
		"":                                            "",
	}
	for in, want := range tests {
		if got := VideoID(in); got != want {
			t.Fatalf("VideoID(%q) = %q, want %q", in, got, want)
		}
	}
}

// ─── ParseTimedText ──────────────────────────────────────────────────────────

func TestParseTimedText_Legacy(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0" dur="1">Hello &amp;#39;world&amp;#39;</text><text start="1" dur="1">second   line</text><text start="2" dur="1"> </text></transcript>`
	segs, err := ParseTimedText([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTimedText: %v", err)
	}
	if len(segs) != 2 || segs[0] != "Hello 'world'" {
		t.Fatalf("unexpected segments: %q", segs)
	}
}

func TestParseTimedText_Srv3(t *testing.T) {
	doc := `<timedtext format="3"><body><p t="0" d="900"><s>one</s><s> two</s></p><p t="900" d="500">three</p></body></timedtext>`
	segs, err := ParseTimedText([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTimedText: %v", err)
	}
	if len(segs) != 2 || segs[0] != "one two" || segs[1] != "three" {
		t.Fatalf("unexpected segments: %q", segs)
	}
}

// ─── pickTrack ───────────────────────────────────────────────────────────────

func TestPickTrack(t *testing.T) {
	tracks := []Track{
		{BaseURL: "de", LanguageCode: "de"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "en-gb", LanguageCode: "en-GB"},
	}
	got, ok := pickTrack(tracks)
	if !ok || got.BaseURL != "en-gb" {
		t.Fatalf("expected manual English track, got %+v", got)
	}
	got, _ = pickTrack(tracks[:2])
	if got.BaseURL != "en-asr" {
		t.Fatalf("expected auto English track, got %+v", got)
	}
	got, _ = pickTrack(tracks[:1])
	if got.BaseURL != "de" {
		t.Fatalf("expected first track fallback, got %+v", got)
	}
	if _, ok := pickTrack(nil); ok {
		t.Fatal("expected no track")
	}
}

// ─── Transcript fallback chain ───────────────────────────────────────────────

const transcriptXML = `<transcript><text start="0" dur="1">never gonna</text><text start="1" dur="1">give you up</text></transcript>`

func playerJSON(baseURL string) string {
	return fmt.Sprintf(`{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext?v=x","languageCode":"en"}]}}}`, baseURL)
}

func watchPage(baseURL string) string {
	return `<html><script>var ytInitialPlayerResponse = ` + playerJSON(baseURL) + `;var other = 1;</script></html>`
}

type fakeYouTube struct {
	srv        *httptest.Server
	watchCode  int
	watchBody  func(base string) string
	innerCalls atomic.Int32
	innerBody  string
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	t.Helper()
	f := &fakeYouTube{watchCode: http.StatusOK, watchBody: watchPage}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/watch":
			w.WriteHeader(f.watchCode)
			_, _ = w.Write([]byte(f.watchBody(f.srv.URL)))
		case r.URL.Path == "/youtubei/v1/player":
			f.innerCalls.Add(1)
			if r.Method != http.MethodPost {
				t.Errorf("innertube expects POST, got %s", r.Method)
			}
			_, _ = w.Write([]byte(f.innerBody))
		case r.URL.Path == "/api/timedtext":
			_, _ = w.Write([]byte(transcriptXML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func TestTranscript_DirectWatchPage(t *testing.T) {
	f := newFakeYouTube(t)
	c := New(WithBaseURL(f.srv.URL))

	text, err := c.Transcript(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if text != "never gonna give you up" {
		t.Fatalf("unexpected text %q", text)
	}
	if f.innerCalls.Load() != 0 {
		t.Fatal("innertube should not be called when the watch page works")
	}
}

func TestTranscript_FallsBackToInnerTube(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchCode = http.StatusTooManyRequests
	f.innerBody = playerJSON(f.srv.URL)

	c := New(WithBaseURL(f.srv.URL))
	text, err := c.Transcript(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if text != "never gonna give you up" {
		t.Fatalf("unexpected text %q", text)
	}
	if f.innerCalls.Load() != 1 {
		t.Fatalf("expected one innertube call, got %d", f.innerCalls.Load())
	}
}

func TestTranscript_UsesProxyBeforeInnerTube(t *testing.T) {
	f := newFakeYouTube(t)
	var direct atomic.Int32
	blocked := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		direct.Add(1)
		return nil, errors.New("connection reset")
	})}

	c := New(WithBaseURL(f.srv.URL), WithProxyClient(http.DefaultClient))
	c.HTTP = blocked

	text, err := c.Transcript(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if text != "never gonna give you up" {
		t.Fatalf("unexpected text %q", text)
	}
	if direct.Load() != 1 {
		t.Fatalf("expected one direct attempt, got %d", direct.Load())
	}
	if f.innerCalls.Load() != 0 {
		t.Fatal("innertube should not be reached after proxy success")
	}
}

func TestTranscript_CaptionsDisabled(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchBody = func(string) string {
		return `<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"}};</script>`
	}
	f.innerBody = `{"playabilityStatus":{"status":"OK"}}`

	c := New(WithBaseURL(f.srv.URL))
	_, err := c.Transcript(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, ErrCaptionsDisabled) {
		t.Fatalf("expected ErrCaptionsDisabled, got %v", err)
	}
}

func TestTranscript_Unplayable(t *testing.T) {
	f := newFakeYouTube(t)
	f.watchBody = func(string) string {
		return `<script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}};</script>`
	}
	f.innerBody = `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`

	c := New(WithBaseURL(f.srv.URL))
	if _, err := c.Transcript(context.Background(), "dQw4w9WgXcQ"); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
