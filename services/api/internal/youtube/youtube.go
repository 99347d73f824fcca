// Package youtube fetches caption transcripts for YouTube videos. YouTube
// blocks many cloud IP ranges, so the client walks a chain of strategies:
// the watch page fetched directly, the watch page through the configured
// proxy, then the InnerTube player API.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/observe"
)

var (
	ErrCaptionsDisabled = errors.New("youtube: transcript is disabled on this video")
	ErrNotAvailable     = errors.New("youtube: transcript not available")
	ErrTooManyRequests  = errors.New("youtube: too many requests")
	ErrNoCaptions       = errors.New("youtube: no caption segments")
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
	// Proxy is the proxied client for the second strategy. Nil skips it.
	Proxy   *http.Client
	CB      *gobreaker.CircuitBreaker
	Metrics *observe.Metrics
	Log     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.BaseURL = strings.TrimRight(u, "/") }
}

func WithProxyClient(hc *http.Client) Option {
	return func(c *Client) { c.Proxy = hc }
}

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.Metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func New(opts ...Option) *Client {
	c := &Client{
		BaseURL:   defaultBaseURL,
		UserAgent: defaultUserAgent,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		Log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Track is one caption track advertised by the player response.
type Track struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []Track `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type strategy struct {
	name   string
	client *http.Client
	tracks func(ctx context.Context, hc *http.Client, videoID string) ([]Track, error)
}

// Transcript returns the whitespace-collapsed caption text of videoID.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	strategies := []strategy{{name: "direct", client: c.HTTP, tracks: c.watchPageTracks}}
	if c.Proxy != nil {
		strategies = append(strategies, strategy{name: "proxy", client: c.Proxy, tracks: c.watchPageTracks})
	}
	strategies = append(strategies, strategy{name: "innertube", client: c.HTTP, tracks: c.innerTubeTracks})

	var errs []error
	for _, s := range strategies {
		start := time.Now()
		text, err := c.tryStrategy(ctx, s, videoID)
		c.Metrics.RecordProviderRequest(ctx, "youtube", s.name, status(err), time.Since(start).Seconds())
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.Log.Warn("youtube strategy failed", zap.String("strategy", s.name), zap.String("video_id", videoID), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return "", errors.Join(errs...)
}

func (c *Client) tryStrategy(ctx context.Context, s strategy, videoID string) (string, error) {
	tracks, err := s.tracks(ctx, s.client, videoID)
	if err != nil {
		return "", err
	}
	track, ok := pickTrack(tracks)
	if !ok {
		return "", ErrNotAvailable
	}
	body, err := c.get(ctx, s.client, track.BaseURL)
	if err != nil {
		return "", err
	}
	segments, err := ParseTimedText(body)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", ErrNoCaptions
	}
	return strings.Join(strings.Fields(strings.Join(segments, " ")), " "), nil
}

var playerMarker = []byte("ytInitialPlayerResponse = ")

func (c *Client) watchPageTracks(ctx context.Context, hc *http.Client, videoID string) ([]Track, error) {
	page, err := c.get(ctx, hc, c.BaseURL+"/watch?v="+videoID+"&hl=en")
	if err != nil {
		return nil, err
	}
	if bytes.Contains(page, []byte(`class="g-recaptcha"`)) {
		return nil, ErrTooManyRequests
	}
	i := bytes.Index(page, playerMarker)
	if i < 0 {
		return nil, ErrNotAvailable
	}
	var pr playerResponse
	if err := json.NewDecoder(bytes.NewReader(page[i+len(playerMarker):])).Decode(&pr); err != nil {
		return nil, fmt.Errorf("youtube: decode player response: %w", err)
	}
	return tracksFrom(pr)
}

func (c *Client) innerTubeTracks(ctx context.Context, hc *http.Client, videoID string) ([]Track, error) {
	endpoint := c.BaseURL + "/youtubei/v1/player"
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{"clientName": "ANDROID", "clientVersion": "20.10.38", "hl": "en"},
		},
		"videoId": videoID,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, hc, http.MethodPost, endpoint, bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, err
	}
	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("youtube: decode innertube response: %w", err)
	}
	return tracksFrom(pr)
}

func tracksFrom(pr playerResponse) ([]Track, error) {
	if st := pr.PlayabilityStatus.Status; st != "" && st != "OK" {
		return nil, fmt.Errorf("%w: %s %s", ErrNotAvailable, st, pr.PlayabilityStatus.Reason)
	}
	if pr.Captions == nil {
		return nil, ErrCaptionsDisabled
	}
	tracks := pr.Captions.Renderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, ErrNotAvailable
	}
	return tracks, nil
}

// pickTrack prefers manual English, then auto-generated English, then the
// first track.
func pickTrack(tracks []Track) (Track, bool) {
	if len(tracks) == 0 {
		return Track{}, false
	}
	var asr *Track
	for i := range tracks {
		t := tracks[i]
		if !isEnglish(t.LanguageCode) || t.BaseURL == "" {
			continue
		}
		if t.Kind != "asr" {
			return t, true
		}
		if asr == nil {
			asr = &tracks[i]
		}
	}
	if asr != nil {
		return *asr, true
	}
	return tracks[0], tracks[0].BaseURL != ""
}

func isEnglish(code string) bool {
	code = strings.ToLower(code)
	return code == "en" || strings.HasPrefix(code, "en-")
}

// ParseTimedText returns the caption segments of a timedtext document. Both
// the legacy <text> format and the srv3 <p>/<s> format are accepted.
func ParseTimedText(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		segments []string
		cur      strings.Builder
		depth    int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("youtube: parse timedtext: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text" || t.Name.Local == "p" {
				depth++
			}
		case xml.CharData:
			if depth > 0 {
				cur.Write(t)
			}
		case xml.EndElement:
			if (t.Name.Local == "text" || t.Name.Local == "p") && depth > 0 {
				depth--
				if depth == 0 {
					if s := strings.TrimSpace(html.UnescapeString(cur.String())); s != "" {
						segments = append(segments, s)
					}
					cur.Reset()
				}
			}
		}
	}
	return segments, nil
}

func (c *Client) get(ctx context.Context, hc *http.Client, u string) ([]byte, error) {
	return c.do(ctx, hc, http.MethodGet, u, nil, "")
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, u string, body io.Reader, contentType string) ([]byte, error) {
	if c.CB == nil {
		return c.doHTTP(ctx, hc, method, u, body, contentType)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return c.doHTTP(ctx, hc, method, u, body, contentType)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doHTTP(ctx context.Context, hc *http.Client, method, u string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.youtube.com/")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrTooManyRequests
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	return b, nil
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
