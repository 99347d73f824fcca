// Package content imports listenable text from a URL: readable article
// text from web pages, or caption transcripts from YouTube videos.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/observe"
	"github.com/example/listening-companion/services/api/internal/cache"
	"github.com/example/listening-companion/services/api/internal/youtube"
)

const (
	fetchTimeout    = 15 * time.Second
	maxRedirects    = 5
	maxPageBytes    = 5 << 20
	minArticleChars = 50
	minCaptionChars = 20
	userAgent       = "Mozilla/5.0 (compatible; ListeningCompanion/1.0)"

	defaultArticleTitle = "Imported article"
	youtubeTitle        = "YouTube video"
)

var articleSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	".article-body",
	".post-content",
	".entry-content",
	".content",
	".article-content",
	".post-body",
	".story-body",
	".page-content",
}

const stripSelector = "script, style, nav, header, footer, aside, .ad, .ads, .sidebar"

// UserError is an import failure whose message is safe to show the caller.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

func userErr(msg string, err error) error { return &UserError{Message: msg, Err: err} }

type Result struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// Transcriber fetches the caption text of a YouTube video.
type Transcriber interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// Punctuator restores punctuation, returning the input on failure.
type Punctuator interface {
	Restore(ctx context.Context, text string) string
}

type Importer struct {
	HTTP       *http.Client
	YouTube    Transcriber
	Punctuator Punctuator
	Cache      cache.Cache
	Metrics    *observe.Metrics
	Log        *zap.Logger
}

// NewHTTPClient returns the article client: 15s timeout, at most five
// redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

var schemeRE = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL trims raw, prefixes https:// when no scheme is given and
// checks that the result parses with a host. It returns "" when invalid.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !schemeRE.MatchString(u) {
		u = "https://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return u
}

// Import fetches rawURL and extracts its text. Errors that are the caller's
// to fix are *UserError.
func (im *Importer) Import(ctx context.Context, rawURL string) (Result, error) {
	u := NormalizeURL(rawURL)
	if u == "" {
		return Result{}, userErr("Valid URL required", nil)
	}

	key := "content:" + u
	if im.Cache != nil {
		var cached Result
		ok, err := im.Cache.Get(ctx, key, &cached)
		if err != nil {
			im.log().Warn("import cache get", zap.Error(err))
		}
		im.Metrics.RecordCacheLookup(ctx, ok)
		if ok {
			return cached, nil
		}
	}

	var (
		res Result
		err error
	)
	if youtube.IsURL(u) {
		res, err = im.importVideo(ctx, youtube.VideoID(u))
	} else {
		res, err = im.importArticle(ctx, u)
	}
	if err != nil {
		return Result{}, err
	}

	if im.Cache != nil {
		if err := im.Cache.Set(ctx, key, res); err != nil {
			im.log().Warn("import cache set", zap.Error(err))
		}
	}
	return res, nil
}

func (im *Importer) importVideo(ctx context.Context, videoID string) (Result, error) {
	if im.YouTube == nil {
		return Result{}, userErr("Could not get transcript from this YouTube video.", nil)
	}
	text, err := im.YouTube.Transcript(ctx, videoID)
	if err != nil {
		im.log().Warn("youtube transcript", zap.String("video_id", videoID), zap.Error(err))
		return Result{}, userErr(transcriptMessage(err), err)
	}
	text = collapse(text)
	if len([]rune(text)) < minCaptionChars {
		return Result{}, userErr("Could not extract enough text from this video's captions.", nil)
	}
	if im.Punctuator != nil {
		text = im.Punctuator.Restore(ctx, text)
	}
	return Result{Text: text, Title: youtubeTitle}, nil
}

func transcriptMessage(err error) string {
	switch {
	case errors.Is(err, youtube.ErrNoCaptions):
		return "This video has no captions. Only videos with subtitles/captions can be imported."
	case errors.Is(err, youtube.ErrCaptionsDisabled):
		return "This video has captions disabled."
	case errors.Is(err, youtube.ErrNotAvailable):
		return "No transcript available for this video."
	case errors.Is(err, youtube.ErrTooManyRequests):
		return "Too many requests. Please try again later."
	default:
		return "Could not get transcript from this YouTube video."
	}
}

func (im *Importer) importArticle(ctx context.Context, u string) (Result, error) {
	start := time.Now()
	page, err := im.fetch(ctx, u)
	im.Metrics.RecordProviderRequest(ctx, "article", "fetch", fetchStatus(err), time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return Result{}, userErr("URL did not return HTML", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = defaultArticleTitle
	}

	text := collapse(ExtractText(doc))
	if len([]rune(text)) < minArticleChars {
		return Result{}, userErr("Could not extract enough text from this page. Try a different URL.", nil)
	}
	return Result{Text: text, Title: title}, nil
}

// ExtractText strips page chrome and returns the first article-like
// container with more than 200 characters, else the body when it has more
// than 100. doc is modified.
func ExtractText(doc *goquery.Document) string {
	doc.Find(stripSelector).Remove()

	for _, sel := range articleSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); len([]rune(text)) > 200 {
			return text
		}
	}
	body := strings.TrimSpace(doc.Find("body").Text())
	if len([]rune(body)) > 100 {
		return body
	}
	return ""
}

func (im *Importer) fetch(ctx context.Context, u string) ([]byte, error) {
	hc := im.HTTP
	if hc == nil {
		hc = NewHTTPClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, userErr("Valid URL required", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, userErr("Could not fetch URL", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, userErr("Access denied by website", nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, userErr("Page not found", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 400:
		return nil, userErr("Could not fetch URL", fmt.Errorf("status %d", resp.StatusCode))
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, userErr("URL did not return HTML", fmt.Errorf("content type %q", ct))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, userErr("Could not fetch URL", err)
	}
	return b, nil
}

func (im *Importer) log() *zap.Logger {
	if im.Log == nil {
		return zap.NewNop()
	}
	return im.Log
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fetchStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
