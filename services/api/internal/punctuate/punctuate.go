// Package punctuate restores sentence punctuation in caption transcripts so
// the text reads well aloud.
package punctuate

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/listening-companion/services/api/internal/llm"
)

const (
	// ChunkChars is the largest slice of transcript sent in one request.
	ChunkChars = 12000
	minChars   = 20
	maxWorkers = 4
)

const systemPrompt = `You are a transcript editor. Add proper punctuation to make this text easy to understand when read aloud or listened to.

Rules:
- Add periods (.) to mark clear sentence endings. This helps listeners know when one thought ends and another begins.
- Add commas (,) for natural pauses and to separate clauses.
- Add question marks (?) for questions, exclamation marks (!) for emphasis.
- Use colons (:) before lists or explanations.
- Preserve the exact wording. Do not change, add, or remove any words.
- Return ONLY the punctuated text, nothing else. No explanations or summaries.`

type Restorer struct {
	LLM llm.Completer
	Log *zap.Logger
}

func New(c llm.Completer, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{LLM: c, Log: log}
}

// Restore returns text with punctuation added. Any failure returns the
// input unchanged. A chunk the model answers empty keeps its original text.
func (r *Restorer) Restore(ctx context.Context, text string) string {
	if r == nil || r.LLM == nil || len([]rune(text)) < minChars {
		return text
	}
	chunks := Split(text, ChunkChars)
	out := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := r.LLM.Complete(gctx, llm.Request{
				Kind:        "punctuate",
				System:      systemPrompt,
				User:        chunk,
				Temperature: 0.2,
			})
			if err != nil {
				return err
			}
			if res = strings.TrimSpace(res); res == "" {
				res = chunk
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.Log.Warn("punctuation restoration failed", zap.Error(err))
		return text
	}
	return strings.Join(strings.Fields(strings.Join(out, " ")), " ")
}

// Split cuts text into chunks of at most size runes, ending each chunk
// after the last space inside the window when there is one.
func Split(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); {
		end := min(i+size, len(runes))
		if end < len(runes) {
			for j := end - 1; j > i; j-- {
				if runes[j] == ' ' {
					end = j + 1
					break
				}
			}
		}
		if c := strings.TrimSpace(string(runes[i:end])); c != "" {
			chunks = append(chunks, c)
		}
		i = end
	}
	return chunks
}
