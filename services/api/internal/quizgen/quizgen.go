// Package quizgen turns a text excerpt into one multiple-choice question.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/example/listening-companion/services/api/internal/llm"
)

// ErrFormat means the model answered with something that is not a usable quiz.
var ErrFormat = errors.New("quizgen: invalid quiz format")

// MaxContentChars bounds the excerpt sent to the model.
const MaxContentChars = 4000

var letters = []string{"A", "B", "C", "D"}

var guidance = map[string]string{
	"easy":   "Use simple vocabulary and test basic recall of explicit facts.",
	"medium": "Test understanding of main ideas and moderate inference.",
	"hard":   "Require deeper analysis, inference, and synthesis of concepts.",
}

const systemPrompt = `You are a comprehension quiz generator. Given a text chunk, create ONE multiple-choice question that tests understanding of the content. Return ONLY valid JSON in this exact format, no other text:
{"question":"Your question here?","options":{"A":"First option","B":"Second option","C":"Third option","D":"Fourth option"},"correct_answer":"A","explanation":"Brief 1-2 sentence explanation of why the correct answer is right."}

The correct_answer must be one of A, B, C, or D. Make questions clear and based on key facts or concepts from the text. The explanation should briefly clarify why the correct answer is correct (and optionally why wrong choices are wrong). Difficulty: `

// Quiz is the wire shape returned by POST /api/quiz/generate.
type Quiz struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   *string           `json:"explanation"`
}

// NormalizeDifficulty maps anything but easy/medium/hard to medium.
func NormalizeDifficulty(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if _, ok := guidance[d]; ok {
		return d
	}
	return "medium"
}

type Generator struct {
	LLM llm.Completer
	// Shuffle has rand.Shuffle's signature. Nil uses math/rand/v2.
	Shuffle func(n int, swap func(i, j int))
}

func New(c llm.Completer) *Generator {
	return &Generator{LLM: c}
}

func (g *Generator) Generate(ctx context.Context, content, difficulty string) (Quiz, error) {
	diff := NormalizeDifficulty(difficulty)
	text, err := g.LLM.Complete(ctx, llm.Request{
		Kind:        "quiz",
		System:      systemPrompt + guidance[diff],
		User:        truncate(content, MaxContentChars),
		Temperature: 0.7,
	})
	if err != nil {
		return Quiz{}, err
	}
	q, err := Parse(text)
	if err != nil {
		return Quiz{}, err
	}
	return g.shuffle(q), nil
}

type rawQuiz struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

// Parse decodes a model reply. Code fences around the JSON are tolerated.
func Parse(text string) (Quiz, error) {
	text = stripFences(text)
	var raw rawQuiz
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Quiz{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	raw.Question = strings.TrimSpace(raw.Question)
	raw.CorrectAnswer = strings.ToUpper(strings.TrimSpace(raw.CorrectAnswer))
	if raw.Question == "" || len(raw.Options) == 0 || raw.CorrectAnswer == "" {
		return Quiz{}, fmt.Errorf("%w: question, options and correct_answer are required", ErrFormat)
	}

	opts := make(map[string]string, len(letters))
	for _, k := range letters {
		v := strings.TrimSpace(raw.Options[k])
		if v == "" {
			return Quiz{}, fmt.Errorf("%w: option %s is missing", ErrFormat, k)
		}
		opts[k] = v
	}
	if _, ok := opts[raw.CorrectAnswer]; !ok {
		return Quiz{}, fmt.Errorf("%w: correct_answer %q has no option", ErrFormat, raw.CorrectAnswer)
	}

	q := Quiz{Question: raw.Question, Options: opts, CorrectAnswer: raw.CorrectAnswer}
	if e := strings.TrimSpace(raw.Explanation); e != "" {
		q.Explanation = &e
	}
	return q, nil
}

// shuffle reassigns option texts to A.. in random order so the correct
// answer is not always first, then remaps the correct key.
func (g *Generator) shuffle(q Quiz) Quiz {
	type option struct {
		key, text string
	}
	opts := make([]option, 0, len(letters))
	for _, k := range letters {
		if v, ok := q.Options[k]; ok {
			opts = append(opts, option{k, v})
		}
	}

	shuffle := g.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	out := q
	out.Options = make(map[string]string, len(opts))
	for i, o := range opts {
		out.Options[letters[i]] = o.text
		if o.key == q.CorrectAnswer {
			out.CorrectAnswer = letters[i]
		}
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
