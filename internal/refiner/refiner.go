// Package refiner rewrites OCR transcripts with a language model: it
// classifies the text and masks personal names.
package refiner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ibeckermayer/threadkeeper/internal/store"
)

// Category is the kind of post a transcript was classified as
type Category string

const (
	Question Category = "質問回答"
	Listing  Category = "案件投稿"
	Noise    Category = "スルーデータ"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case Question, Listing, Noise:
		return true
	}
	return false
}

// Refinement is a classified, cleaned transcript
type Refinement struct {
	Category Category
	Body     string
}

// String renders the refinement in the stored transcript format.
func (r Refinement) String() string {
	return fmt.Sprintf("%s：%s\n%s：%s", categoryMarker, r.Category, bodyMarker, r.Body)
}

// Provider sends one prompt to a model and returns its text answer
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Recorder keeps prompt/response pairs for debugging
type Recorder interface {
	SaveRefinerExchange(ex store.RefinerExchange) (string, error)
}

// Refiner handles LLM-based transcript rewriting
type Refiner struct {
	provider Provider
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a Refiner. recorder may be nil.
func New(provider Provider, recorder Recorder, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{provider: provider, recorder: recorder, logger: logger, now: time.Now}
}

// Refine classifies transcript and returns the rewritten text. On error
// the caller keeps the raw transcript.
func (r *Refiner) Refine(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	prompt := BuildPrompt(transcript)
	resp, err := r.provider.Complete(ctx, SystemPrompt, prompt)
	r.record(ctx, prompt, resp, err)
	if err != nil {
		return "", fmt.Errorf("failed to refine transcript: %w", err)
	}

	ref, err := ParseResponse(resp)
	if err != nil {
		return "", err
	}
	r.logger.Debug("refined transcript", "category", ref.Category, "chars", len([]rune(ref.Body)))
	return ref.String(), nil
}

func (r *Refiner) record(ctx context.Context, prompt, resp string, callErr error) {
	if r.recorder == nil {
		return
	}
	ex := store.RefinerExchange{
		Timestamp: r.now(),
		Provider:  r.provider.Name(),
		Model:     r.provider.Model(),
		UnitID:    unitIDFrom(ctx),
		Prompt:    prompt,
		Response:  resp,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	if path, err := r.recorder.SaveRefinerExchange(ex); err != nil {
		r.logger.Warn("failed to cache refiner exchange", "error", err)
	} else {
		r.logger.Debug("cached refiner exchange", "path", path)
	}
}

type unitIDKey struct{}

// WithUnitID tags exchanges recorded under ctx with the Unit's id.
func WithUnitID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, unitIDKey{}, id)
}

func unitIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(unitIDKey{}).(string)
	return id
}
