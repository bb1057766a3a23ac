package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// Separator joins the transcripts of a Unit's media.
const Separator = "\n\n"

// Extractor turns one media reference into text. A failure returns "".
type Extractor interface {
	ExtractText(ctx context.Context, mediaRef string) string
}

// Transcriber reads every image of a Unit with bounded concurrency
type Transcriber struct {
	ex     Extractor
	limit  int
	logger *slog.Logger
}

// NewTranscriber returns a Transcriber running at most limit extractions at once.
func NewTranscriber(ex Extractor, limit int, logger *slog.Logger) *Transcriber {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{ex: ex, limit: limit, logger: logger}
}

// Transcribe returns the labeled text of u's media in media order.
// Media without readable text is left out.
func (t *Transcriber) Transcribe(ctx context.Context, u types.Unit) string {
	if len(u.Media) == 0 {
		return ""
	}

	labels := Labels(u.Media)
	texts := make([]string, len(u.Media))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.limit)
	for i, ref := range u.Media {
		g.Go(func() error {
			texts[i] = t.ex.ExtractText(ctx, ref)
			return nil
		})
	}
	g.Wait()

	var parts []string
	for i, text := range texts {
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", labels[i], text))
	}
	t.logger.Debug("transcribed unit", "post_id", u.PrimaryID, "media", len(u.Media), "read", len(parts))
	return strings.Join(parts, Separator)
}

// Labels names each media reference. Photos and video posters are
// numbered separately from 1.
func Labels(media []string) []string {
	labels := make([]string, len(media))
	photos, posters := 0, 0
	for i, ref := range media {
		if IsVideoPoster(ref) {
			posters++
			labels[i] = fmt.Sprintf("動画サムネイル%d", posters)
		} else {
			photos++
			labels[i] = fmt.Sprintf("画像%d", photos)
		}
	}
	return labels
}

// IsVideoPoster reports whether ref is a video thumbnail.
func IsVideoPoster(ref string) bool {
	return strings.Contains(ref, "video_thumb")
}
