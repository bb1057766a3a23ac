package ocr

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"
)

// Source returns the bytes of a media reference
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Tesseract extracts text from downloaded images with libtesseract
type Tesseract struct {
	src       Source
	languages []string
	logger    *slog.Logger
}

// NewTesseract returns an extractor reading images from src.
func NewTesseract(src Source, languages []string, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if len(languages) == 0 {
		languages = []string{"jpn"}
	}
	return &Tesseract{src: src, languages: languages, logger: logger}
}

// ExtractText returns the cleaned text of ref, or "" when the image could
// not be fetched or read.
func (t *Tesseract) ExtractText(ctx context.Context, ref string) string {
	img, err := t.src.Fetch(ctx, ref)
	if err != nil {
		t.logger.Warn("media download failed", "ref", ref, "error", err)
		return ""
	}

	// a client is not safe for concurrent use
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		t.logger.Warn("ocr language rejected", "languages", t.languages, "error", err)
		return ""
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		t.logger.Warn("ocr page mode rejected", "error", err)
		return ""
	}
	if err := client.SetImageFromBytes(img); err != nil {
		t.logger.Warn("ocr image rejected", "ref", ref, "error", err)
		return ""
	}
	text, err := client.Text()
	if err != nil {
		t.logger.Warn("ocr failed", "ref", ref, "error", err)
		return ""
	}

	text = strings.TrimSpace(text)
	if suspect(text) {
		t.logger.Warn("ocr result looks garbled", "ref", ref, "chars", len([]rune(text)))
	}
	return Clean(text)
}

// suspect reports text with fewer than three letters or digits.
func suspect(text string) bool {
	n := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
			if n >= 3 {
				return false
			}
		}
	}
	return true
}
