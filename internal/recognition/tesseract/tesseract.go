// Package tesseract recognizes text locally with Tesseract instead of a
// remote service. It requires the tesseract and leptonica shared libraries.
package tesseract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"listcart/internal/recognition"
	"listcart/pkg/domain"
)

// maxImageBytes bounds the image read from the store.
const maxImageBytes = 32 << 20

// ObjectReader opens stored objects.
type ObjectReader interface {
	Open(ctx context.Context, ref domain.ObjectRef) (io.ReadCloser, error)
}

// Engine implements recognition.Recognizer with a gosseract client per call.
type Engine struct {
	objects       ObjectReader
	languages     []string
	clientFactory func() *gosseract.Client
}

func NewEngine(objects ObjectReader, languages []string) *Engine {
	return &Engine{objects: objects, languages: languages, clientFactory: gosseract.NewClient}
}

// Recognize returns one LINE block per text line followed by one WORD block
// per word, with Tesseract's confidences.
func (e *Engine) Recognize(ctx context.Context, ref domain.ObjectRef) (*recognition.Result, error) {
	rc, err := e.objects.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes))
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	lines, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	words, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	result := &recognition.Result{Blocks: make([]recognition.Block, 0, len(lines)+len(words))}
	result.Blocks = appendBoxes(result.Blocks, lines, recognition.KindLine)
	result.Blocks = appendBoxes(result.Blocks, words, recognition.KindWord)
	return result, nil
}

func appendBoxes(dst []recognition.Block, boxes []gosseract.BoundingBox, kind recognition.BlockKind) []recognition.Block {
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		dst = append(dst, recognition.Block{Text: text, Kind: kind, Confidence: b.Confidence})
	}
	return dst
}
