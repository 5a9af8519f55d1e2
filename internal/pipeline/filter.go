package pipeline

import (
	"strings"

	"listcart/internal/recognition"
)

// DefaultConfidenceThreshold is the baseline acceptance bar. A block must
// score strictly above it.
const DefaultConfidenceThreshold = 80.0

// DiscardReason says why a block produced no intent. Discards are expected
// noise, not failures.
type DiscardReason string

const (
	DiscardNotLine       DiscardReason = "not_line"
	DiscardLowConfidence DiscardReason = "low_confidence"
	DiscardEmptyText     DiscardReason = "empty_text"
)

// Discard pairs a dropped block with its reason.
type Discard struct {
	Block  recognition.Block
	Reason DiscardReason
}

// AcceptedLines keeps LINE blocks whose confidence is strictly greater than
// threshold, in input order. Accepted blocks carry trimmed text.
func AcceptedLines(result *ExtractionResult, threshold float64) ([]recognition.Block, []Discard) {
	if result == nil {
		return nil, nil
	}
	var (
		accepted []recognition.Block
		discards []Discard
	)
	for _, b := range result.Blocks {
		switch {
		case b.Kind != recognition.KindLine:
			discards = append(discards, Discard{Block: b, Reason: DiscardNotLine})
		case !(b.Confidence > threshold):
			discards = append(discards, Discard{Block: b, Reason: DiscardLowConfidence})
		case strings.TrimSpace(b.Text) == "":
			discards = append(discards, Discard{Block: b, Reason: DiscardEmptyText})
		default:
			b.Text = strings.TrimSpace(b.Text)
			accepted = append(accepted, b)
		}
	}
	return accepted, discards
}
