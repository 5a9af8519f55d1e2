package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"listcart/internal/recognition"
)

func TestAcceptedLines(t *testing.T) {
	tests := []struct {
		name     string
		blocks   []recognition.Block
		accepted []string
		reasons  []DiscardReason
	}{
		{
			name: "line and word with same text",
			blocks: []recognition.Block{
				{Text: "mjölk", Kind: recognition.KindLine, Confidence: 95},
				{Text: "mjölk", Kind: recognition.KindWord, Confidence: 95},
			},
			accepted: []string{"mjölk"},
			reasons:  []DiscardReason{DiscardNotLine},
		},
		{
			name:    "below threshold",
			blocks:  []recognition.Block{{Text: "bröd", Kind: recognition.KindLine, Confidence: 79.9}},
			reasons: []DiscardReason{DiscardLowConfidence},
		},
		{
			name:    "exactly at threshold is excluded",
			blocks:  []recognition.Block{{Text: "ost", Kind: recognition.KindLine, Confidence: 80}},
			reasons: []DiscardReason{DiscardLowConfidence},
		},
		{
			name:     "just above threshold",
			blocks:   []recognition.Block{{Text: "ost", Kind: recognition.KindLine, Confidence: 80.0001}},
			accepted: []string{"ost"},
		},
		{
			name:    "NaN confidence",
			blocks:  []recognition.Block{{Text: "ägg", Kind: recognition.KindLine, Confidence: math.NaN()}},
			reasons: []DiscardReason{DiscardLowConfidence},
		},
		{
			name:    "blank text",
			blocks:  []recognition.Block{{Text: "  ", Kind: recognition.KindLine, Confidence: 99}},
			reasons: []DiscardReason{DiscardEmptyText},
		},
		{
			name: "page blocks and unknown kinds",
			blocks: []recognition.Block{
				{Text: "whole page", Kind: recognition.KindPage, Confidence: 99},
				{Text: "x", Kind: recognition.BlockKind("KEY_VALUE_SET"), Confidence: 99},
			},
			reasons: []DiscardReason{DiscardNotLine, DiscardNotLine},
		},
		{
			name: "order preserved and text trimmed",
			blocks: []recognition.Block{
				{Text: " smör ", Kind: recognition.KindLine, Confidence: 90},
				{Text: "kaffe", Kind: recognition.KindLine, Confidence: 85},
			},
			accepted: []string{"smör", "kaffe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, discards := AcceptedLines(&ExtractionResult{Blocks: tt.blocks}, DefaultConfidenceThreshold)

			var texts []string
			for _, b := range accepted {
				texts = append(texts, b.Text)
			}
			var reasons []DiscardReason
			for _, d := range discards {
				reasons = append(reasons, d.Reason)
			}
			assert.Equal(t, tt.accepted, texts)
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

// Every accepted block is a LINE strictly above the threshold, for any mix of
// kinds and confidences.
func TestAcceptedLines_FilterProperty(t *testing.T) {
	kinds := []recognition.BlockKind{recognition.KindLine, recognition.KindWord, recognition.KindPage}
	var blocks []recognition.Block
	for i := 0; i <= 1000; i++ {
		blocks = append(blocks, recognition.Block{
			Text:       "item",
			Kind:       kinds[i%len(kinds)],
			Confidence: float64(i) / 10,
		})
	}
	accepted, discards := AcceptedLines(&ExtractionResult{Blocks: blocks}, DefaultConfidenceThreshold)

	assert.Equal(t, len(blocks), len(accepted)+len(discards))
	for _, b := range accepted {
		assert.Equal(t, recognition.KindLine, b.Kind)
		assert.Greater(t, b.Confidence, DefaultConfidenceThreshold)
	}
}

func TestAcceptedLines_NilResult(t *testing.T) {
	accepted, discards := AcceptedLines(nil, DefaultConfidenceThreshold)
	assert.Empty(t, accepted)
	assert.Empty(t, discards)
}
