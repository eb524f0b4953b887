package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTranslation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   TranslateResult
		tagged bool
	}{
		{
			name:   "both tags",
			input:  "###TITLE###\nChương 1\n\n###CONTENT###\nNội dung.\n",
			want:   TranslateResult{Title: "Chương 1", Content: "Nội dung."},
			tagged: true,
		},
		{
			name:   "inline title",
			input:  "###TITLE### Tựa\n###CONTENT###\nA\nB",
			want:   TranslateResult{Title: "Tựa", Content: "A\nB"},
			tagged: true,
		},
		{
			name:   "no tags",
			input:  "  just text  ",
			want:   TranslateResult{Content: "just text"},
			tagged: false,
		},
		{
			name:   "content tag only",
			input:  "###CONTENT###\nbody",
			want:   TranslateResult{Content: "###CONTENT###\nbody"},
			tagged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tagged := ParseTranslation(tt.input)
			assert.Equal(t, tt.tagged, tagged)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		score  float64
		scored bool
	}{
		{"Match: 87%\nGood.", 87, true},
		{"Khớp: 92.5 %", 92.5, true},
		{"first 70% then 90%", 70, true},
		{"score 150%", 100, true},
		{"no number here", 0, false},
	}

	for _, tt := range tests {
		got := ParseReview(tt.input)
		assert.Equal(t, tt.scored, got.Scored, tt.input)
		assert.InDelta(t, tt.score, got.Score, 0.001, tt.input)
		assert.NotEmpty(t, got.Report)
	}
}
