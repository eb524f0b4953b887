package segment

import (
	"strings"
	"testing"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ideographSentence(n int) string {
	return strings.Repeat("字", n) + "。"
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "latin words", text: "Hello, brave new world!", want: 4},
		{name: "ideographs count per char plus run", text: "你好世界", want: 5},
		{name: "mixed", text: "李明 said hi", want: 2 + 1 + 2},
		{name: "underscore joins", text: "snake_case word", want: 2},
		{name: "punctuation only", text: "。！？", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordCount(tt.text))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "cjk terminators", text: "他来了。她走了！真的吗？", want: []string{"他来了。", "她走了！", "真的吗？"}},
		{name: "latin with spaces", text: "One. Two!  Three?", want: []string{"One.", "Two!", "Three?"}},
		{name: "punctuation run stays together", text: "What?!  Yes...", want: []string{"What?!", "Yes..."}},
		{name: "no boundary", text: "no terminator here", want: []string{"no terminator here"}},
		{name: "trailing fragment kept", text: "First. second", want: []string{"First.", "second"}},
		{name: "empty", text: "   ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestPack(t *testing.T) {
	t.Parallel()

	identity := func(n int) int { return n }

	tests := []struct {
		name  string
		items []int
		bound int
		want  [][]int
	}{
		{name: "fits", items: []int{1, 2, 3}, bound: 10, want: [][]int{{1, 2, 3}}},
		{name: "exact bound stays", items: []int{5, 5, 5}, bound: 10, want: [][]int{{5, 5}, {5}}},
		{name: "oversized first", items: []int{20, 1, 1}, bound: 10, want: [][]int{{20}, {1, 1}}},
		{name: "oversized middle", items: []int{3, 20, 3}, bound: 10, want: [][]int{{3}, {20}, {3}}},
		{name: "empty", items: nil, bound: 10, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pack(tt.items, identity, tt.bound))
		})
	}
}

func TestSegmenter_SplitLongIdeographicChapter(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for range 70 {
		b.WriteString(ideographSentence(100))
	}

	units := New(3000).Split(b.String())
	require.Len(t, units, 3)
	for i, u := range units {
		assert.Equal(t, i+1, u.Index)
		assert.LessOrEqual(t, u.Words, 3000)
		assert.Equal(t, u.Words, WordCount(u.Text))
	}
	assert.Greater(t, units[0].Words, 2800)
	assert.Greater(t, units[1].Words, 2800)
	assert.Less(t, units[2].Words, units[0].Words)
}

func TestSegmenter_Idempotent(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 400)
	seg := New(500)

	first := seg.Split(text)
	second := seg.Split(text)
	assert.Equal(t, first, second)
}

func TestSegmenter_BoundOnlyExceededBySingleSentence(t *testing.T) {
	t.Parallel()

	text := ideographSentence(10) + ideographSentence(400) + ideographSentence(10) + ideographSentence(10)
	units := New(100).Split(text)

	require.Len(t, units, 3)
	assert.Equal(t, ideographSentence(10), units[0].Text)
	assert.Equal(t, ideographSentence(400), units[1].Text)
	assert.Greater(t, units[1].Words, 100)
	assert.Equal(t, ideographSentence(10)+"\n"+ideographSentence(10), units[2].Text)
}

func TestSegmenter_DefaultBound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultMaxWords, New(0).MaxWords())
	assert.Equal(t, 42, New(42).MaxWords())
	assert.Empty(t, New(0).Split(""))
}

func TestMerge(t *testing.T) {
	t.Parallel()

	segments := []corpus.Segment{
		{Index: 1, Translation: " first "},
		{Index: 2, Translation: ""},
		{Index: 3, Translation: "third"},
		{Index: 4, Translation: "   "},
	}
	assert.Equal(t, "first\n\nthird", Merge(segments))
	assert.Equal(t, "", Merge(nil))
}

func TestProgressOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Progress{}, ProgressOf(nil))

	p := ProgressOf([]corpus.Segment{
		{Index: 1, Translation: "done"},
		{Index: 2},
		{Index: 3, Translation: " "},
		{Index: 4, Translation: "done"},
	})
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.Translated)
	assert.Equal(t, 2, p.Remaining)
	assert.InDelta(t, 50.0, p.Percent, 0.0001)
}

func TestNextUntranslated(t *testing.T) {
	t.Parallel()

	seg, ok := NextUntranslated([]corpus.Segment{{Index: 1, Translation: "x"}, {Index: 2}, {Index: 3}})
	require.True(t, ok)
	assert.Equal(t, 2, seg.Index)

	_, ok = NextUntranslated([]corpus.Segment{{Index: 1, Translation: "x"}})
	assert.False(t, ok)
}
