package residue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_Empty(t *testing.T) {
	t.Parallel()

	r := Detect("")
	assert.False(t, r.HasForeign)
	assert.Equal(t, SeverityNone, r.Severity)
	assert.Equal(t, 0, r.Total)
	for _, s := range r.Scripts {
		assert.Equal(t, 0, s.Count)
	}
	assert.Empty(t, r.Message)
}

func TestDetect_DistinctPerScript(t *testing.T) {
	t.Parallel()

	text := "Anh ta nói 你好你好 rồi 안녕 và カタ カ ไทย."
	r := Detect(text)

	assert.True(t, r.HasForeign)
	assert.Equal(t, 2, r.Count("chinese"))
	assert.Equal(t, 2, r.Count("korean"))
	assert.Equal(t, 2, r.Count("japanese"))
	assert.Equal(t, 3, r.Count("thai"))
	assert.Equal(t, 9, r.Total)
	assert.Equal(t, []string{"你", "好"}, r.Scripts[0].Chars)
	assert.Contains(t, r.Message, "2 Chinese: 你 好")
	assert.Contains(t, r.Message, "3 Thai: ไ ท ย")
}

func TestDetect_MessageSamplesCapped(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 1000) + "一二三四五六七八九十百千"
	r := Detect(text)

	require.Equal(t, 12, r.Count("chinese"))
	assert.Equal(t, "12 Chinese: 一 二 三 四 五 六 七 八 九 十", r.Message)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		foreign int
		length  int
		want    Severity
	}{
		{name: "none", foreign: 0, length: 100, want: SeverityNone},
		{name: "none on empty", foreign: 0, length: 0, want: SeverityNone},
		{name: "empty length", foreign: 2, length: 0, want: SeverityHigh},
		{name: "above ten percent", foreign: 11, length: 100, want: SeverityHigh},
		{name: "exactly ten percent is medium", foreign: 10, length: 100, want: SeverityMedium},
		{name: "between five and ten", foreign: 7, length: 100, want: SeverityMedium},
		{name: "exactly five percent few chars", foreign: 5, length: 100, want: SeverityLow},
		{name: "six chars low ratio", foreign: 6, length: 1000, want: SeverityMedium},
		{name: "one char", foreign: 1, length: 1000, want: SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.foreign, tt.length))
		})
	}
}

func TestDetect_LengthCountsRunes(t *testing.T) {
	t.Parallel()

	// 1 distinct ideograph in 20 runes is exactly 5 percent.
	text := "你" + strings.Repeat("ầ", 19)
	r := Detect(text)
	assert.Equal(t, 20, r.Length)
	assert.Equal(t, SeverityLow, r.Severity)
}

func TestShouldWarn(t *testing.T) {
	t.Parallel()

	assert.False(t, ShouldWarn("chỉ có 你 好", DefaultWarnThreshold))
	assert.True(t, ShouldWarn("你 好 世", DefaultWarnThreshold))
	assert.True(t, ShouldWarn("你", 1))
	assert.False(t, ShouldWarn("", 1))
}

func TestHighlight(t *testing.T) {
	t.Parallel()

	got := Highlight("Xin 你好 chào 안녕!")
	assert.Equal(t,
		`Xin <mark class="residue residue-chinese">你好</mark> chào <mark class="residue residue-korean">안녕</mark>!`,
		got)

	assert.Equal(t, "plain text", Highlight("plain text"))
	assert.Equal(t, "", Highlight(""))
}

func TestHighlight_AdjacentScriptsSplitRuns(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	got := d.Highlight("你カ", func(script, run string) string {
		return "[" + script + ":" + run + "]"
	})
	assert.Equal(t, "[chinese:你][japanese:カ]", got)
}

func TestNewDetector_CustomScripts(t *testing.T) {
	t.Parallel()

	d := NewDetector(Thai)
	r := d.Detect("你 ไ")
	assert.Equal(t, 1, r.Total)
	require.Len(t, r.Scripts, 1)
	assert.Equal(t, "thai", r.Scripts[0].Script)
}
