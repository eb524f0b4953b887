package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/persistence"
	"github.com/MimeLyc/contextual-novel-translator/internal/translator"
)

type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	requests  []translator.TranslateRequest
	translate func(n int, req translator.TranslateRequest) (translator.TranslateResult, error)
	review    func(source, translated string) (translator.ReviewResult, error)
	fix       func(req translator.FixRequest) (translator.TranslateResult, error)
}

func (g *fakeGenerator) Translate(_ context.Context, _ credential.Credential, req translator.TranslateRequest) (translator.TranslateResult, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.translate != nil {
		return g.translate(n, req)
	}
	return translator.TranslateResult{Title: "Chương một", Content: fmt.Sprintf("Đoạn %d", n)}, nil
}

func (g *fakeGenerator) Review(_ context.Context, _ credential.Credential, source, translated, _ string) (translator.ReviewResult, error) {
	if g.review != nil {
		return g.review(source, translated)
	}
	return translator.ReviewResult{Score: 90, Report: "Độ trung thực: 90%", Scored: true}, nil
}

func (g *fakeGenerator) Fix(_ context.Context, _ credential.Credential, req translator.FixRequest) (translator.TranslateResult, error) {
	if g.fix != nil {
		return g.fix(req)
	}
	return translator.TranslateResult{}, errs.NewError(errs.ErrParse, "no tags")
}

func (g *fakeGenerator) lastRequest() translator.TranslateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type fakeCreds struct {
	mu      sync.Mutex
	rotated int
}

func (c *fakeCreds) Acquire(context.Context) (credential.Credential, error) {
	return credential.Credential{ID: 1, Secret: "AIzaSyTestKey0000001", Provider: translator.ProviderGemini, Active: true}, nil
}

func (c *fakeCreds) ForceRotate(ctx context.Context) (credential.Credential, error) {
	c.mu.Lock()
	c.rotated++
	c.mu.Unlock()
	return c.Acquire(ctx)
}

type fixture struct {
	store *persistence.SQLiteStore
	gen   *fakeGenerator
	creds *fakeCreds
	orch  *Orchestrator
	c     corpus.Corpus
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "novels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := store.CreateCorpus(context.Background(), corpus.Corpus{Title: "Tiên Nghịch", SourceLanguage: "zh"})
	require.NoError(t, err)

	f := &fixture{store: store, gen: &fakeGenerator{}, creds: &fakeCreds{}, c: c}
	f.orch = NewOrchestrator(store, f.gen, f.creds, opts...)
	return f
}

func (f *fixture) volume(t *testing.T, index int) corpus.Volume {
	t.Helper()
	v, err := f.store.CreateVolume(context.Background(), corpus.Volume{CorpusID: f.c.ID, Index: index, Title: fmt.Sprintf("Quyển %d", index)})
	require.NoError(t, err)
	return v
}

func (f *fixture) chapter(t *testing.T, v corpus.Volume, index int, body string) corpus.Chapter {
	t.Helper()
	ch, err := f.store.CreateChapter(context.Background(), corpus.Chapter{VolumeID: v.ID, Index: index, Title: fmt.Sprintf("第%d章", index), Body: body})
	require.NoError(t, err)
	return ch
}

func (f *fixture) load(t *testing.T, id int64) corpus.ChapterRef {
	t.Helper()
	ch, found, err := f.store.GetChapter(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	return ch
}

// longBody is 70 sentences of 100 words each: 99 ideographs plus the run
// they form.
func longBody() string {
	return strings.Repeat(strings.Repeat("林", 99)+"。", 70)
}

func TestOrchestrator_TranslateChapter_SegmentsAndMerges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithMaxWords(3000))
	ch := f.chapter(t, f.volume(t, 1), 1, longBody())

	res, err := f.orch.TranslateChapter(context.Background(), ch.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Units)
	assert.Equal(t, 3, res.Translated)
	assert.Empty(t, res.Warnings)

	segs, err := f.store.ListSegments(context.Background(), ch.ID)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, 30, strings.Count(segs[0].Source, "。"))
	assert.Equal(t, 30, strings.Count(segs[1].Source, "。"))
	assert.Equal(t, 10, strings.Count(segs[2].Source, "。"))

	got := f.load(t, ch.ID)
	assert.Equal(t, "Đoạn 1\n\nĐoạn 2\n\nĐoạn 3", got.Translation)
	assert.Equal(t, corpus.StatusTranslated, got.Status)
	assert.Equal(t, "Chương một", got.TitleTranslation)
	assert.Empty(t, got.Warning)
}

func TestOrchestrator_TranslateChapter_DeclinesWithoutOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。")

	_, err := f.orch.TranslateChapter(context.Background(), ch.ID, false)
	require.NoError(t, err)

	_, err = f.orch.TranslateChapter(context.Background(), ch.ID, false)
	assert.True(t, errs.IsErrorType(err, errs.ErrAlreadyTranslated))

	res, err := f.orch.TranslateChapter(context.Background(), ch.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Translated)
	assert.Equal(t, "Đoạn 2", f.load(t, ch.ID).Translation)
}

func TestOrchestrator_TranslateChapter_NotFoundAndEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	empty := f.chapter(t, f.volume(t, 1), 1, "   ")

	_, err := f.orch.TranslateChapter(context.Background(), 999, false)
	assert.True(t, errs.IsErrorType(err, errs.ErrNotFound))

	_, err = f.orch.TranslateChapter(context.Background(), empty.ID, false)
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))

	_, err = f.orch.PrepareChapter(context.Background(), empty.ID)
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))
	assert.Zero(t, f.gen.calls)
}

func TestOrchestrator_TranslateSegment_MergesOnLastUnit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithMaxWords(3000))
	ch := f.chapter(t, f.volume(t, 1), 1, longBody())
	ctx := context.Background()

	n, err := f.orch.PrepareChapter(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, corpus.StatusPrepared, f.load(t, ch.ID).Status)

	segs, err := f.store.ListSegments(ctx, ch.ID)
	require.NoError(t, err)

	res, err := f.orch.TranslateSegment(ctx, segs[1].ID, false)
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, 1, res.Progress.Translated)
	assert.Empty(t, f.load(t, ch.ID).TitleTranslation, "only the first unit sets the title")

	_, err = f.orch.TranslateSegment(ctx, segs[1].ID, false)
	assert.True(t, errs.IsErrorType(err, errs.ErrAlreadyTranslated))

	_, err = f.orch.TranslateSegment(ctx, segs[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Chương một", f.load(t, ch.ID).TitleTranslation)

	res, err = f.orch.TranslateSegment(ctx, segs[2].ID, false)
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, 100.0, res.Progress.Percent)

	got := f.load(t, ch.ID)
	assert.Equal(t, corpus.StatusTranslated, got.Status)
	assert.Equal(t, "Đoạn 2\n\nĐoạn 1\n\nĐoạn 3", got.Translation)

	progress, err := f.orch.Progress(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Total)
	assert.Zero(t, progress.Remaining)
}

func TestOrchestrator_ResidueWarnings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。")
	ctx := context.Background()

	f.gen.translate = func(int, translator.TranslateRequest) (translator.TranslateResult, error) {
		return translator.TranslateResult{Content: "林风 bước vào phòng."}, nil
	}
	res, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	got := f.load(t, ch.ID)
	assert.True(t, strings.HasPrefix(got.Warning, "Unit 1: "))

	html, detected, err := f.orch.Highlight(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, detected.HasForeign)
	assert.Contains(t, html, "<mark")

	f.gen.translate = nil
	_, err = f.orch.TranslateChapter(ctx, ch.ID, true)
	require.NoError(t, err)
	assert.Empty(t, f.load(t, ch.ID).Warning)
}

func TestOrchestrator_ProviderFailureStopsChapter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithMaxWords(3000))
	ch := f.chapter(t, f.volume(t, 1), 1, longBody())
	ctx := context.Background()

	f.gen.translate = func(n int, _ translator.TranslateRequest) (translator.TranslateResult, error) {
		if n == 2 {
			return translator.TranslateResult{}, errs.NewError(errs.ErrProvider, "quota exhausted").
				WithContext(errs.ContextRateLimited, true)
		}
		return translator.TranslateResult{Content: fmt.Sprintf("Đoạn %d", n)}, nil
	}

	_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.Error(t, err)
	assert.True(t, errs.IsRateLimited(err))
	assert.Equal(t, 1, f.creds.rotated)

	got := f.load(t, ch.ID)
	assert.False(t, got.Translated())
	progress, err := f.orch.Progress(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Translated)

	// The next run keeps unit 1 and continues with the rest.
	f.gen.translate = nil
	res, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Translated)
	assert.Equal(t, corpus.StatusTranslated, f.load(t, ch.ID).Status)
}

func TestOrchestrator_ContextFromGlossaryAndPrecedingChapters(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithContextChapters(2), WithExcerptChars(6))
	ctx := context.Background()

	v1, v2 := f.volume(t, 1), f.volume(t, 2)
	first := f.chapter(t, v1, 1, "一。")
	second := f.chapter(t, v1, 2, "二。")
	third := f.chapter(t, v2, 1, "三。")
	current := f.chapter(t, v2, 2, "四。")
	later := f.chapter(t, v2, 3, "五。")

	_, err := f.store.InsertGlossaryTerm(ctx, corpus.GlossaryTerm{CorpusID: f.c.ID, SourceTerm: "林风", TargetTerm: "Lâm Phong"})
	require.NoError(t, err)

	f.gen.translate = func(n int, _ translator.TranslateRequest) (translator.TranslateResult, error) {
		return translator.TranslateResult{Title: fmt.Sprintf("Chương %d", n), Content: fmt.Sprintf("Noi dung so %d", n)}, nil
	}
	for _, ch := range []corpus.Chapter{first, second, third, later} {
		_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
		require.NoError(t, err)
	}

	_, err = f.orch.TranslateChapter(ctx, current.ID, false)
	require.NoError(t, err)

	req := f.gen.lastRequest()
	assert.Equal(t, "林风 → Lâm Phong", req.Glossary)
	assert.Equal(t, "zh", req.SourceLanguage)
	assert.Equal(t, "=== Chương 2 ===\nNoi du\n\n=== Chương 3 ===\nNoi du", req.Preceding)
}

func TestPrecedingContext(t *testing.T) {
	t.Parallel()

	chapters := []corpus.ChapterRef{
		{Chapter: corpus.Chapter{ID: 1, Title: "A", Translation: "aaaa"}, VolumeIndex: 1},
		{Chapter: corpus.Chapter{ID: 2, Title: "B"}, VolumeIndex: 1},
		{Chapter: corpus.Chapter{ID: 3, Title: "C", TitleTranslation: "Cc", Translation: "cccc"}, VolumeIndex: 2},
		{Chapter: corpus.Chapter{ID: 4, Title: "D", Translation: "dddd"}, VolumeIndex: 2},
	}

	assert.Equal(t, "=== A ===\naa\n\n=== Cc ===\ncc", precedingContext(chapters, 4, 2, 2))
	assert.Equal(t, "=== Cc ===\ncccc", precedingContext(chapters, 4, 1, 100))
	assert.Empty(t, precedingContext(chapters, 1, 2, 100))
	assert.Empty(t, precedingContext(chapters, 4, 0, 100))
}

func TestOrchestrator_ReviewChapter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithMaxWords(3000))
	ch := f.chapter(t, f.volume(t, 1), 1, longBody())
	ctx := context.Background()

	_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.NoError(t, err)

	f.gen.review = func(_, translated string) (translator.ReviewResult, error) {
		if translated == "Đoạn 2" {
			return translator.ReviewResult{}, errs.NewError(errs.ErrProvider, "review timed out")
		}
		return translator.ReviewResult{Score: 90, Report: "tốt", Scored: true}, nil
	}

	review, err := f.orch.ReviewChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, review.Reviewed)
	assert.Equal(t, 1, review.Failed)
	assert.Equal(t, 60.0, review.Score)

	lines := strings.Split(review.Report, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Unit 1: tốt", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Unit 2: "))
	assert.Contains(t, lines[1], "review timed out")

	got := f.load(t, ch.ID)
	assert.Equal(t, 60.0, got.Score)

	segs, err := f.store.ListSegments(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, segs[0].Score)
	assert.Zero(t, segs[1].Score)

	seg, err := f.orch.ReviewSegment(ctx, segs[1].ID)
	require.NoError(t, err)
	assert.Zero(t, seg.Score)
}

func TestOrchestrator_ReviewUntranslatedScoresZero(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。他笑了。")
	ctx := context.Background()

	_, err := f.orch.PrepareChapter(ctx, ch.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveChapterReview(ctx, ch.ID, 70, "cũ"))

	f.gen.review = func(_, _ string) (translator.ReviewResult, error) {
		t.Error("no unit should be sent for review")
		return translator.ReviewResult{}, nil
	}
	review, err := f.orch.ReviewChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.Zero(t, review.Reviewed)
	assert.Zero(t, review.Score)
	assert.Empty(t, review.Report)

	got := f.load(t, ch.ID)
	assert.Zero(t, got.Score)
	assert.Empty(t, got.ReviewReport)

	segs, err := f.store.ListSegments(ctx, ch.ID)
	require.NoError(t, err)
	_, err = f.orch.ReviewSegment(ctx, segs[0].ID)
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))
}

// waiting counts the holder and waiters of a chapter lock.
func waiting(o *Orchestrator, chapterID int64) int {
	o.locks.mu.Lock()
	defer o.locks.mu.Unlock()
	if entry, ok := o.locks.locks[chapterID]; ok {
		return entry.refs
	}
	return 0
}

func TestOrchestrator_ReviewKeepsConcurrentTranslation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。")
	ctx := context.Background()

	_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.NoError(t, err)
	segs, err := f.store.ListSegments(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.review = func(_, _ string) (translator.ReviewResult, error) {
		close(entered)
		<-release
		return translator.ReviewResult{Score: 88, Report: "ổn", Scored: true}, nil
	}
	f.gen.translate = func(int, translator.TranslateRequest) (translator.TranslateResult, error) {
		return translator.TranslateResult{Content: "BẢN DỊCH MỚI"}, nil
	}

	reviewed := make(chan error, 1)
	go func() {
		_, err := f.orch.ReviewChapter(ctx, ch.ID)
		reviewed <- err
	}()
	<-entered

	translated := make(chan error, 1)
	go func() {
		_, err := f.orch.TranslateSegment(ctx, segs[0].ID, true)
		translated <- err
	}()
	require.Eventually(t, func() bool { return waiting(f.orch, ch.ID) == 2 }, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-reviewed)
	require.NoError(t, <-translated)

	seg, found, err := f.store.GetSegment(ctx, segs[0].ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "BẢN DỊCH MỚI", seg.Translation)

	got := f.load(t, ch.ID)
	assert.Equal(t, "BẢN DỊCH MỚI", got.Translation)
	assert.Equal(t, 88.0, got.Score)
}

func TestOrchestrator_TranslateSegment_ConcurrentRequestIsDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。")
	ctx := context.Background()

	_, err := f.orch.PrepareChapter(ctx, ch.ID)
	require.NoError(t, err)
	segs, err := f.store.ListSegments(ctx, ch.ID)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.translate = func(n int, _ translator.TranslateRequest) (translator.TranslateResult, error) {
		if n == 1 {
			close(entered)
			<-release
		}
		return translator.TranslateResult{Content: fmt.Sprintf("Đoạn %d", n)}, nil
	}

	first := make(chan error, 1)
	go func() {
		_, err := f.orch.TranslateSegment(ctx, segs[0].ID, false)
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := f.orch.TranslateSegment(ctx, segs[0].ID, false)
		second <- err
	}()
	require.Eventually(t, func() bool { return waiting(f.orch, ch.ID) == 2 }, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-first)
	assert.True(t, errs.IsErrorType(<-second, errs.ErrAlreadyTranslated))
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, "Đoạn 1", f.load(t, ch.ID).Translation)
}

func TestOrchestrator_ReviewCorpus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithReviewWorkers(3))
	ctx := context.Background()
	v := f.volume(t, 1)

	want := []float64{75, 95, 100}
	scores := map[string]float64{}
	for i := 1; i <= 4; i++ {
		ch := f.chapter(t, v, i, fmt.Sprintf("第%d句。", i))
		if i == 4 {
			continue
		}
		res, err := f.orch.TranslateChapter(ctx, ch.ID, false)
		require.NoError(t, err)
		scores[res.Chapter.Translation] = want[i-1]
	}

	f.gen.review = func(_, translated string) (translator.ReviewResult, error) {
		return translator.ReviewResult{Score: scores[translated], Scored: true}, nil
	}

	stats, err := f.orch.ReviewCorpus(ctx, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chapters)
	assert.Zero(t, stats.Failed)
	assert.InDelta(t, 90.0, stats.Average, 0.001)
	assert.Equal(t, 1, stats.LowScore)
}

func TestOrchestrator_FixChapter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch := f.chapter(t, f.volume(t, 1), 1, "林风走了进来。")
	ctx := context.Background()

	f.gen.translate = func(int, translator.TranslateRequest) (translator.TranslateResult, error) {
		return translator.TranslateResult{Content: "林风 bước vào."}, nil
	}
	_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
	require.NoError(t, err)

	// An unusable reply keeps the translation.
	res, err := f.orch.FixChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "林风 bước vào.", f.load(t, ch.ID).Translation)

	var got translator.FixRequest
	f.gen.fix = func(req translator.FixRequest) (translator.TranslateResult, error) {
		got = req
		return translator.TranslateResult{Title: "Chương 1", Content: "Lâm Phong bước vào."}, nil
	}
	res, err = f.orch.FixChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Before.HasForeign)
	assert.False(t, res.After.HasForeign)
	assert.Equal(t, "林风走了进来。", got.SourceContent)

	stored := f.load(t, ch.ID)
	assert.Equal(t, "Lâm Phong bước vào.", stored.Translation)
	assert.Equal(t, "Chương 1", stored.TitleTranslation)
	assert.Empty(t, stored.Warning)

	// Nothing left to fix: no call is made.
	f.gen.fix = func(translator.FixRequest) (translator.TranslateResult, error) {
		return translator.TranslateResult{}, errors.New("unexpected call")
	}
	res, err = f.orch.FixChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestOrchestrator_ReviewVolume(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	v1, v2 := f.volume(t, 1), f.volume(t, 2)

	for i, v := range []corpus.Volume{v1, v1, v2} {
		ch := f.chapter(t, v, i+1, fmt.Sprintf("第%d句。", i+1))
		_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
		require.NoError(t, err)
	}
	f.chapter(t, v1, 9, "未译。")

	var reviews atomic.Int32
	f.gen.review = func(_, _ string) (translator.ReviewResult, error) {
		reviews.Add(1)
		return translator.ReviewResult{Score: 70, Scored: true}, nil
	}

	stats, err := f.orch.ReviewVolume(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, stats.VolumeID)
	assert.Equal(t, f.c.ID, stats.CorpusID)
	assert.Equal(t, 2, stats.Chapters)
	assert.Equal(t, 70.0, stats.Average)
	assert.Equal(t, 2, stats.LowScore)
	assert.Equal(t, int32(2), reviews.Load())

	_, err = f.orch.ReviewVolume(ctx, 999)
	assert.True(t, errs.IsErrorType(err, errs.ErrNotFound))
}

func TestOrchestrator_ReviewStatsReadsStoredScores(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	v := f.volume(t, 1)

	scores := []float64{90, 75, 0}
	for i, score := range scores {
		ch := f.chapter(t, v, i+1, fmt.Sprintf("第%d句。", i+1))
		_, err := f.orch.TranslateChapter(ctx, ch.ID, false)
		require.NoError(t, err)
		require.NoError(t, f.store.SaveChapterReview(ctx, ch.ID, score, ""))
	}
	f.chapter(t, v, 4, "未译。")

	f.gen.review = func(_, _ string) (translator.ReviewResult, error) {
		t.Error("stats must not call the review service")
		return translator.ReviewResult{}, nil
	}

	stats, err := f.orch.ReviewStats(ctx, f.c.ID)
	require.NoError(t, err)
	require.Len(t, stats.Chapters, 3)
	assert.Equal(t, 2, stats.Reviewed)
	assert.Equal(t, 82.5, stats.Average)
	assert.Equal(t, 1, stats.LowScore)
	assert.Equal(t, "Chương một", stats.Chapters[0].Title)
	assert.Equal(t, 1, stats.Chapters[0].VolumeIndex)
	assert.Equal(t, 3, stats.Chapters[2].ChapterIndex)

	_, err = f.orch.ReviewStats(ctx, 999)
	assert.True(t, errs.IsErrorType(err, errs.ErrNotFound))
}
