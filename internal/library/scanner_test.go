package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/persistence"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_VolumeDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "02 少年", "第3章 出关.txt"), "第3章 出关\n林动出关。")
	writeFile(t, filepath.Join(root, "02 少年", "第1章 林家.txt"), "林家。")
	writeFile(t, filepath.Join(root, "01 序章", "001 - 开篇.txt"), "开篇。")
	writeFile(t, filepath.Join(root, "01 序章", "notes.json"), "{}")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "03 empty"), 0o755))

	layout, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, layout.Volumes, 2)
	assert.Equal(t, 3, layout.Chapters())

	assert.Equal(t, 1, layout.Volumes[0].Index)
	assert.Equal(t, "序章", layout.Volumes[0].Title)
	require.Len(t, layout.Volumes[0].Chapters, 1)
	assert.Equal(t, "开篇", layout.Volumes[0].Chapters[0].Title)

	v2 := layout.Volumes[1]
	assert.Equal(t, 2, v2.Index)
	require.Len(t, v2.Chapters, 2)
	assert.Equal(t, 1, v2.Chapters[0].Index)
	assert.Equal(t, 3, v2.Chapters[1].Index)
	assert.Equal(t, "第3章 出关", v2.Chapters[1].Title)
}

func TestScan_FlatDirectoryWithoutNumbers(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "乙。")
	writeFile(t, filepath.Join(root, "a.txt"), "甲。")
	writeFile(t, filepath.Join(root, "7 c.txt"), "丙。")

	layout, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, layout.Volumes, 1)
	chapters := layout.Volumes[0].Chapters
	require.Len(t, chapters, 3)
	// one name lacks a number, so every chapter is numbered by name order
	assert.Equal(t, []int{1, 2, 3}, []int{chapters[0].Index, chapters[1].Index, chapters[2].Index})
	assert.Equal(t, "7 c.txt", filepath.Base(chapters[0].Path))
}

func TestScan_MissingDirectory(t *testing.T) {
	t.Parallel()
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))
}

func TestReadChapter_DecodesGB18030(t *testing.T) {
	t.Parallel()
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String("林动睁开眼睛。\r\n第二行")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "gbk.txt")
	writeFile(t, path, encoded)

	text, err := ReadChapter(path)
	require.NoError(t, err)
	assert.Equal(t, "林动睁开眼睛。\n第二行", text)

	bom := filepath.Join(t.TempDir(), "bom.txt")
	writeFile(t, bom, "\xef\xbb\xbf正文")
	text, err = ReadChapter(bom)
	require.NoError(t, err)
	assert.Equal(t, "正文", text)
}

func TestIngest_CreatesAndSkipsExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "novels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	c, err := store.CreateCorpus(ctx, corpus.Corpus{Title: "武动乾坤"})
	require.NoError(t, err)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1 卷一", "1 林家.txt"), "林家\n林动睁开眼睛。")
	writeFile(t, filepath.Join(root, "1 卷一", "2 空白.txt"), "   ")

	layout, err := Scan(root)
	require.NoError(t, err)
	res, err := Ingest(ctx, store, c.ID, layout)
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Volumes: 1, Chapters: 1, Skipped: 1, Words: res.Words}, res)
	assert.Positive(t, res.Words)

	vols, err := store.ListVolumes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	chapters, err := store.ListChapters(ctx, vols[0].ID, false)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "林动睁开眼睛。", chapters[0].Body)

	writeFile(t, filepath.Join(root, "1 卷一", "3 出关.txt"), "出关。")
	layout, err = Scan(root)
	require.NoError(t, err)
	res, err = Ingest(ctx, store, c.ID, layout)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Volumes)
	assert.Equal(t, 1, res.Chapters)
	assert.Equal(t, 2, res.Skipped)
}
