// Package library reads a novel laid out on disk as volume directories of
// chapter text files and loads it into a corpus.
package library

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
)

var chapterExts = []string{".txt", ".md"}

// numberPattern finds the ordinal of a file or directory name: a leading
// number ("012 Title", "3-Title") or a "第12章" style marker.
var (
	leadingNumber = regexp.MustCompile(`^\s*(\d+)[\s._\-、:]*`)
	markerNumber  = regexp.MustCompile(`第\s*(\d+)\s*[卷章回部篇节]`)
)

// ChapterFile is one chapter text file.
type ChapterFile struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// VolumeDir is a directory of chapters. A flat layout yields one volume
// whose path is the root itself.
type VolumeDir struct {
	Index    int           `json:"index"`
	Title    string        `json:"title"`
	Path     string        `json:"path"`
	Chapters []ChapterFile `json:"chapters"`
}

type Layout struct {
	Root    string      `json:"root"`
	Volumes []VolumeDir `json:"volumes"`
}

// Chapters counts chapter files over all volumes.
func (l Layout) Chapters() int {
	n := 0
	for _, v := range l.Volumes {
		n += len(v.Chapters)
	}
	return n
}

// Scan reads root. Subdirectories are volumes; text files directly under
// root form a single volume when there are no subdirectories.
func Scan(root string) (Layout, error) {
	layout := Layout{Root: root}
	entries, err := os.ReadDir(root)
	if err != nil {
		return layout, errs.WrapError(err, errs.ErrValidation, "failed to read novel directory")
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}

	if len(dirs) == 0 {
		chapters, err := scanChapters(root)
		if err != nil {
			return layout, err
		}
		if len(chapters) > 0 {
			layout.Volumes = []VolumeDir{{Index: 1, Title: filepath.Base(root), Path: root, Chapters: chapters}}
		}
		return layout, nil
	}

	for i, name := range ordered(dirs) {
		path := filepath.Join(root, name.name)
		chapters, err := scanChapters(path)
		if err != nil {
			return layout, err
		}
		if len(chapters) == 0 {
			continue
		}
		layout.Volumes = append(layout.Volumes, VolumeDir{
			Index:    name.index(i),
			Title:    name.title,
			Path:     path,
			Chapters: chapters,
		})
	}
	return layout, nil
}

func scanChapters(dir string) ([]ChapterFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.WrapError(err, errs.ErrValidation, "failed to read volume directory")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if slices.Contains(chapterExts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, e.Name())
		}
	}

	names := ordered(files)
	out := make([]ChapterFile, 0, len(names))
	for i, n := range names {
		out = append(out, ChapterFile{
			Index: n.index(i),
			Title: n.title,
			Path:  filepath.Join(dir, n.name),
		})
	}
	return out, nil
}

type numberedName struct {
	name   string
	number int
	title  string
	// positional is set when the sibling numbers cannot be trusted.
	positional bool
}

func (n numberedName) index(pos int) int {
	if n.positional {
		return pos + 1
	}
	return n.number
}

// ordered sorts names by their ordinal. When any name lacks a number or two
// share one, all of them fall back to name order and positional indexes.
func ordered(names []string) []numberedName {
	out := make([]numberedName, 0, len(names))
	seen := make(map[int]bool, len(names))
	positional := false
	for _, name := range names {
		number, title := parseName(strings.TrimSuffix(name, filepath.Ext(name)))
		if number <= 0 || seen[number] {
			positional = true
		}
		seen[number] = true
		out = append(out, numberedName{name: name, number: number, title: title})
	}

	if positional {
		slices.SortFunc(out, func(a, b numberedName) int { return strings.Compare(a.name, b.name) })
		for i := range out {
			out[i].positional = true
		}
		return out
	}
	slices.SortFunc(out, func(a, b numberedName) int { return a.number - b.number })
	return out
}

// parseName splits "012 - Title" into 12 and "Title". The title keeps a
// "第12章" marker since that is how the source names chapters.
func parseName(stem string) (int, string) {
	if m := leadingNumber.FindStringSubmatch(stem); m != nil {
		n, _ := strconv.Atoi(m[1])
		title := strings.TrimSpace(stem[len(m[0]):])
		if title == "" {
			title = stem
		}
		return n, title
	}
	if m := markerNumber.FindStringSubmatch(stem); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, strings.TrimSpace(stem)
	}
	return 0, strings.TrimSpace(stem)
}

// ReadChapter loads a chapter file as UTF-8 text. Files that are not valid
// UTF-8 are taken to be GB18030, the usual encoding of Chinese web novels.
func ReadChapter(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errs.WrapError(err, errs.ErrValidation, "failed to read chapter file")
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), raw)
		if err != nil {
			return "", errs.WrapError(err, errs.ErrValidation, "chapter file is neither UTF-8 nor GB18030").
				WithContext("path", path)
		}
		raw = decoded
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

// splitHeading drops a first line that repeats the chapter title.
func splitHeading(title, text string) string {
	first, rest, found := strings.Cut(text, "\n")
	if found && strings.TrimSpace(first) != "" && strings.Contains(strings.TrimSpace(first), strings.TrimSpace(title)) {
		return strings.TrimSpace(rest)
	}
	return text
}
