package persistence

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is the corpus export format version.
const Version = 1

// CorpusDocument is the YAML form of a whole corpus.
type CorpusDocument struct {
	Version        int              `yaml:"version"`
	Title          string           `yaml:"title"`
	Description    string           `yaml:"description,omitempty"`
	SourceLanguage string           `yaml:"source_language,omitempty"`
	Checkpoint     int              `yaml:"checkpoint,omitempty"`
	Glossary       []GlossaryEntry  `yaml:"glossary,omitempty"`
	Volumes        []VolumeDocument `yaml:"volumes"`
}

type GlossaryEntry struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Note   string `yaml:"note,omitempty"`
}

type VolumeDocument struct {
	Index    int               `yaml:"index"`
	Title    string            `yaml:"title,omitempty"`
	Chapters []ChapterDocument `yaml:"chapters"`
}

type ChapterDocument struct {
	Index            int               `yaml:"index"`
	Title            string            `yaml:"title"`
	TitleTranslation string            `yaml:"title_translation,omitempty"`
	Body             string            `yaml:"body"`
	Translation      string            `yaml:"translation,omitempty"`
	Status           string            `yaml:"status,omitempty"`
	Score            float64           `yaml:"score,omitempty"`
	ReviewReport     string            `yaml:"review_report,omitempty"`
	Warning          string            `yaml:"warning,omitempty"`
	Segments         []SegmentDocument `yaml:"segments,omitempty"`
}

type SegmentDocument struct {
	ID           string  `yaml:"id"`
	Source       string  `yaml:"source"`
	Translation  string  `yaml:"translation,omitempty"`
	Score        float64 `yaml:"score,omitempty"`
	ReviewReport string  `yaml:"review_report,omitempty"`
	Warning      string  `yaml:"warning,omitempty"`
}

// SegmentID names a segment by its position, e.g. "Volume_1_Chapter_2_Segment_3".
func SegmentID(volume, chapter, segment int) string {
	return fmt.Sprintf("Volume_%d_Chapter_%d_Segment_%d", volume, chapter, segment)
}

var segmentIDPattern = regexp.MustCompile(`^Volume_(\d+)_Chapter_(\d+)_Segment_(\d+)$`)

// ParseSegmentID is the inverse of SegmentID.
func ParseSegmentID(id string) (volume, chapter, segment int, ok bool) {
	m := segmentIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, 0, false
	}
	volume, _ = strconv.Atoi(m[1])
	chapter, _ = strconv.Atoi(m[2])
	segment, _ = strconv.Atoi(m[3])
	return volume, chapter, segment, true
}
