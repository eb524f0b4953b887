package glossary

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// ImportResult counts what a TXT import did.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

// Terms lists the glossary of a corpus.
func (p *Planner) Terms(ctx context.Context, corpusID int64) ([]corpus.GlossaryTerm, error) {
	terms, err := p.store.ListGlossary(ctx, corpusID)
	if err != nil {
		return nil, errs.WrapError(err, errs.ErrStore, "failed to list glossary")
	}
	return terms, nil
}

// SetTerm is the human edit path and overwrites an existing term.
func (p *Planner) SetTerm(ctx context.Context, term corpus.GlossaryTerm) error {
	term.SourceTerm = strings.TrimSpace(term.SourceTerm)
	term.TargetTerm = strings.TrimSpace(term.TargetTerm)
	if term.SourceTerm == "" || term.TargetTerm == "" {
		return errs.NewError(errs.ErrValidation, "source and target term are required")
	}
	if err := p.requireCorpus(ctx, term.CorpusID); err != nil {
		return err
	}
	if err := p.store.UpsertGlossaryTerm(ctx, term); err != nil {
		return errs.WrapError(err, errs.ErrStore, "failed to save glossary term")
	}
	return nil
}

func (p *Planner) DeleteTerm(ctx context.Context, corpusID int64, sourceTerm string) error {
	deleted, err := p.store.DeleteGlossaryTerm(ctx, corpusID, strings.TrimSpace(sourceTerm))
	if err != nil {
		return errs.WrapError(err, errs.ErrStore, "failed to delete glossary term")
	}
	if !deleted {
		return errs.Errorf(errs.ErrNotFound, "glossary term %q not found", sourceTerm)
	}
	return nil
}

func (p *Planner) requireCorpus(ctx context.Context, corpusID int64) error {
	_, found, err := p.store.GetCorpus(ctx, corpusID)
	if err != nil {
		return errs.WrapError(err, errs.ErrStore, "failed to load corpus")
	}
	if !found {
		return errs.Errorf(errs.ErrNotFound, "corpus %d not found", corpusID)
	}
	return nil
}

// Import reads "source = target" lines. A '#' line right above a term is
// its note; other '#' lines are comments and a blank line drops a pending
// note. Existing terms are kept unless overwrite is set, and an overwrite
// without a note keeps the stored one.
func (p *Planner) Import(ctx context.Context, corpusID int64, r io.Reader, overwrite bool) (ImportResult, error) {
	var result ImportResult
	if err := p.requireCorpus(ctx, corpusID); err != nil {
		return result, err
	}

	var notes map[string]string
	if overwrite {
		terms, err := p.Terms(ctx, corpusID)
		if err != nil {
			return result, err
		}
		notes = make(map[string]string, len(terms))
		for _, t := range terms {
			notes[t.SourceTerm] = t.Note
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	note := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			note = ""
			continue
		}
		if strings.HasPrefix(line, "#") {
			note = strings.TrimSpace(line[1:])
			continue
		}
		pair, ok := parseLine(line)
		if !ok {
			result.Skipped++
			note = ""
			continue
		}
		term := corpus.GlossaryTerm{CorpusID: corpusID, SourceTerm: pair.Source, TargetTerm: pair.Target, Note: note}
		note = ""

		inserted, err := p.store.InsertGlossaryTerm(ctx, term)
		if err != nil {
			return result, errs.WrapError(err, errs.ErrStore, "failed to insert glossary term")
		}
		switch {
		case inserted:
			result.Added++
		case overwrite:
			if term.Note == "" {
				term.Note = notes[term.SourceTerm]
			}
			if err := p.store.UpsertGlossaryTerm(ctx, term); err != nil {
				return result, errs.WrapError(err, errs.ErrStore, "failed to save glossary term")
			}
			result.Updated++
		default:
			result.Kept++
		}
	}
	if err := scanner.Err(); err != nil {
		return result, errs.WrapError(err, errs.ErrParse, "failed to read glossary file")
	}

	log.Info("Imported glossary into corpus %d: %d added, %d updated, %d kept, %d skipped",
		corpusID, result.Added, result.Updated, result.Kept, result.Skipped)
	return result, nil
}

// Export writes the glossary in the format Import reads.
func (p *Planner) Export(ctx context.Context, corpusID int64, w io.Writer) (int, error) {
	c, found, err := p.store.GetCorpus(ctx, corpusID)
	if err != nil {
		return 0, errs.WrapError(err, errs.ErrStore, "failed to load corpus")
	}
	if !found {
		return 0, errs.Errorf(errs.ErrNotFound, "corpus %d not found", corpusID)
	}
	terms, err := p.Terms(ctx, corpusID)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Glossary: %s\n", c.Title)
	fmt.Fprintf(bw, "# Exported: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(bw, "# Terms: %d\n\n", len(terms))
	for _, t := range terms {
		if t.Note != "" {
			fmt.Fprintf(bw, "# %s\n", strings.ReplaceAll(t.Note, "\n", " "))
		}
		fmt.Fprintf(bw, "%s = %s\n", t.SourceTerm, t.TargetTerm)
	}
	if err := bw.Flush(); err != nil {
		return 0, errs.WrapError(err, errs.ErrUnknown, "failed to write glossary")
	}
	return len(terms), nil
}
