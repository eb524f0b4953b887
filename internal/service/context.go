package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
)

// translationContext is what every unit of one chapter is translated with.
type translationContext struct {
	corpus         corpus.Corpus
	glossary       string
	preceding      string
	sourceLanguage string
}

func (o *Orchestrator) buildContext(ctx context.Context, ch corpus.ChapterRef) (translationContext, error) {
	c, err := o.corpus(ctx, ch.CorpusID)
	if err != nil {
		return translationContext{}, err
	}
	terms, err := o.store.ListGlossary(ctx, c.ID)
	if err != nil {
		return translationContext{}, errs.WrapError(err, errs.ErrStore, "failed to list glossary")
	}
	chapters, err := o.store.ListCorpusChapters(ctx, c.ID)
	if err != nil {
		return translationContext{}, errs.WrapError(err, errs.ErrStore, "failed to list chapters")
	}

	return translationContext{
		corpus:         c,
		glossary:       glossary.Context(terms),
		preceding:      precedingContext(chapters, ch.ID, o.contextChapters, o.excerptChars),
		sourceLanguage: o.sourceLanguage(ctx, c, ch.Body),
	}, nil
}

// precedingContext takes the last n translated chapters before the chapter
// with id current, in corpus order, oldest first. Each is cut to excerpt
// runes and tagged with its title.
func precedingContext(chapters []corpus.ChapterRef, current int64, n, excerpt int) string {
	if n <= 0 {
		return ""
	}
	var before []corpus.ChapterRef
	for _, ch := range chapters {
		if ch.ID == current {
			break
		}
		if ch.Translated() {
			before = append(before, ch)
		}
	}
	if len(before) > n {
		before = before[len(before)-n:]
	}

	parts := make([]string, 0, len(before))
	for _, ch := range before {
		text := strings.TrimSpace(ch.Translation)
		if r := []rune(text); len(r) > excerpt {
			text = string(r[:excerpt])
		}
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", ch.DisplayTitle(), text))
	}
	return strings.Join(parts, "\n\n")
}
