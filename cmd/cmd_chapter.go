package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/service"
)

var (
	translateOverride bool
	translateSegment  bool
	reviewSegment     bool
	reviewCorpus      bool
	reviewVolume      bool
)

func initChapterCmd() {
	chapterCmd := &cobra.Command{
		Use:   "chapter",
		Short: "Prepare, translate, review and fix chapters",
	}

	chapterCmd.AddCommand(&cobra.Command{
		Use:   "prepare <chapter-id>",
		Short: "Split a chapter into translation units",
		Args:  cobra.ExactArgs(1),
		RunE: chapterRun(func(ctx context.Context, o *service.Orchestrator, id int64) error {
			n, err := o.PrepareChapter(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Chapter %d split into %d units\n", id, n)
			return nil
		}),
	})

	translateCmd := &cobra.Command{
		Use:   "translate <chapter-id>",
		Short: "Translate a chapter, or one unit with --segment",
		Args:  cobra.ExactArgs(1),
		RunE: chapterRun(func(ctx context.Context, o *service.Orchestrator, id int64) error {
			if translateSegment {
				res, err := o.TranslateSegment(ctx, id, translateOverride)
				if err != nil {
					return err
				}
				fmt.Printf("Unit %d translated, %d of %d units left\n", res.Segment.Index, res.Progress.Remaining, res.Progress.Total)
				if res.Merged {
					fmt.Printf("Chapter %d merged\n", res.Segment.ChapterID)
				}
				return nil
			}
			res, err := o.TranslateChapter(ctx, id, translateOverride)
			if err != nil {
				return err
			}
			fmt.Printf("Chapter %d %q: %d of %d units translated, %s characters\n",
				id, res.Chapter.DisplayTitle(), res.Translated, res.Units,
				humanize.Comma(int64(len([]rune(res.Chapter.Translation)))))
			for _, w := range res.Warnings {
				fmt.Printf("  residue: %s\n", w)
			}
			return nil
		}),
	}
	translateCmd.Flags().BoolVar(&translateOverride, "override", false, "translate again even when already translated")
	translateCmd.Flags().BoolVar(&translateSegment, "segment", false, "treat the id as a unit id")
	chapterCmd.AddCommand(translateCmd)

	reviewCmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Score a chapter, or a unit, volume or corpus with --segment, --volume or --corpus",
		Args:  cobra.ExactArgs(1),
		RunE: chapterRun(func(ctx context.Context, o *service.Orchestrator, id int64) error {
			switch {
			case reviewSegment:
				seg, err := o.ReviewSegment(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Unit %d scored %.1f\n%s\n", seg.Index, seg.Score, seg.ReviewReport)
			case reviewVolume:
				res, err := o.ReviewVolume(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Volume %d: %d chapters reviewed, average %.1f, %d below %.0f, %d failed\n",
					id, res.Chapters, res.Average, res.LowScore, service.LowScore, res.Failed)
			case reviewCorpus:
				res, err := o.ReviewCorpus(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Corpus %d: %d chapters reviewed, average %.1f, %d below %.0f, %d failed\n",
					id, res.Chapters, res.Average, res.LowScore, service.LowScore, res.Failed)
			default:
				res, err := o.ReviewChapter(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Chapter %d scored %.1f over %d units (%d failed)\n%s\n", id, res.Score, res.Reviewed, res.Failed, res.Report)
			}
			return nil
		}),
	}
	reviewCmd.Flags().BoolVar(&reviewSegment, "segment", false, "treat the id as a unit id")
	reviewCmd.Flags().BoolVar(&reviewVolume, "volume", false, "treat the id as a volume id")
	reviewCmd.Flags().BoolVar(&reviewCorpus, "corpus", false, "treat the id as a corpus id")
	reviewCmd.MarkFlagsMutuallyExclusive("segment", "volume", "corpus")
	chapterCmd.AddCommand(reviewCmd)

	chapterCmd.AddCommand(&cobra.Command{
		Use:   "fix <chapter-id>",
		Short: "Rewrite leftover source-script characters in a translated chapter",
		Args:  cobra.ExactArgs(1),
		RunE: chapterRun(func(ctx context.Context, o *service.Orchestrator, id int64) error {
			res, err := o.FixChapter(ctx, id)
			if err != nil {
				return err
			}
			if !res.Changed {
				fmt.Printf("Chapter %d unchanged (%d residue characters)\n", id, res.Before.Total)
				return nil
			}
			fmt.Printf("Chapter %d fixed: residue %d -> %d (%s)\n", id, res.Before.Total, res.After.Total, res.After.Severity)
			return nil
		}),
	})

	chapterCmd.AddCommand(&cobra.Command{
		Use:   "progress <chapter-id>",
		Short: "Show unit progress of a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: chapterRun(func(ctx context.Context, o *service.Orchestrator, id int64) error {
			p, err := o.Progress(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Chapter %d: %d/%d units (%.0f%%)\n", id, p.Translated, p.Total, p.Percent)
			return nil
		}),
	})

	rootCmd.AddCommand(chapterCmd)
}

// chapterRun opens the app and pool, then runs fn on the parsed id.
func chapterRun(fn func(ctx context.Context, o *service.Orchestrator, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			return fn(ctx, a.orchestrator(pool), id)
		})
	}
}
