package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/library"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/internal/service"
)

func initCorpusCmd() {
	corpusCmd := &cobra.Command{
		Use:   "corpus",
		Short: "List, export, import, ingest and show review stats of corpora",
	}

	corpusCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List corpora with their chapter counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(runCorpusList)
		},
	})

	corpusCmd.AddCommand(&cobra.Command{
		Use:   "export <corpus-id> <file.yaml>",
		Short: "Write a corpus with its glossary, chapters and units as YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				return runCorpusExport(ctx, a, id, args[1])
			})
		},
	})

	corpusCmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a corpus from a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return runCorpusImport(ctx, a, args[0])
			})
		},
	})

	corpusCmd.AddCommand(&cobra.Command{
		Use:   "stats <corpus-id>",
		Short: "Show stored review scores without reviewing again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				return runCorpusStats(ctx, a, id)
			})
		},
	})

	ingestCmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Load volume directories of chapter text files into a corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return runCorpusIngest(ctx, a, args[0])
			})
		},
	}
	ingestCmd.Flags().Int64Var(&ingestCorpusID, "corpus", 0, "add to this corpus instead of creating one")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "title of the new corpus, defaults to the directory name")
	corpusCmd.AddCommand(ingestCmd)

	rootCmd.AddCommand(corpusCmd)
}

// runCorpusStats needs no credential: it only reads stored scores.
func runCorpusStats(ctx context.Context, a *app, id int64) error {
	stats, err := service.NewOrchestrator(a.store, a.gen, nil).ReviewStats(ctx, id)
	if err != nil {
		return err
	}
	for _, ch := range stats.Chapters {
		score := "not reviewed"
		if ch.Score > 0 {
			score = fmt.Sprintf("%.1f", ch.Score)
		}
		fmt.Printf("%3d.%-4d %-40s %s\n", ch.VolumeIndex, ch.ChapterIndex, ch.Title, score)
	}
	fmt.Printf("%d of %d translated chapters reviewed, average %.1f, %d below %.0f\n",
		stats.Reviewed, len(stats.Chapters), stats.Average, stats.LowScore, service.LowScore)
	return nil
}

var (
	ingestCorpusID int64
	ingestTitle    string
)

func runCorpusIngest(ctx context.Context, a *app, dir string) error {
	layout, err := library.Scan(dir)
	if err != nil {
		return err
	}
	if layout.Chapters() == 0 {
		return fmt.Errorf("no chapter files found in %s", dir)
	}

	corpusID := ingestCorpusID
	if corpusID == 0 {
		title := ingestTitle
		if title == "" {
			title = filepath.Base(filepath.Clean(dir))
		}
		c, err := a.store.CreateCorpus(ctx, corpus.Corpus{Title: title})
		if err != nil {
			return err
		}
		corpusID = c.ID
	} else if _, found, err := a.store.GetCorpus(ctx, corpusID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("corpus %d not found", corpusID)
	}

	res, err := library.Ingest(ctx, a.store, corpusID, layout)
	if err != nil {
		return err
	}
	fmt.Printf("Corpus %d: %d new volumes, %d new chapters (%s words), %d skipped\n",
		corpusID, res.Volumes, res.Chapters, humanize.Comma(int64(res.Words)), res.Skipped)
	return nil
}

func runCorpusList(ctx context.Context, a *app) error {
	corpora, err := a.store.ListCorpora(ctx)
	if err != nil {
		return err
	}
	for _, c := range corpora {
		chapters, err := a.store.ListCorpusChapters(ctx, c.ID)
		if err != nil {
			return err
		}
		words, translated := 0, 0
		for _, ch := range chapters {
			words += segment.WordCount(ch.Body)
			if ch.Translated() {
				translated++
			}
		}
		fmt.Printf("%4d  %-30s  %s/%s chapters translated  %s words  glossary checkpoint %d\n",
			c.ID, c.Title, humanize.Comma(int64(translated)), humanize.Comma(int64(len(chapters))),
			humanize.Comma(int64(words)), c.Checkpoint)
	}
	return nil
}

func runCorpusExport(ctx context.Context, a *app, id int64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := a.store.ExportCorpus(ctx, id, w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		fmt.Printf("Exported corpus %d to %s (%s)\n", id, path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func runCorpusImport(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	c, err := a.store.ImportCorpus(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported corpus %d %q\n", c.ID, c.Title)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
