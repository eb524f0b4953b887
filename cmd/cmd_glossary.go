package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
)

var (
	glossaryFromStart bool
	glossaryOverwrite bool
)

func initGlossaryCmd() {
	glossaryCmd := &cobra.Command{
		Use:   "glossary",
		Short: "Generate, list, reset, import and export corpus glossaries",
	}

	generateCmd := &cobra.Command{
		Use:   "generate <corpus-id>",
		Short: "Extract new terms from chapters after the checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: glossaryRun(true, func(ctx context.Context, p *glossary.Planner, id int64, _ []string) error {
			sum, err := p.Generate(ctx, id, glossaryFromStart)
			if err != nil {
				return err
			}
			fmt.Printf("Corpus %d: %d batches (%d failed), %d chapters, %d new terms, %d total, checkpoint %d\n",
				id, sum.Batches, sum.FailedBatches, sum.ChaptersProcessed, sum.NewTerms, sum.TotalTerms, sum.Checkpoint)
			return nil
		}),
	}
	generateCmd.Flags().BoolVar(&glossaryFromStart, "from-start", false, "reset the checkpoint before generating")
	glossaryCmd.AddCommand(generateCmd)

	glossaryCmd.AddCommand(&cobra.Command{
		Use:   "list <corpus-id>",
		Short: "Print the glossary of a corpus",
		Args:  cobra.ExactArgs(1),
		RunE: glossaryRun(false, func(ctx context.Context, p *glossary.Planner, id int64, _ []string) error {
			terms, err := p.Terms(ctx, id)
			if err != nil {
				return err
			}
			for _, t := range terms {
				fmt.Printf("%s = %s\n", t.SourceTerm, t.TargetTerm)
			}
			return nil
		}),
	})

	glossaryCmd.AddCommand(&cobra.Command{
		Use:   "reset <corpus-id>",
		Short: "Make the next run start from the first chapter",
		Args:  cobra.ExactArgs(1),
		RunE: glossaryRun(false, func(ctx context.Context, p *glossary.Planner, id int64, _ []string) error {
			return p.ResetCheckpoint(ctx, id)
		}),
	})

	importCmd := &cobra.Command{
		Use:   "import <corpus-id> <file.txt>",
		Short: "Read \"source = target\" lines into the glossary",
		Args:  cobra.ExactArgs(2),
		RunE: glossaryRun(false, func(ctx context.Context, p *glossary.Planner, id int64, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := p.Import(ctx, id, f, glossaryOverwrite)
			if err != nil {
				return err
			}
			fmt.Printf("%d added, %d updated, %d kept, %d skipped\n", res.Added, res.Updated, res.Kept, res.Skipped)
			return nil
		}),
	}
	importCmd.Flags().BoolVar(&glossaryOverwrite, "overwrite", false, "replace translations of existing terms")
	glossaryCmd.AddCommand(importCmd)

	glossaryCmd.AddCommand(&cobra.Command{
		Use:   "export <corpus-id> <file.txt>",
		Short: "Write the glossary in the import format",
		Args:  cobra.ExactArgs(2),
		RunE: glossaryRun(false, func(ctx context.Context, p *glossary.Planner, id int64, args []string) error {
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			n, err := p.Export(ctx, id, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d terms to %s\n", n, args[1])
			return nil
		}),
	})

	rootCmd.AddCommand(glossaryCmd)
}

// glossaryRun builds a planner for fn. Only generation needs live keys; the
// other subcommands work without any credential.
func glossaryRun(needsPool bool, fn func(ctx context.Context, p *glossary.Planner, id int64, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			var p *glossary.Planner
			if needsPool {
				pool, err := a.pool(ctx)
				if err != nil {
					return err
				}
				p = a.planner(pool)
			} else {
				p = glossary.NewPlanner(a.store, a.gen, nil)
			}
			return fn(ctx, p, id, args)
		})
	}
}
