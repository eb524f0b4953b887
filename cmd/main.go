package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/config"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

var (
	rootCmd  *cobra.Command
	envFile  string
	logLevel string
)

func init() {
	rootCmd = &cobra.Command{
		Use:           "novel-translator",
		Short:         "Translate serialized novels chapter by chapter with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			if logLevel != "" {
				os.Setenv("LOG_LEVEL", logLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	initServeCmd()
	initCorpusCmd()
	initChapterCmd()
	initGlossaryCmd()
	initCredentialCmd()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
