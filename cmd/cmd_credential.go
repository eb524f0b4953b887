package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
)

var (
	credentialName     string
	credentialProvider string
)

func initCredentialCmd() {
	credentialCmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the API keys of the rotation pool",
	}

	addCmd := &cobra.Command{
		Use:   "add <secret>",
		Short: "Store an API key, reactivating it if already known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				provider := credentialProvider
				if provider == "" {
					provider = a.cfg.LLM.Provider
				}
				saved, err := a.store.AddCredential(ctx, credential.Credential{
					Name:     credentialName,
					Secret:   args[0],
					Provider: provider,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Credential %d (%s) active for %s\n", saved.ID, saved.Masked(), saved.Provider)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&credentialName, "name", "", "label shown in listings")
	addCmd.Flags().StringVar(&credentialProvider, "provider", "", "provider tag, defaults to LLM_PROVIDER")
	credentialCmd.AddCommand(addCmd)

	credentialCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keys of the configured provider with usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(runCredentialList)
		},
	})

	credentialCmd.AddCommand(&cobra.Command{
		Use:   "deactivate <credential-id>",
		Short: "Take a key out of rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				found, err := a.store.SetCredentialActive(ctx, id, false)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("credential %d not found", id)
				}
				fmt.Printf("Credential %d deactivated\n", id)
				return nil
			})
		},
	})

	credentialCmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Switch the shared pool to the next key now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				pool, err := a.pool(ctx)
				if err != nil {
					return err
				}
				next, err := pool.ForceRotate(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Now using credential %d (%s)\n", next.ID, next.Masked())
				return nil
			})
		},
	})

	rootCmd.AddCommand(credentialCmd)
}

func runCredentialList(ctx context.Context, a *app) error {
	creds, err := a.store.ListCredentials(ctx, a.cfg.LLM.Provider)
	if err != nil {
		return err
	}
	for _, c := range creds {
		state := "inactive"
		if c.Active {
			state = "active"
		}
		lastUsed := "never"
		if !c.LastUsedAt.IsZero() {
			lastUsed = humanize.Time(c.LastUsedAt)
		}
		fmt.Printf("%4d  %-16s  %-18s  %-8s  %s calls  last used %s\n",
			c.ID, c.Name, c.Masked(), state, humanize.Comma(c.UsageCount), lastUsed)
	}
	return nil
}
