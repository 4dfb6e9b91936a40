// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentesa/internal/config"
	"github.com/jeranaias/mentesa/internal/session"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

// loadConfig reads the config file, then applies flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (usando padrões)\n", WarningStyle.Render("Aviso:"), err)
		}
	}

	if g.dbPath != "" {
		cfg.Storage.Path = g.dbPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewRootCommand builds the mentesa command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "mentesa",
		Short: "Mente Sã: conversas de apoio emocional no terminal",
		Long: `Mente Sã é um assistente de apoio emocional.

As conversas ficam salvas localmente e podem ser retomadas, renomeadas,
exportadas ou excluídas. Assuntos fora de saúde mental são recusados.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefault(cmd, g)
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ~/.mentesa/config.toml)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "database file (overrides storage.path)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newChatCommand(g),
		newTUICommand(g),
		newListCommand(g),
		newShowCommand(g),
		newRenameCommand(g),
		newDeleteCommand(g),
		newExportCommand(g),
		newCheckCommand(g),
		newConfigCommand(g),
		newAuthCommand(g),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root, err)
		return 1
	}
	return 0
}

// printError prints validation messages as they are and prefixes
// everything else.
func printError(cmd *cobra.Command, err error) {
	if session.IsValidationError(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render(err.Error()))
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", ErrorStyle.Render("Erro:"), err)
}
