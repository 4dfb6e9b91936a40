// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/mentesa/internal/ui/chat"
	"github.com/jeranaias/mentesa/internal/ui/styles"
)

func newTUICommand(g *globalFlags) *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Abre a interface de tela cheia",
		Long: `Abre a interface de tela cheia, com a lista de conversas ao lado.

Tab alterna entre a lista e a mensagem. F1 mostra todos os atalhos.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, g, exportDir)
		},
	}
	cmd.Flags().StringVarP(&exportDir, "output", "o", ".", "diretório das exportações (Ctrl+E)")
	return cmd
}

// runDefault opens the full-screen interface on a terminal and the line
// chat otherwise.
func runDefault(cmd *cobra.Command, g *globalFlags) error {
	if IsTTY() && IsStdoutTTY() {
		return runTUI(cmd, g, ".")
	}
	return runChat(cmd, g, chatFlags{stream: true})
}

// runTUI runs the session manager next to the Bubble Tea program. Quitting
// the program stops the manager.
func runTUI(cmd *cobra.Command, g *globalFlags, exportDir string) error {
	if !IsTTY() || !IsStdoutTTY() {
		return fmt.Errorf("tui: %w (use mentesa chat)", ErrTTYRequired)
	}

	a, err := openApp(cmd.Context(), g, openOptions{withLLM: true})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.watchTopics(ctx); err != nil {
		a.logger.Warn("topic lists will not reload", "err", err)
	}

	theme := styles.NewTheme()
	view := chat.New(ctx, a.manager, chat.Options{
		Theme:     theme,
		Markdown:  chat.GlamourMarkdown(markdownStyle(theme)),
		ExportDir: exportDir,
		Now:       a.now,
	})
	program := tea.NewProgram(view,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := a.manager.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	return grp.Wait()
}

// markdownStyle picks the glamour style for the terminal.
func markdownStyle(theme *styles.Theme) string {
	switch {
	case !ColorsEnabled() || theme.ColorProfile == termenv.Ascii:
		return "notty"
	case theme.IsDark:
		return "dark"
	default:
		return "light"
	}
}
