// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentesa/internal/export"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/util"
)

// titleColumn is the width of the title column in listings.
const titleColumn = 40

// =============================================================================
// LIST
// =============================================================================

func newListCommand(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Lista as conversas, da mais recente para a mais antiga",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := listConversations(ctx, a)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, DimStyle.Render("Nenhuma conversa ainda. Comece com: mentesa chat"))
				return nil
			}
			printConversationTable(out, items, model.NoConversation)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "saída em JSON")
	return cmd
}

// listConversations returns the signed-in user's conversations, most
// recently active first, with display titles resolved.
func listConversations(ctx context.Context, a *app) ([]model.ConversationDisplayItem, error) {
	summaries, err := a.db.Messages().Summaries(ctx, a.identity.CurrentUserID())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	items := make([]model.ConversationDisplayItem, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, model.ConversationDisplayItem{
			ID:            s.ConversationID,
			DisplayTitle:  a.manager.DisplayTitle(ctx, s.ConversationID),
			LastTimestamp: s.LastTimestamp,
		})
	}
	return items, nil
}

func printConversationTable(w io.Writer, items []model.ConversationDisplayItem, current model.ConversationID) {
	for i, item := range items {
		marker := " "
		title := util.PadWidth(util.TruncateWidth(item.DisplayTitle, titleColumn), titleColumn)
		if item.ID == current {
			marker = CurrentStyle.Render("*")
			title = CurrentStyle.Render(title)
		}
		fmt.Fprintf(w, "%s %2d. %s  %s  %s\n",
			marker, i+1, title,
			DimStyle.Render(item.LastActivity().Format(model.TitleTimeLayout)),
			DimStyle.Render(item.ID.String()))
	}
}

// =============================================================================
// SHOW
// =============================================================================

func newShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Mostra as mensagens de uma conversa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			msgs, err := conversationMessages(ctx, a, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render(a.manager.DisplayTitle(ctx, id)))
			for _, msg := range msgs {
				printMessage(out, msg, true)
			}
			return nil
		},
	}
}

// conversationMessages loads a conversation of the signed-in user.
func conversationMessages(ctx context.Context, a *app, id model.ConversationID) ([]model.ChatMessage, error) {
	msgs, err := a.db.Messages().Messages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	owner := a.identity.CurrentUserID()
	if len(msgs) == 0 || msgs[0].OwnerID != owner {
		return nil, fmt.Errorf("conversa %s não encontrada", id)
	}
	return msgs, nil
}

// =============================================================================
// RENAME / DELETE
// =============================================================================

func newRenameCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <título>",
		Short: "Dá um título personalizado a uma conversa",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := conversationMessages(ctx, a, id); err != nil {
				return err
			}
			if err := a.manager.RenameConversation(ctx, id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", RenderStatus(true), a.manager.DisplayTitle(ctx, id))
			return nil
		},
	}
}

func newDeleteCommand(g *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Exclui uma conversa e todas as suas mensagens",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := conversationMessages(ctx, a, id); err != nil {
				return err
			}
			title := a.manager.DisplayTitle(ctx, id)
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Excluir %q?", title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("Nada foi excluído."))
					return nil
				}
			}

			if err := a.manager.DeleteConversation(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Conversa %q excluída.\n", RenderStatus(true), title)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "não pedir confirmação")
	return cmd
}

// confirm asks a yes/no question; only "s" or "sim" count as yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [s/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return isYes(line), nil
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(g *globalFlags) *cobra.Command {
	var (
		format    string
		outputDir string
		noTimes   bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Exporta uma conversa para Markdown, JSON ou HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			path, err := exportConversation(ctx, a, id, format, outputDir, !noTimes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", RenderStatus(true), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md, json ou html")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "diretório de saída")
	cmd.Flags().BoolVar(&noTimes, "no-timestamps", false, "omitir o horário das mensagens")
	return cmd
}

func exportConversation(ctx context.Context, a *app, id model.ConversationID, format, dir string, withTimes bool) (string, error) {
	msgs, err := conversationMessages(ctx, a, id)
	if err != nil {
		return "", err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.IncludeTimestamps = withTimes
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}

	t := export.NewTranscript(id, a.manager.DisplayTitle(ctx, id), msgs, a.now())
	return export.ToFile(t, exp, opts)
}

// parseID parses a conversation id argument.
func parseID(arg string) (model.ConversationID, error) {
	id, err := model.ParseConversationID(arg)
	if err != nil || !id.IsReal() {
		return model.NoConversation, fmt.Errorf("id de conversa inválido: %q", arg)
	}
	return id, nil
}
