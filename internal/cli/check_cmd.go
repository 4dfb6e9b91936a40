// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentesa/internal/config"
	"github.com/jeranaias/mentesa/internal/topics"
)

// newCheckCommand runs the topic filter on a text without sending it, for
// tuning the keyword lists.
func newCheckCommand(g *globalFlags) *cobra.Command {
	var asReply bool

	cmd := &cobra.Command{
		Use:   "check <texto>",
		Short: "Testa o filtro de assuntos em um texto",
		Long: `Testa o filtro de assuntos sem enviar nada.

Sem --reply, o texto é tratado como mensagem do usuário e o comando diz se
seria recusado. Com --reply, diz se uma resposta gerada seria aceita.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			filter, source, err := loadFilter(cfg)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Listas"), DimStyle.Render(source))

			if asReply {
				ok := filter.IsValidResponse(text)
				verdict := "resposta aceita"
				if !ok {
					verdict = "resposta substituída pela mensagem padrão"
				}
				fmt.Fprintf(out, "%s%s %s\n", RenderLabel("Resultado"), RenderStatus(ok), verdict)
				return nil
			}

			match, prohibited := filter.Classify(text)
			if !prohibited {
				fmt.Fprintf(out, "%s%s mensagem permitida\n", RenderLabel("Resultado"), RenderStatus(true))
				return nil
			}
			fmt.Fprintf(out, "%s%s mensagem recusada\n", RenderLabel("Resultado"), RenderStatus(false))
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Categoria"), ValueStyle.Render(match.Category))
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Palavra-chave"), ValueStyle.Render(match.Keyword))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asReply, "reply", false, "tratar o texto como resposta da IA")
	return cmd
}

// loadFilter returns the configured filter and where its lists came from.
func loadFilter(cfg *config.Config) (*topics.Filter, string, error) {
	if cfg.Topics.File == "" {
		return topics.Default(), "embutidas", nil
	}
	f, err := topics.LoadFile(cfg.Topics.File)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load topic lists: %w", err)
	}
	return f, cfg.Topics.File, nil
}
