// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentesa/internal/config"
)

func newConfigCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Mostra ou altera a configuração",
	}

	var reveal bool
	get := &cobra.Command{
		Use:   "get [chave]",
		Short: "Mostra um valor, ou toda a configuração",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(out, cfg.String())
				return nil
			}

			raw, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			value := fmt.Sprint(raw)
			if config.IsSecretKey(args[0]) && !reveal && value != "" {
				value = "[REDACTED]"
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}
	get.Flags().BoolVar(&reveal, "reveal", false, "mostrar valores secretos")

	set := &cobra.Command{
		Use:   "set <chave> <valor>",
		Short: "Altera um valor e salva o arquivo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.configFile()
			if err != nil {
				return err
			}
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s salvo em %s\n", RenderStatus(true), args[0], path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Mostra o caminho do arquivo de configuração",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "Lista as chaves aceitas por get e set",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, key := range config.GetAllKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
		},
	}

	cmd.AddCommand(get, set, path, keys)
	return cmd
}

// configFile is --config or the default TOML path.
func (g *globalFlags) configFile() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPathTOML()
}

// setConfigValue edits the file itself, so values that only come from the
// environment are never written back.
func setConfigValue(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	// Validate what the user typed; SetDefaults would replace a zero.
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.SetDefaults()
	return config.SaveTOML(cfg, path)
}
