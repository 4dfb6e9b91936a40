// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentesa/internal/identity"
)

// authFlags are shared by the auth subcommands.
type authFlags struct {
	passwordStdin bool
	code          string
}

func newAuthCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Gerencia a conta conectada",
		Long: `Gerencia contas locais. As conversas pertencem à conta conectada;
sem conta, pertencem ao usuário local.`,
	}
	cmd.AddCommand(
		newAuthStatusCommand(g),
		newRegisterCommand(g),
		newSignInCommand(g),
		newSignOutCommand(g),
		newResetCommand(g),
		newTOTPCommand(g),
	)
	return cmd
}

func newAuthStatusCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Mostra a conta conectada",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			acct, ok := a.identity.CurrentAccount()
			if !ok {
				fmt.Fprintf(out, "%s%s\n", RenderLabel("Conta"), DimStyle.Render("usuário local (não conectado)"))
				return nil
			}
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Conta"), ValueStyle.Render(acct.Email))
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Verificação em 2 etapas"), RenderStatus(acct.TOTPEnabled))
			return nil
		},
	}
}

func newRegisterCommand(g *globalFlags) *cobra.Command {
	var flags authFlags

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Cria uma conta e conecta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			in := bufio.NewReader(cmd.InOrStdin())
			password, err := readNewPassword(in, cmd.OutOrStdout(), flags.passwordStdin)
			if err != nil {
				return err
			}

			acct, err := a.identity.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Conta criada: %s\n", RenderStatus(true), acct.Email)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.passwordStdin, "password-stdin", false, "ler a senha da entrada padrão")
	return cmd
}

func newSignInCommand(g *globalFlags) *cobra.Command {
	var flags authFlags

	cmd := &cobra.Command{
		Use:     "signin <email>",
		Aliases: []string{"login"},
		Short:   "Conecta a uma conta existente",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			password, err := readSecret(in, out, "Senha: ", flags.passwordStdin)
			if err != nil {
				return err
			}

			acct, err := a.identity.SignIn(ctx, args[0], password, flags.code)
			if errors.Is(err, identity.ErrTOTPRequired) && !flags.passwordStdin {
				code, rerr := readLine(in, out, "Código de verificação: ")
				if rerr != nil {
					return rerr
				}
				acct, err = a.identity.SignIn(ctx, args[0], password, code)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Conectado como %s\n", RenderStatus(true), acct.Email)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.passwordStdin, "password-stdin", false, "ler a senha da entrada padrão")
	cmd.Flags().StringVar(&flags.code, "code", "", "código do aplicativo autenticador")
	return cmd
}

func newSignOutCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		Aliases: []string{"logout"},
		Short:   "Desconecta e volta ao usuário local",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.identity.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Desconectado.\n", RenderStatus(true))
			return nil
		},
	}
}

// newResetCommand covers both halves of a password reset. Without a mail
// transport the token is printed for the user to paste back.
func newResetCommand(g *globalFlags) *cobra.Command {
	var flags authFlags

	cmd := &cobra.Command{
		Use:   "reset <email> | reset --token <código>",
		Short: "Redefine a senha de uma conta",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString("token")
			if (token == "") == (len(args) == 0) {
				return errors.New("informe o e-mail para pedir um código ou --token para usá-lo")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if token == "" {
				token, err := a.identity.RequestPasswordReset(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Código de redefinição (válido por %s):\n%s\n", identity.DefaultResetTTL, token)
				fmt.Fprintln(out, DimStyle.Render("Use: mentesa auth reset --token <código>"))
				return nil
			}

			password, err := readNewPassword(bufio.NewReader(cmd.InOrStdin()), out, flags.passwordStdin)
			if err != nil {
				return err
			}
			if err := a.identity.ResetPassword(ctx, token, password); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Senha redefinida.\n", RenderStatus(true))
			return nil
		},
	}
	cmd.Flags().String("token", "", "código recebido ao pedir a redefinição")
	cmd.Flags().BoolVar(&flags.passwordStdin, "password-stdin", false, "ler a nova senha da entrada padrão")
	return cmd
}

func newTOTPCommand(g *globalFlags) *cobra.Command {
	var flags authFlags

	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Ativa a verificação em duas etapas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g, openOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			key, err := a.identity.EnableTOTP(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Adicione esta chave ao seu aplicativo autenticador:")
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Chave"), ValueStyle.Render(key.Secret()))
			fmt.Fprintf(out, "%s%s\n", RenderLabel("URL"), DimStyle.Render(key.URL()))

			code := flags.code
			if code == "" {
				code, err = readLine(bufio.NewReader(cmd.InOrStdin()), out, "Código gerado pelo aplicativo: ")
				if err != nil {
					return err
				}
			}
			if err := a.identity.ConfirmTOTP(ctx, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Verificação em duas etapas ativada.\n", RenderStatus(true))
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.code, "code", "", "código para confirmar sem perguntar")
	return cmd
}

// readNewPassword asks twice on a terminal and once from stdin.
func readNewPassword(in *bufio.Reader, out io.Writer, fromStdin bool) (string, error) {
	password, err := readSecret(in, out, "Nova senha: ", fromStdin)
	if err != nil || fromStdin {
		return password, err
	}
	again, err := readSecret(in, out, "Repita a senha: ", false)
	if err != nil {
		return "", err
	}
	if password != again {
		return "", errors.New("as senhas não conferem")
	}
	return password, nil
}

// readLine prompts for one visible line.
func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
