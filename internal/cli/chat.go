// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/mentesa/internal/config"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/session"
	"github.com/jeranaias/mentesa/internal/util"
)

// Interactive commands (during chat):
//
//	/ajuda              Show available commands
//	/nova               Start a new conversation
//	/lista              List conversations
//	/abrir <n|id>       Open a conversation from the list
//	/renomear <título>  Rename the current conversation
//	/apagar             Delete the current conversation
//	/exportar [md|json|html]
//	/sair               Exit (Ctrl+D also exits)

type chatFlags struct {
	stream bool
}

func newChatCommand(g *globalFlags) *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Inicia uma conversa interativa",
		Long: `Inicia uma conversa interativa com a assistente do Mente Sã.

Digite /ajuda durante a conversa para ver os comandos disponíveis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.stream, "stream", true, "mostrar a resposta enquanto é gerada")
	return cmd
}

// runChat runs the session manager and the input loop side by side. Leaving
// the input loop stops the manager.
func runChat(cmd *cobra.Command, g *globalFlags, flags chatFlags) error {
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

	r := newREPL(a, cmd.OutOrStdout(), flags)
	defer r.close()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := a.manager.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		defer cancel()
		return r.loop(gctx)
	})
	return grp.Wait()
}

// =============================================================================
// REPL
// =============================================================================

// repl reads user input with line editing and history.
type repl struct {
	app         *app
	out         io.Writer
	flags       chatFlags
	line        *liner.State
	historyFile string

	// listed is the last /lista output, for /abrir <n>.
	listed []model.ConversationDisplayItem
}

func newREPL(a *app, out io.Writer, flags chatFlags) *repl {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &repl{app: a, out: out, flags: flags, line: line}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// close saves the input history with owner-only permissions.
func (r *repl) close() {
	if r.historyFile != "" {
		var buf bytes.Buffer
		if _, err := r.line.WriteHistory(&buf); err == nil {
			if err := util.AtomicWriteFile(r.historyFile, buf.Bytes(), 0o600); err != nil {
				r.app.logger.Debug("failed to save chat history", "err", err)
			}
		}
	}
	r.line.Close()
}

func (r *repl) loop(ctx context.Context) error {
	state, err := r.waitSelected(ctx)
	if err != nil {
		return err
	}
	r.printWelcome(state)

	for {
		input, err := r.line.Prompt("você> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(r.out, DimStyle.Render("Use /sair ou Ctrl+D para sair."))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				r.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}
		r.send(ctx, input)
	}
}

// waitSelected blocks until the manager has chosen the initial conversation.
func (r *repl) waitSelected(ctx context.Context) (session.State, error) {
	sub, stop := context.WithCancel(ctx)
	defer stop()
	for state := range r.app.manager.Subscribe(sub) {
		if state.CurrentID != model.NoConversation {
			return state, nil
		}
	}
	return session.State{}, ctx.Err()
}

func (r *repl) printWelcome(state session.State) {
	fmt.Fprintln(r.out, TitleStyle.Render("Mente Sã"))
	if acct, ok := r.app.identity.CurrentAccount(); ok {
		fmt.Fprintln(r.out, DimStyle.Render("Conectado como "+acct.Email))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Digite /ajuda para ver os comandos."))
	fmt.Fprintln(r.out, RenderSeparator())

	ctx := context.Background()
	if state.CurrentID.IsReal() {
		fmt.Fprintln(r.out, TitleStyle.Render(r.app.manager.DisplayTitle(ctx, state.CurrentID)))
		if msgs, err := r.app.db.Messages().Messages(ctx, state.CurrentID); err == nil && len(msgs) > 0 {
			for _, msg := range msgs {
				printMessage(r.out, msg, true)
			}
			return
		}
	}
	printMessage(r.out, model.WelcomeMessage(), false)
}

// =============================================================================
// SENDING
// =============================================================================

// send submits one message and prints the reply, streaming it when enabled.
func (r *repl) send(ctx context.Context, text string) {
	var (
		wg      sync.WaitGroup
		printed string
	)
	subCtx, stop := context.WithCancel(ctx)

	if r.flags.stream {
		wg.Add(1)
		go func() {
			defer wg.Done()
			printed = r.follow(subCtx)
		}()
	} else {
		fmt.Fprintln(r.out, DimStyle.Render("Mente Sã está escrevendo..."))
	}

	err := r.app.manager.SendMessage(ctx, text)
	stop()
	wg.Wait()

	if err != nil {
		if printed != "" {
			fmt.Fprintln(r.out)
		}
		r.printError(err)
		return
	}

	reply, ok := r.lastReply(ctx)
	switch {
	case !ok:
		fmt.Fprintln(r.out)
	case printed != "" && strings.HasPrefix(reply.Text, printed):
		fmt.Fprint(r.out, reply.Text[len(printed):]+"\n\n")
	default:
		if printed != "" {
			// The streamed text was replaced, e.g. by the fallback reply.
			fmt.Fprint(r.out, "\n\n")
		}
		printMessage(r.out, reply, false)
	}
}

// follow prints the partial reply as it grows and returns what it printed.
func (r *repl) follow(ctx context.Context) string {
	printed := ""
	for state := range r.app.manager.Subscribe(ctx) {
		if !state.Streaming || len(state.Messages) == 0 {
			continue
		}
		partial := state.Messages[len(state.Messages)-1].Text
		if !strings.HasPrefix(partial, printed) {
			continue
		}
		if printed == "" && partial != "" {
			fmt.Fprintln(r.out, BotStyle.Render(model.SenderBot.DisplayName()))
		}
		fmt.Fprint(r.out, partial[len(printed):])
		printed = partial
	}
	return printed
}

// lastReply returns the persisted BOT message that ended the last send.
func (r *repl) lastReply(ctx context.Context) (model.ChatMessage, bool) {
	id := r.app.manager.State().CurrentID
	if !id.IsReal() {
		return model.ChatMessage{}, false
	}
	last, err := r.app.db.Messages().LastMessages(ctx, id, 1)
	if err != nil || len(last) == 0 || last[0].IsUser() {
		return model.ChatMessage{}, false
	}
	return last[0], true
}

func (r *repl) printError(err error) {
	if session.IsValidationError(err) {
		fmt.Fprintln(r.out, WarningStyle.Render(err.Error()))
		return
	}
	if msg := r.app.manager.State().Err; msg != "" {
		fmt.Fprintln(r.out, ErrorStyle.Render(msg))
		return
	}
	fmt.Fprintln(r.out, ErrorStyle.Render(err.Error()))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command. quit is set for /sair.
func (r *repl) command(ctx context.Context, input string) (quit bool, err error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	mgr := r.app.manager

	switch strings.ToLower(name) {
	case "/sair", "/q":
		return true, nil

	case "/ajuda", "/h":
		r.printHelp()

	case "/nova":
		mgr.StartNewConversation()
		fmt.Fprintln(r.out, TitleStyle.Render(model.NewConversationTitle))
		printMessage(r.out, model.WelcomeMessage(), false)

	case "/lista":
		r.listed = mgr.State().Conversations
		if len(r.listed) == 0 {
			fmt.Fprintln(r.out, DimStyle.Render("Nenhuma conversa salva."))
			return false, nil
		}
		printConversationTable(r.out, r.listed, mgr.State().CurrentID)

	case "/abrir":
		id, err := r.resolve(arg)
		if err != nil {
			return false, err
		}
		msgs, err := conversationMessages(ctx, r.app, id)
		if err != nil {
			return false, err
		}
		mgr.SelectConversation(id)
		fmt.Fprintln(r.out, TitleStyle.Render(mgr.DisplayTitle(ctx, id)))
		for _, msg := range msgs {
			printMessage(r.out, msg, true)
		}

	case "/renomear":
		id := mgr.State().CurrentID
		if err := mgr.RenameConversation(ctx, id, arg); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", RenderStatus(true), mgr.DisplayTitle(ctx, id))

	case "/apagar":
		id := mgr.State().CurrentID
		if !id.IsReal() {
			return false, session.ErrNotPersisted
		}
		answer, err := r.line.Prompt(fmt.Sprintf("Excluir %q? [s/N] ", mgr.DisplayTitle(ctx, id)))
		if err != nil || !isYes(answer) {
			fmt.Fprintln(r.out, DimStyle.Render("Nada foi excluído."))
			return false, nil
		}
		if err := mgr.DeleteConversation(ctx, id); err != nil {
			return false, err
		}
		next := mgr.State().CurrentID
		fmt.Fprintf(r.out, "%s Conversa excluída. Agora em: %s\n", RenderStatus(true), mgr.DisplayTitle(ctx, next))

	case "/exportar":
		format := arg
		if format == "" {
			format = "md"
		}
		id := mgr.State().CurrentID
		if !id.IsReal() {
			return false, session.ErrNotPersisted
		}
		path, err := exportConversation(ctx, r.app, id, format, ".", true)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", RenderStatus(true), path)

	default:
		return false, fmt.Errorf("comando desconhecido %s (digite /ajuda)", name)
	}
	return false, nil
}

// resolve maps "/abrir" arguments: a position in the last listing or an id.
func (r *repl) resolve(arg string) (model.ConversationID, error) {
	if arg == "" {
		return model.NoConversation, errors.New("uso: /abrir <número da lista ou id>")
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(r.listed) {
		return r.listed[n-1].ID, nil
	}
	return parseID(arg)
}

func (r *repl) printHelp() {
	help := [][2]string{
		{"/nova", "começar uma nova conversa"},
		{"/lista", "listar conversas"},
		{"/abrir <n|id>", "abrir uma conversa"},
		{"/renomear <título>", "renomear a conversa atual"},
		{"/apagar", "excluir a conversa atual"},
		{"/exportar [md|json|html]", "exportar a conversa atual"},
		{"/sair", "sair (ou Ctrl+D)"},
	}
	for _, h := range help {
		fmt.Fprintf(r.out, "  %s %s\n", util.PadWidth(h[0], 26), DimStyle.Render(h[1]))
	}
}

func isYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "s" || answer == "sim"
}
