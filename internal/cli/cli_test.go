// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/mentesa/internal/identity"
	"github.com/jeranaias/mentesa/internal/model"
	"github.com/jeranaias/mentesa/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testEnv is an isolated home directory with its own database.
type testEnv struct {
	home   string
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"MENTESA_PROVIDER", "MENTESA_MODEL", "MENTESA_BASE_URL", "MENTESA_API_KEY",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "MENTESA_DB", "MENTESA_TOPICS", "MENTESA_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return &testEnv{home: home, dbPath: filepath.Join(home, "mentesa.db")}
}

// run executes the command tree with the given stdin and returns what it
// wrote.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--db", e.dbPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// seed stores messages for the local user, one minute apart.
func (e *testEnv) seed(t *testing.T, id model.ConversationID, texts ...string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, e.dbPath, log.New(io.Discard))
	require.NoError(t, err)
	defer db.Close()

	at := id.Time()
	for i, text := range texts {
		msg := model.NewUserMessage(id, text, at)
		if i%2 == 1 {
			msg = model.NewBotMessage(id, text, at)
		}
		msg.OwnerID = identity.LocalUser
		_, err := db.Messages().Insert(ctx, msg)
		require.NoError(t, err)
		at = at.Add(time.Minute)
	}
}

var (
	firstID  = model.NewConversationID(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	secondID = model.NewConversationID(time.Date(2025, 3, 11, 9, 30, 0, 0, time.UTC))
)

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Nenhuma conversa ainda")
}

func TestList_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir", "Vamos conversar sobre isso.")
	env.seed(t, secondID, "Estou ansioso hoje")

	out, err := env.run(t, "", "list")
	require.NoError(t, err)

	older := strings.Index(out, "Não consigo dormir")
	newer := strings.Index(out, "Estou ansioso hoje")
	require.NotEqual(t, -1, older)
	require.NotEqual(t, -1, newer)
	assert.Less(t, newer, older, "most recent conversation should come first")
}

func TestList_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	out, err := env.run(t, "", "list", "--json")
	require.NoError(t, err)

	var items []model.ConversationDisplayItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, firstID, items[0].ID)
	assert.Equal(t, "Não consigo dormir", items[0].DisplayTitle)
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir", "Vamos conversar sobre isso.")

	out, err := env.run(t, "", "show", firstID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Não consigo dormir")
	assert.Contains(t, out, "Vamos conversar sobre isso.")
}

func TestShow_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "show", firstID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "não encontrada")
}

func TestRename(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	out, err := env.run(t, "", "rename", firstID.String(), "Insônia", "de", "março")
	require.NoError(t, err)
	assert.Contains(t, out, "Insônia de março")

	out, err = env.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Insônia de março")
	assert.NotContains(t, out, "Não consigo dormir")
}

func TestRename_BlankTitle(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	_, err := env.run(t, "", "rename", firstID.String(), "   ")
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")
	env.seed(t, secondID, "Estou ansioso hoje")

	out, err := env.run(t, "", "delete", "-y", firstID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "excluída")

	out, err = env.run(t, "", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Não consigo dormir")
	assert.Contains(t, out, "Estou ansioso hoje")
}

func TestDelete_Declined(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	out, err := env.run(t, "n\n", "delete", firstID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Nada foi excluído")

	out, err = env.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Não consigo dormir")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir", "Vamos conversar sobre isso.")

	for _, format := range []string{"md", "json", "html"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			out, err := env.run(t, "", "export", firstID.String(), "-f", format, "-o", dir)
			require.NoError(t, err)

			paths, err := filepath.Glob(filepath.Join(dir, "conversa_*."+format))
			require.NoError(t, err)
			require.Len(t, paths, 1)
			assert.Contains(t, out, paths[0])

			data, err := os.ReadFile(paths[0])
			require.NoError(t, err)
			assert.Contains(t, string(data), "Vamos conversar sobre isso.")
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	_, err := env.run(t, "", "export", firstID.String(), "-f", "pdf", "-o", t.TempDir())
	require.Error(t, err)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		wantErr bool
	}{
		{firstID.String(), false},
		{"abc", true},
		{"0", true},
		{"-1", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			id, err := parseID(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, firstID, id)
		})
	}
}

// =============================================================================
// CHECK
// =============================================================================

func TestCheck(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"allowed", []string{"check", "Estou ansioso hoje"}, []string{"[OK]", "mensagem permitida"}},
		{"prohibited", []string{"check", "Qual a fórmula da física quântica?"}, []string{"[FALHA]", "exact_sciences"}},
		{"valid reply", []string{"check", "--reply", "Quer conversar sobre isso?"}, []string{"resposta aceita"}},
		{"invalid reply", []string{"check", "--reply", "A fórmula é E = mc²."}, []string{"mensagem padrão"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, "", tt.args...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_SetThenGet(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "config", "set", "session.history_window", "40")
	require.NoError(t, err)

	out, err := env.run(t, "", "config", "get", "session.history_window")
	require.NoError(t, err)
	assert.Equal(t, "40", strings.TrimSpace(out))
}

func TestConfig_SetRejectsInvalidValue(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "config", "set", "session.history_window", "0")
	require.Error(t, err)

	path, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	_, statErr := os.Stat(strings.TrimSpace(path))
	assert.True(t, os.IsNotExist(statErr), "invalid value must not be saved")
}

func TestConfig_GetRedactsAPIKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "config", "set", "llm.api_key", "secret-key")
	require.NoError(t, err)

	out, err := env.run(t, "", "config", "get", "llm.api_key")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", strings.TrimSpace(out))

	out, err = env.run(t, "", "config", "get", "--reveal", "llm.api_key")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", strings.TrimSpace(out))
}

func TestConfig_SetDoesNotPersistEnvironment(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("MENTESA_API_KEY", "from-env")

	_, err := env.run(t, "", "config", "set", "llm.model", "gemini-1.5-pro")
	require.NoError(t, err)

	path, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	data, err := os.ReadFile(strings.TrimSpace(path))
	require.NoError(t, err)
	assert.Contains(t, string(data), "gemini-1.5-pro")
	assert.NotContains(t, string(data), "from-env")
}

func TestConfig_UnknownKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "config", "get", "llm.nope")
	require.Error(t, err)
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_RegisterSignOutSignIn(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "usuário local")

	_, err = env.run(t, "senha-forte\n", "auth", "register", "Ana@Example.com", "--password-stdin")
	require.NoError(t, err)

	out, err = env.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")

	_, err = env.run(t, "", "auth", "signout")
	require.NoError(t, err)

	out, err = env.run(t, "", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "usuário local")

	_, err = env.run(t, "errada\n", "auth", "signin", "ana@example.com", "--password-stdin")
	require.Error(t, err)

	_, err = env.run(t, "senha-forte\n", "auth", "signin", "ana@example.com", "--password-stdin")
	require.NoError(t, err)
}

func TestAuth_WeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "curta\n", "auth", "register", "ana@example.com", "--password-stdin")
	require.ErrorIs(t, err, identity.ErrWeakPassword)
}

func TestAuth_ConversationsBelongToAccount(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, firstID, "Não consigo dormir")

	_, err := env.run(t, "senha-forte\n", "auth", "register", "ana@example.com", "--password-stdin")
	require.NoError(t, err)

	out, err := env.run(t, "", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Não consigo dormir")

	_, err = env.run(t, "", "show", firstID.String())
	assert.Error(t, err)
}

func TestIsYes(t *testing.T) {
	for _, in := range []string{"s", "S", "sim", " Sim \n"} {
		assert.True(t, isYes(in), in)
	}
	for _, in := range []string{"", "n", "não", "yes"} {
		assert.False(t, isYes(in), in)
	}
}
