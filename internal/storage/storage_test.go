// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/mentesa/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "mentesa.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func msgAt(id model.ConversationID, sender model.Sender, text string, ts int64, owner string) model.ChatMessage {
	return model.ChatMessage{
		ConversationID: id,
		Sender:         sender,
		Text:           text,
		Timestamp:      ts,
		OwnerID:        owner,
	}
}

// =============================================================================
// MESSAGE STORE TESTS
// =============================================================================

func TestMessageStore_InsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	in := msgAt(1000, model.SenderUser, "Estou ansioso hoje", 1000, "local_user")
	saved, err := store.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if saved.ID == 0 {
		t.Error("expected a row id to be assigned")
	}

	got, err := store.Messages(ctx, 1000)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Text != in.Text || got[0].Sender != in.Sender || got[0].Timestamp != in.Timestamp {
		t.Errorf("round trip mismatch: got %+v, want %+v", got[0], in)
	}
}

func TestMessageStore_RejectsSentinels(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	for _, id := range []model.ConversationID{model.NewConversation, model.NoConversation} {
		_, err := store.Insert(ctx, msgAt(id, model.SenderUser, "x", 1, "u"))
		if !errors.Is(err, ErrSentinelID) {
			t.Errorf("Insert(%s) error = %v, want ErrSentinelID", id, err)
		}
		if _, err := store.DeleteAll(ctx, id); !errors.Is(err, ErrSentinelID) {
			t.Errorf("DeleteAll(%s) error = %v, want ErrSentinelID", id, err)
		}
	}
}

func TestMessageStore_OrderingAndLastMessages(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	for i := int64(1); i <= 25; i++ {
		sender := model.SenderUser
		if i%2 == 0 {
			sender = model.SenderBot
		}
		if _, err := store.Insert(ctx, msgAt(7, sender, "m", 100+i, "u")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	last, err := store.LastMessages(ctx, 7, model.HistoryWindow)
	if err != nil {
		t.Fatalf("LastMessages: %v", err)
	}
	if len(last) != 20 {
		t.Fatalf("len = %d, want 20", len(last))
	}
	if last[0].Timestamp != 106 || last[19].Timestamp != 125 {
		t.Errorf("window = [%d..%d], want [106..125]", last[0].Timestamp, last[19].Timestamp)
	}
	for i := 1; i < len(last); i++ {
		if last[i].Timestamp < last[i-1].Timestamp {
			t.Fatal("LastMessages must be oldest first")
		}
	}
}

func TestMessageStore_SkipsUnknownSender(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Messages()

	if _, err := store.Insert(ctx, msgAt(5, model.SenderUser, "ok", 1, "u")); err != nil {
		t.Fatal(err)
	}
	_, err := db.SQL().ExecContext(ctx,
		`INSERT INTO chat_message (conversation_id, owner_id, sender, text, timestamp) VALUES (5, 'u', 'ALIEN', 'bad', 2)`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Insert(ctx, msgAt(5, model.SenderBot, "ok too", 3, "u")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Messages(ctx, 5)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (bad row dropped)", len(got))
	}
}

func TestMessageStore_SummariesPerOwner(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	inserts := []model.ChatMessage{
		msgAt(100, model.SenderUser, "a1", 100, "ana"),
		msgAt(100, model.SenderBot, "a2", 150, "ana"),
		msgAt(200, model.SenderUser, "b1", 120, "ana"),
		msgAt(300, model.SenderUser, "c1", 999, "bruno"),
	}
	for _, m := range inserts {
		if _, err := store.Insert(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Summaries(ctx, "ana")
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	want := []model.ConversationSummary{
		{ConversationID: 100, LastTimestamp: 150},
		{ConversationID: 200, LastTimestamp: 120},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("summary[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMessageStore_FirstUserMessageText(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	if _, ok, err := store.FirstUserMessageText(ctx, 9); err != nil || ok {
		t.Fatalf("empty conversation: ok=%v err=%v", ok, err)
	}

	store.Insert(ctx, msgAt(9, model.SenderBot, "bot first", 1, "u"))
	store.Insert(ctx, msgAt(9, model.SenderUser, "primeira", 2, "u"))
	store.Insert(ctx, msgAt(9, model.SenderUser, "segunda", 3, "u"))

	text, ok, err := store.FirstUserMessageText(ctx, 9)
	if err != nil || !ok {
		t.Fatalf("FirstUserMessageText: ok=%v err=%v", ok, err)
	}
	if text != "primeira" {
		t.Errorf("text = %q, want %q", text, "primeira")
	}
}

func TestMessageStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Messages()

	store.Insert(ctx, msgAt(1, model.SenderUser, "x", 1, "u"))
	store.Insert(ctx, msgAt(1, model.SenderBot, "y", 2, "u"))
	store.Insert(ctx, msgAt(2, model.SenderUser, "z", 3, "u"))

	n, err := store.DeleteAll(ctx, 1)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	left, _ := store.Messages(ctx, 2)
	if len(left) != 1 {
		t.Errorf("other conversation touched: %d left", len(left))
	}
}

func TestMessageStore_WatchMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := openTestDB(t).Messages()

	ch := store.WatchMessages(ctx, 42)

	first := receive(t, ch)
	if len(first) != 0 {
		t.Fatalf("initial emission = %d messages, want 0", len(first))
	}

	if _, err := store.Insert(ctx, msgAt(42, model.SenderUser, "oi", 1, "u")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msgs := <-ch:
			if len(msgs) == 1 {
				cancel()
				return
			}
		case <-deadline:
			t.Fatal("watcher never saw the inserted message")
		}
	}
}

func TestMessageStore_WatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := openTestDB(t).Messages()

	ch := store.WatchSummaries(ctx, "u")
	receive(t, ch)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

// =============================================================================
// METADATA STORE TESTS
// =============================================================================

func TestMetadataStore_UpsertAndTitle(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Metadata()

	if _, ok, err := store.Title(ctx, 10); err != nil || ok {
		t.Fatalf("missing row: ok=%v err=%v", ok, err)
	}

	title := "Trabalho"
	if err := store.Upsert(ctx, 10, &title, "u"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, ok, err := store.Title(ctx, 10)
	if err != nil || !ok || got != "Trabalho" {
		t.Fatalf("Title = %q ok=%v err=%v", got, ok, err)
	}

	renamed := "Família"
	if err := store.Upsert(ctx, 10, &renamed, "u"); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	all, _ := store.AllForOwner(ctx, "u")
	if len(all) != 1 {
		t.Fatalf("rows = %d, want exactly 1 per conversation", len(all))
	}
	if got, _, _ := store.Title(ctx, 10); got != "Família" {
		t.Errorf("Title after rename = %q", got)
	}
}

func TestMetadataStore_EnsureExistsKeepsTitle(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Metadata()

	title := "Sono"
	if err := store.Upsert(ctx, 11, &title, "u"); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureExists(ctx, 11, "u"); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	if got, ok, _ := store.Title(ctx, 11); !ok || got != "Sono" {
		t.Errorf("EnsureExists clobbered title: %q ok=%v", got, ok)
	}

	if err := store.EnsureExists(ctx, 12, "u"); err != nil {
		t.Fatal(err)
	}
	meta, found, err := store.Get(ctx, 12)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if meta.CustomTitle != nil {
		t.Errorf("new row title = %q, want null", *meta.CustomTitle)
	}
}

func TestMetadataStore_DeleteAndSentinels(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Metadata()

	title := "x"
	store.Upsert(ctx, 13, &title, "u")
	if err := store.Delete(ctx, 13); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, 13); found {
		t.Error("row still present after Delete")
	}
	if err := store.Delete(ctx, 13); err != nil {
		t.Errorf("deleting a missing row should succeed: %v", err)
	}

	if err := store.Upsert(ctx, model.NewConversation, &title, "u"); !errors.Is(err, ErrSentinelID) {
		t.Errorf("Upsert(NEW) error = %v", err)
	}
	if err := store.EnsureExists(ctx, model.NewConversation, "u"); !errors.Is(err, ErrSentinelID) {
		t.Errorf("EnsureExists(NEW) error = %v", err)
	}
}

func TestMetadataStore_WatchAllForOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := openTestDB(t).Metadata()

	ch := store.WatchAllForOwner(ctx, "u")
	if first := receive(t, ch); len(first) != 0 {
		t.Fatalf("initial = %d rows", len(first))
	}

	title := "novo"
	store.Upsert(ctx, 20, &title, "u")
	store.Upsert(ctx, 21, &title, "other")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case rows := <-ch:
			if len(rows) == 1 && rows[0].ConversationID == 20 {
				return
			}
		case <-deadline:
			t.Fatal("watcher never saw the owner's row")
		}
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}
