// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/mentesa/internal/export"
	"github.com/jeranaias/mentesa/internal/model"
)

// ExampleToFile demonstrates exporting a conversation to Markdown.
func ExampleToFile() {
	id := model.ConversationID(1741615200000)
	msgs := []model.ChatMessage{
		model.NewUserMessage(id, "Não consigo dormir", id.Time()),
		model.NewBotMessage(id, "Vamos tentar uma respiração 4-7-8 juntos?", id.Time().Add(time.Second)),
	}
	t := export.NewTranscript(id, "Insônia", msgs, time.Now())

	dir, err := os.MkdirTemp("", "mentesa-export")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	opts := export.DefaultOptions()
	opts.OutputDir = dir
	exp, _ := export.ForFormat("md", opts)

	path, err := export.ToFile(t, exp, opts)
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}

	info, _ := os.Stat(path)
	fmt.Println(info.Name())
	// Output: conversa_Insônia_1741615200000.md
}
