// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

// =============================================================================
// ERRORS
// =============================================================================

// ValidationError is returned when an operation is rejected before any
// storage or network work happens. Message is shown to the user as is.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing validation errors.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	ErrBlankMessage = &ValidationError{Message: "A mensagem não pode ficar em branco."}
	ErrBlankTitle   = &ValidationError{Message: "O título não pode ficar em branco."}
	ErrNotPersisted = &ValidationError{Message: "Esta conversa ainda não foi salva."}
	ErrBusy         = &ValidationError{Message: "Aguarde a resposta anterior terminar."}
)

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Human-readable texts surfaced in State.Err.
const (
	msgStreamFailed    = "Erro durante a resposta da IA."
	msgStreamNotOpened = "Erro na comunicação com a IA."
	msgSaveFailed      = "Não foi possível salvar a mensagem."
	msgDeleteFailed    = "Não foi possível excluir a conversa."
	msgRenameFailed    = "Não foi possível renomear a conversa."
)
