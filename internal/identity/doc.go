// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity provides local accounts for Mente Sã.
//
// Without a signed-in account every conversation belongs to LocalUser
// ("local_user"). Signing in scopes conversation listings to that account.
// The signed-in account survives restarts: it is kept in the same SQLite
// file as the conversations.
//
// # Key Types
//
//   - Provider: Sign-in state, account registration and password reset
//   - Account: Public account data (never the password hash)
//
// # Security
//
//   - Passwords are hashed with bcrypt (golang.org/x/crypto/bcrypt)
//   - Optional TOTP second factor (github.com/pquerna/otp)
//   - Reset tokens are random UUIDs, single use, valid for one hour
//
// # Usage
//
//	p, err := identity.NewProvider(ctx, db.SQL(), identity.Options{Logger: logger})
//	if _, err := p.SignIn(ctx, "ana@example.com", "senha-segura", ""); err != nil {
//	    return err
//	}
//	owner := p.CurrentUserID()
package identity
