// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/mentesa/internal/events"
)

// LocalUser owns conversations when nobody is signed in.
const LocalUser = "local_user"

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 8

// DefaultResetTTL bounds how long a password reset token stays valid.
const DefaultResetTTL = time.Hour

// totpIssuer labels the account in authenticator apps.
const totpIssuer = "Mente Sã"

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidEmail       = errors.New("e-mail inválido")
	ErrWeakPassword       = fmt.Errorf("a senha deve ter pelo menos %d caracteres", MinPasswordLength)
	ErrEmailTaken         = errors.New("já existe uma conta com este e-mail")
	ErrInvalidCredentials = errors.New("e-mail ou senha incorretos")
	ErrTOTPRequired       = errors.New("código de verificação necessário")
	ErrInvalidCode        = errors.New("código de verificação inválido")
	ErrResetTokenInvalid  = errors.New("código de redefinição inválido ou expirado")
	ErrNotSignedIn        = errors.New("nenhuma conta conectada")
	ErrAccountNotFound    = errors.New("conta não encontrada")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS user_account (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT NOT NULL,
    totp_secret TEXT,
    totp_enabled INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL          -- Unix milliseconds
);

CREATE TABLE IF NOT EXISTS password_reset (
    token TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES user_account(id) ON DELETE CASCADE,
    expires_at INTEGER NOT NULL,         -- Unix milliseconds
    used INTEGER NOT NULL DEFAULT 0
);

-- Signed-in account, kept across restarts
CREATE TABLE IF NOT EXISTS identity_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;
`

const stateCurrentUser = "current_user"

// =============================================================================
// PROVIDER
// =============================================================================

// Account is the public view of a registered user.
type Account struct {
	ID          string
	Email       string
	TOTPEnabled bool
	CreatedAt   time.Time
}

// Options configures a Provider. Zero values select defaults.
type Options struct {
	Logger     *log.Logger
	BcryptCost int
	ResetTTL   time.Duration
	Now        func() time.Time
}

// Provider tracks the signed-in account and manages registrations.
type Provider struct {
	db       *sql.DB
	logger   *log.Logger
	cost     int
	resetTTL time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	current *Account
	changes *events.Broker[string]
}

// NewProvider applies the account schema and restores the signed-in account.
func NewProvider(ctx context.Context, db *sql.DB, opts Options) (*Provider, error) {
	p := &Provider{
		db:       db,
		logger:   opts.Logger,
		cost:     opts.BcryptCost,
		resetTTL: opts.ResetTTL,
		now:      opts.Now,
		changes:  events.NewBroker[string](),
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	if p.resetTTL == 0 {
		p.resetTTL = DefaultResetTTL
	}
	if p.now == nil {
		p.now = time.Now
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize identity schema: %w", err)
	}
	if err := p.restore(ctx); err != nil {
		return nil, err
	}

	p.changes.Publish(p.CurrentUserID())
	return p, nil
}

// CurrentUserID returns the signed-in account id, or LocalUser.
func (p *Provider) CurrentUserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return LocalUser
	}
	return p.current.ID
}

// CurrentAccount returns the signed-in account, if any.
func (p *Provider) CurrentAccount() (Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return Account{}, false
	}
	return *p.current, true
}

// Changes emits the current user id now and after every sign-in or sign-out.
func (p *Provider) Changes(ctx context.Context) <-chan string {
	return p.changes.Subscribe(ctx)
}

// Register creates an account and signs it in.
func (p *Provider) Register(ctx context.Context, email, password string) (Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Account{}, ErrWeakPassword
	}

	if _, _, err := p.accountByEmail(ctx, email); err == nil {
		return Account{}, ErrEmailTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	acct := Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: p.now(),
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO user_account (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		acct.ID, acct.Email, string(hash), acct.CreatedAt.UnixMilli())
	if err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}

	p.logger.Info("account registered", "user", acct.ID)
	if err := p.setCurrent(ctx, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// SignIn verifies credentials and makes the account current. code is the
// TOTP code and is only consulted when the account has TOTP enabled.
func (p *Provider) SignIn(ctx context.Context, email, password, code string) (Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}

	acct, secrets, err := p.accountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(secrets.passwordHash), []byte(password)); err != nil {
		p.logger.Warn("sign-in rejected", "user", acct.ID)
		return Account{}, ErrInvalidCredentials
	}

	if acct.TOTPEnabled {
		code = strings.TrimSpace(code)
		if code == "" {
			return Account{}, ErrTOTPRequired
		}
		if !totp.Validate(code, secrets.totpSecret) {
			return Account{}, ErrInvalidCode
		}
	}

	if err := p.setCurrent(ctx, &acct); err != nil {
		return Account{}, err
	}
	p.logger.Info("signed in", "user", acct.ID)
	return acct, nil
}

// SignOut returns to LocalUser.
func (p *Provider) SignOut(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM identity_state WHERE key = ?`, stateCurrentUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.changes.Publish(LocalUser)
	p.logger.Info("signed out")
	return nil
}

// RequestPasswordReset issues a single-use reset token for email.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	acct, _, err := p.accountByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO password_reset (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, acct.ID, p.now().Add(p.resetTTL).UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert reset token: %w", err)
	}
	p.logger.Info("password reset requested", "user", acct.ID)
	return token, nil
}

// ResetPassword consumes token and sets a new password.
func (p *Provider) ResetPassword(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	var (
		userID    string
		expiresAt int64
		used      bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, expires_at, used FROM password_reset WHERE token = ?`,
		strings.TrimSpace(token)).Scan(&userID, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("query reset token: %w", err)
	}
	if used || p.now().UnixMilli() > expiresAt {
		return ErrResetTokenInvalid
	}

	if _, err := tx.ExecContext(ctx, `UPDATE user_account SET password_hash = ? WHERE id = ?`, string(hash), userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_reset SET used = 1 WHERE token = ?`, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}

	p.logger.Info("password reset", "user", userID)
	return nil
}

// EnableTOTP generates a TOTP secret for the signed-in account. The second
// factor is only enforced after ConfirmTOTP accepts a code from it.
func (p *Provider) EnableTOTP(ctx context.Context) (*otp.Key, error) {
	acct, ok := p.CurrentAccount()
	if !ok {
		return nil, ErrNotSignedIn
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: acct.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`UPDATE user_account SET totp_secret = ?, totp_enabled = 0 WHERE id = ?`,
		key.Secret(), acct.ID)
	if err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}
	return key, nil
}

// ConfirmTOTP turns the second factor on once code matches the pending secret.
func (p *Provider) ConfirmTOTP(ctx context.Context, code string) error {
	acct, ok := p.CurrentAccount()
	if !ok {
		return ErrNotSignedIn
	}

	_, secrets, err := p.accountByEmail(ctx, acct.Email)
	if err != nil {
		return err
	}
	if secrets.totpSecret == "" || !totp.Validate(strings.TrimSpace(code), secrets.totpSecret) {
		return ErrInvalidCode
	}

	if _, err := p.db.ExecContext(ctx, `UPDATE user_account SET totp_enabled = 1 WHERE id = ?`, acct.ID); err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}

	p.mu.Lock()
	if p.current != nil && p.current.ID == acct.ID {
		p.current.TOTPEnabled = true
	}
	p.mu.Unlock()
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

type accountSecrets struct {
	passwordHash string
	totpSecret   string
}

func (p *Provider) accountByEmail(ctx context.Context, email string) (Account, accountSecrets, error) {
	return p.queryAccount(ctx, `WHERE email = ?`, email)
}

func (p *Provider) accountByID(ctx context.Context, id string) (Account, accountSecrets, error) {
	return p.queryAccount(ctx, `WHERE id = ?`, id)
}

func (p *Provider) queryAccount(ctx context.Context, where string, arg string) (Account, accountSecrets, error) {
	var (
		acct      Account
		secrets   accountSecrets
		secret    sql.NullString
		createdAt int64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, totp_secret, totp_enabled, created_at FROM user_account `+where,
		arg).Scan(&acct.ID, &acct.Email, &secrets.passwordHash, &secret, &acct.TOTPEnabled, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, accountSecrets{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, accountSecrets{}, fmt.Errorf("query account: %w", err)
	}
	secrets.totpSecret = secret.String
	acct.CreatedAt = time.UnixMilli(createdAt)
	return acct, secrets, nil
}

func (p *Provider) setCurrent(ctx context.Context, acct *Account) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO identity_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		stateCurrentUser, acct.ID)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	p.mu.Lock()
	p.current = acct
	p.mu.Unlock()

	p.changes.Publish(acct.ID)
	return nil
}

func (p *Provider) restore(ctx context.Context) error {
	var id string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM identity_state WHERE key = ?`, stateCurrentUser).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	acct, _, err := p.accountByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		p.logger.Warn("saved session points at a missing account, signing out", "user", id)
		_, err = p.db.ExecContext(ctx, `DELETE FROM identity_state WHERE key = ?`, stateCurrentUser)
		return err
	}
	if err != nil {
		return err
	}
	p.current = &acct
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
