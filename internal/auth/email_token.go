package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
)

var (
	ErrEmailTokenNotFound = apperr.NotFound("sign-in link is invalid or was already used")
	ErrEmailTokenExpired  = apperr.Validation("sign-in link has expired")
	ErrEmailRequired      = apperr.Validation("email is required")
)

type EmailToken struct {
	ID        uuid.UUID
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// EmailTokenStore persists magic link tokens.
type EmailTokenStore interface {
	// Replace deletes every token for t.Email and inserts t.
	Replace(ctx context.Context, t EmailToken) error
	// Take deletes and returns the token row.
	Take(ctx context.Context, token string) (*EmailToken, error)
	StaffExists(ctx context.Context, email string) (bool, error)
}

type EmailTokenService struct {
	store    EmailTokenStore
	mailer   notify.EmailSender
	signer   *Signer
	appURL   func(ctx context.Context) (string, error)
	tokenTTL time.Duration
	session  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

type EmailTokenConfig struct {
	TokenTTL   time.Duration
	SessionTTL time.Duration
	// AppURL resolves the base URL magic links point at.
	AppURL func(ctx context.Context) (string, error)
}

func NewEmailTokenService(store EmailTokenStore, mailer notify.EmailSender, signer *Signer, cfg EmailTokenConfig, logger zerolog.Logger) *EmailTokenService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.AppURL == nil {
		cfg.AppURL = func(context.Context) (string, error) { return "", nil }
	}
	return &EmailTokenService{
		store:    store,
		mailer:   mailer,
		signer:   signer,
		appURL:   cfg.AppURL,
		tokenTTL: cfg.TokenTTL,
		session:  cfg.SessionTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// Issue creates a fresh sign-in token for a staff email and mails the link.
// Unknown emails are accepted silently so the endpoint does not reveal
// which addresses have accounts.
func (s *EmailTokenService) Issue(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrEmailRequired
	}

	ok, err := s.store.StaffExists(ctx, email)
	if err != nil {
		return apperr.Dependency("look up staff user", err)
	}
	if !ok {
		s.logger.Warn().Str("email", email).Msg("sign-in requested for unknown email")
		return nil
	}

	raw, err := GenerateToken(DefaultTokenBytes * 2)
	if err != nil {
		return apperr.Dependency("generate token", err)
	}
	now := s.now()
	tok := EmailToken{
		ID:        uuid.New(),
		Email:     email,
		Token:     raw,
		ExpiresAt: Expiry(now, s.tokenTTL),
		CreatedAt: now,
	}
	if err := s.store.Replace(ctx, tok); err != nil {
		return apperr.Dependency("store email token", err)
	}

	base, err := s.appURL(ctx)
	if err != nil {
		return apperr.Dependency("load app url", err)
	}
	link := strings.TrimRight(base, "/") + "/login?token=" + url.QueryEscape(raw)

	msg := notify.EmailMessage{
		To:      email,
		Subject: "Tu enlace de acceso",
		Body:    fmt.Sprintf("Ingresá con este enlace (vence en %d minutos):\n%s\n", int(s.tokenTTL.Minutes()), link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return apperr.Dependency("send sign-in email", err)
	}

	s.logger.Info().Str("email", email).Time("expires_at", tok.ExpiresAt).Msg("sign-in link issued")
	return nil
}

// Redeem consumes a token and returns a staff session JWT.
func (s *EmailTokenService) Redeem(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmailTokenNotFound
	}

	tok, err := s.store.Take(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrEmailTokenNotFound) {
			return "", err
		}
		return "", apperr.Dependency("load email token", err)
	}
	if !s.now().Before(tok.ExpiresAt) {
		return "", ErrEmailTokenExpired
	}

	session, err := s.signer.Issue(tok.Email, AudienceStaff, tok.Email, s.session)
	if err != nil {
		return "", apperr.Dependency("issue session", err)
	}
	return session, nil
}

// PgEmailTokenStore is the Postgres EmailTokenStore.
type PgEmailTokenStore struct {
	db db.DB
}

func NewPgEmailTokenStore(pool db.DB) *PgEmailTokenStore {
	return &PgEmailTokenStore{db: pool}
}

func (s *PgEmailTokenStore) Replace(ctx context.Context, t EmailToken) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM email_tokens WHERE lower(email) = lower($1)`, t.Email); err != nil {
			return fmt.Errorf("delete superseded tokens: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO email_tokens (id, email, token, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, t.Email, t.Token, t.ExpiresAt, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert email token: %w", err)
		}
		return nil
	})
}

func (s *PgEmailTokenStore) Take(ctx context.Context, token string) (*EmailToken, error) {
	var t EmailToken
	err := s.db.QueryRow(ctx, `
		DELETE FROM email_tokens
		WHERE token = $1
		RETURNING id, email, token, expires_at, created_at
	`, token).Scan(&t.ID, &t.Email, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PgEmailTokenStore) StaffExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff_users WHERE lower(email) = lower($1) AND active)
	`, email).Scan(&exists)
	return exists, err
}
