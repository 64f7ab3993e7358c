package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]+$`)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(0)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.Regexp(t, hexRe, a)

	b, err := GenerateToken(24)
	require.NoError(t, err)
	assert.Len(t, b, 48)
	assert.NotEqual(t, a, b)
}

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("s3cret")

	raw, err := signer.Issue("bot", AudienceService, "", time.Minute)
	require.NoError(t, err)

	claims, err := signer.Verify(raw, AudienceService)
	require.NoError(t, err)
	assert.Equal(t, "bot", claims.Subject)

	_, err = signer.Verify(raw, AudienceStaff)
	assert.ErrorIs(t, err, ErrInvalidCredential, "audience must match")

	_, err = NewSigner("other").Verify(raw, AudienceService)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSignerRejectsExpired(t *testing.T) {
	signer := NewSigner("s3cret")
	raw, err := signer.Issue("staff@example.com", AudienceStaff, "staff@example.com", time.Minute)
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = signer.Verify(raw, AudienceStaff)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

type memTokenStore struct {
	tokens map[string]EmailToken
	staff  map[string]bool
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]EmailToken{}, staff: map[string]bool{}}
}

func (m *memTokenStore) Replace(_ context.Context, t EmailToken) error {
	for k, v := range m.tokens {
		if v.Email == t.Email {
			delete(m.tokens, k)
		}
	}
	m.tokens[t.Token] = t
	return nil
}

func (m *memTokenStore) Take(_ context.Context, token string) (*EmailToken, error) {
	t, ok := m.tokens[token]
	if !ok {
		return nil, ErrEmailTokenNotFound
	}
	delete(m.tokens, token)
	return &t, nil
}

func (m *memTokenStore) StaffExists(_ context.Context, email string) (bool, error) {
	return m.staff[email], nil
}

type captureMailer struct {
	sent []notify.EmailMessage
	err  error
}

func (c *captureMailer) Send(_ context.Context, msg notify.EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newEmailTokenService(store *memTokenStore, mailer *captureMailer) *EmailTokenService {
	return NewEmailTokenService(store, mailer, NewSigner("s3cret"), EmailTokenConfig{
		AppURL: func(context.Context) (string, error) { return "https://turnos.example.com/", nil },
	}, zerolog.Nop())
}

func TestEmailTokenIssueSupersedesAndRedeems(t *testing.T) {
	store := newMemTokenStore()
	store.staff["recepcion@example.com"] = true
	mailer := &captureMailer{}
	svc := newEmailTokenService(store, mailer)
	ctx := context.Background()

	require.NoError(t, svc.Issue(ctx, " Recepcion@Example.com "))
	require.NoError(t, svc.Issue(ctx, "recepcion@example.com"))

	require.Len(t, store.tokens, 1, "older tokens for the same email are deleted")
	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[1].Body, "https://turnos.example.com/login?token=")

	var raw string
	for k := range store.tokens {
		raw = k
	}
	session, err := svc.Redeem(ctx, raw)
	require.NoError(t, err)
	claims, err := svc.signer.Verify(session, AudienceStaff)
	require.NoError(t, err)
	assert.Equal(t, "recepcion@example.com", claims.Email)

	_, err = svc.Redeem(ctx, raw)
	assert.ErrorIs(t, err, ErrEmailTokenNotFound, "tokens are single use")
}

func TestEmailTokenExpired(t *testing.T) {
	store := newMemTokenStore()
	store.staff["recepcion@example.com"] = true
	svc := newEmailTokenService(store, &captureMailer{})
	ctx := context.Background()

	require.NoError(t, svc.Issue(ctx, "recepcion@example.com"))
	var raw string
	for k := range store.tokens {
		raw = k
	}

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err := svc.Redeem(ctx, raw)
	assert.ErrorIs(t, err, ErrEmailTokenExpired)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestEmailTokenUnknownEmailIsSilent(t *testing.T) {
	store := newMemTokenStore()
	mailer := &captureMailer{}
	svc := newEmailTokenService(store, mailer)

	require.NoError(t, svc.Issue(context.Background(), "nobody@example.com"))
	assert.Empty(t, store.tokens)
	assert.Empty(t, mailer.sent)

	assert.ErrorIs(t, svc.Issue(context.Background(), "  "), ErrEmailRequired)
}

func TestEmailTokenMailerFailureIsDependency(t *testing.T) {
	store := newMemTokenStore()
	store.staff["recepcion@example.com"] = true
	svc := newEmailTokenService(store, &captureMailer{err: errors.New("smtp down")})

	err := svc.Issue(context.Background(), "recepcion@example.com")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
}
