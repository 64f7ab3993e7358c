package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

// EmailSender defines the interface for sending emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("notify: recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("notify: subject is required")
	}
	if strings.TrimSpace(m.Body) == "" && strings.TrimSpace(m.HTML) == "" {
		return errors.New("notify: body is required")
	}
	return nil
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger zerolog.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.FromName == "" {
		cfg.FromName = "Consultorio"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error().Err(err).Str("to", msg.To).Msg("sendgrid send failed")
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error().Int("status", response.StatusCode).Str("to", msg.To).Msg("sendgrid returned error status")
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("status", response.StatusCode).Msg("email sent via sendgrid")
	return nil
}

// SMTPSender sends emails through an SMTP relay.
type SMTPSender struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
	logger  zerolog.Logger
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	From     string
	FromName string
	Timeout  time.Duration
}

func NewSMTPSender(cfg SMTPConfig, logger zerolog.Logger) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &SMTPSender{dialer: d, from: from, timeout: cfg.Timeout, logger: logger}
}

func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m := buildSMTPMessage(s.from, msg)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	wait := s.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error().Err(err).Str("to", msg.To).Msg("smtp send failed")
			return fmt.Errorf("notify: smtp send failed: %w", err)
		}
		s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent via smtp")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return fmt.Errorf("notify: smtp send: %w", context.DeadlineExceeded)
	}
}

func buildSMTPMessage(from string, msg EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Body != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Body)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Body)
	}
	return m
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger zerolog.Logger
}

func NewStubEmailSender(logger zerolog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("stub email sender: would send email")
	return nil
}

// EmailProviderConfig selects an EmailSender implementation.
type EmailProviderConfig struct {
	Provider string // sendgrid, smtp, stub
	SendGrid SendGridConfig
	SMTP     SMTPConfig
}

// NewEmailSender picks the configured provider and falls back to the stub
// when the provider lacks credentials.
func NewEmailSender(cfg EmailProviderConfig, logger zerolog.Logger) EmailSender {
	switch cfg.Provider {
	case "sendgrid":
		if s := NewSendGridSender(cfg.SendGrid, logger); s != nil {
			return s
		}
		logger.Warn().Msg("SENDGRID_API_KEY missing, using stub email sender")
	case "smtp":
		if s := NewSMTPSender(cfg.SMTP, logger); s != nil {
			return s
		}
		logger.Warn().Msg("SMTP_HOST missing, using stub email sender")
	}
	return NewStubEmailSender(logger)
}
