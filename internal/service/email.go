package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
	mail "github.com/wneessen/go-mail"
)

// Mailer delivers password reset links. The bool reports whether a message
// actually left the process.
type Mailer interface {
	SendResetLink(ctx context.Context, to, link string) (bool, error)
}

type EmailConfig struct {
	AppName     string
	From        string
	ResetExpiry time.Duration

	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SMTPTimeout time.Duration

	ResendAPIKey string
}

// smtpSendFunc delivers one message, either upgrading with STARTTLS or
// speaking TLS from the first byte.
type smtpSendFunc func(ctx context.Context, msg *mail.Msg, implicitTLS bool) error

// EmailService picks one transport at construction: SMTP when fully
// configured, else the Resend API, else none (links are only logged).
type EmailService struct {
	cfg      EmailConfig
	smtpSend smtpSendFunc
	resend   *resend.Client
}

func NewEmailService(cfg EmailConfig) *EmailService {
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.SMTPTimeout <= 0 {
		cfg.SMTPTimeout = 10 * time.Second
	}
	s := &EmailService{cfg: cfg}

	switch {
	case cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPass != "":
		s.smtpSend = s.dialSMTP
		slog.Info("email transport configured", "transport", "smtp", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	case cfg.ResendAPIKey != "":
		s.resend = resend.NewClient(cfg.ResendAPIKey)
		slog.Info("email transport configured", "transport", "resend")
	default:
		slog.Warn("no email transport configured, reset links will only be logged")
	}

	return s
}

func (s *EmailService) SendResetLink(ctx context.Context, to, link string) (bool, error) {
	content, err := resetPasswordEmailTemplate(link, s.cfg.AppName, s.cfg.ResetExpiry)
	if err != nil {
		return false, err
	}

	switch {
	case s.smtpSend != nil:
		err = s.sendSMTP(ctx, to, content)
	case s.resend != nil:
		err = s.sendResend(ctx, to, content)
	default:
		slog.Info("email not sent (no transport)", "type", "reset_password", "to", to, "url", link)
		return false, nil
	}

	if err != nil {
		return false, err
	}

	slog.Info("email sent", "type", "reset_password", "to", to)
	return true, nil
}

func (s *EmailService) sendSMTP(ctx context.Context, to string, content *emailContent) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(content.Subject)
	msg.SetBodyString(mail.TypeTextPlain, content.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, content.HTML)

	startTLSErr := s.smtpSend(ctx, msg, false)
	if startTLSErr == nil {
		return nil
	}

	slog.Warn("smtp starttls failed, retrying with implicit tls", "host", s.cfg.SMTPHost, "error", startTLSErr)

	tlsErr := s.smtpSend(ctx, msg, true)
	if tlsErr == nil {
		return nil
	}

	return fmt.Errorf("smtp delivery failed: %w", errors.Join(startTLSErr, tlsErr))
}

func (s *EmailService) dialSMTP(ctx context.Context, msg *mail.Msg, implicitTLS bool) error {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.SMTPUser),
		mail.WithPassword(s.cfg.SMTPPass),
		mail.WithTimeout(s.cfg.SMTPTimeout),
	}
	if implicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	// Last, so no TLS option can move us off the configured port.
	opts = append(opts, mail.WithPort(s.cfg.SMTPPort))

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SMTPTimeout)
	defer cancel()

	return client.DialAndSendWithContext(ctx, msg)
}

func (s *EmailService) sendResend(ctx context.Context, to string, content *emailContent) error {
	params := &resend.SendEmailRequest{
		From:    s.cfg.From,
		To:      []string{to},
		Subject: content.Subject,
		Text:    content.Text,
		Html:    content.HTML,
	}

	_, err := s.resend.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend delivery failed: %w", err)
	}
	return nil
}
