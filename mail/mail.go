// Package mail provides Mailer implementations for the authcore service:
// an SMTP sender for deployments and a logging sender for development.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Config configures the SMTP sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the envelope and header sender address.
	From string

	// BaseURL is the public frontend origin used to build the links
	// embedded in verification and reset emails.
	BaseURL string
}

// SMTPSender delivers mail over plain SMTP with optional AUTH.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender validates the config and returns the sender.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mail: base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.BaseURL, token)
	body := "Welcome to Immolink.\r\n\r\nConfirm your email address:\r\n" + link + "\r\n\r\nThe link expires in 24 hours.\r\n"
	return s.send(ctx, email, "Confirm your email address", body)
}

func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, token)
	body := "A password reset was requested for your account.\r\n\r\nChoose a new password:\r\n" + link + "\r\n\r\nThe link expires in 1 hour. If you did not request this, ignore this email.\r\n"
	return s.send(ctx, email, "Reset your password", body)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

// LogSender writes outbound mail to the log instead of delivering it.
// Intended for development and tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender logging through logger, or slog.Default
// when nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationEmail(ctx context.Context, email, token string) error {
	s.logger.InfoContext(ctx, "verification email",
		"email", email,
		"token", token,
	)
	return nil
}

func (s *LogSender) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	s.logger.InfoContext(ctx, "password reset email",
		"email", email,
		"token", token,
	)
	return nil
}
