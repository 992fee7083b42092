// Package notify delivers transactional email (verification links, password
// resets, contact-form copies). Delivery failure is never fatal to the
// request that triggered it; callers log and move on.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message to a single recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig carries the upstream relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether enough is set to attempt real delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

func (c SMTPConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// SMTPSender composes RFC 5322 messages and relays them over SMTP.
type SMTPSender struct {
	cfg SMTPConfig
	log *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, log *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := compose(s.cfg.From, msg)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(s.cfg.addr(), auth, s.cfg.From, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.InfoContext(ctx, "email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func compose(from string, msg Message) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	toAddr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parse to address: %w", err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// LogSender stands in when no SMTP relay is configured. It writes the whole
// message to the log so development flows (verification links, reset tokens)
// remain usable without a mail server.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "email delivery skipped, smtp not configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
