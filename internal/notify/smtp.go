// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// SMTP defaults match Gmail submission.
const (
	DefaultSMTPHost    = "smtp.gmail.com"
	DefaultSMTPPort    = 587
	DefaultSMTPTimeout = 30 * time.Second
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Timeout bounds the whole exchange. Defaults to DefaultSMTPTimeout.
	Timeout time.Duration
}

// SMTPSender submits mail with STARTTLS and PLAIN auth.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *net.Dialer
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, oops.Code("NOTIFY_SMTP_CONFIG_INVALID").
			With("host", cfg.Host).
			Errorf("smtp username and password are required")
	}
	return &SMTPSender{cfg: cfg, dialer: &net.Dialer{Timeout: cfg.Timeout}}, nil
}

// Send delivers msg. The context deadline, when earlier than the configured
// timeout, bounds the exchange.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	errb := oops.Code("NOTIFY_SMTP_FAILED").With("addr", addr).With("to", msg.To)

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errb.With("step", "dial").Wrap(err)
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return errb.With("step", "handshake").Wrap(err)
	}
	defer func() { _ = client.Close() }()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return errb.With("step", "starttls").Wrap(err)
	}
	if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
		return errb.With("step", "auth").Wrap(err)
	}
	if err := client.Mail(msg.From.Email); err != nil {
		return errb.With("step", "mail from").Wrap(err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return errb.With("step", "rcpt to").Wrap(err)
	}

	w, err := client.Data()
	if err != nil {
		return errb.With("step", "data").Wrap(err)
	}
	if _, err := w.Write(buildMessage(msg, time.Now())); err != nil {
		_ = w.Close()
		return errb.With("step", "write").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return errb.With("step", "data close").Wrap(err)
	}
	if err := client.Quit(); err != nil {
		return errb.With("step", "quit").Wrap(err)
	}
	return nil
}

// buildMessage renders the RFC 5322 message with a Q-encoded subject.
func buildMessage(msg Message, now time.Time) []byte {
	from := mail.Address{Name: msg.From.Name, Address: msg.From.Email}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

var _ Sender = (*SMTPSender)(nil)
