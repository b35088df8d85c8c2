// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// DefaultAppName is used in the sender name and templates.
const DefaultAppName = "Melodies"

// MailerConfig configures a Mailer.
type MailerConfig struct {
	AppName     string
	FromAddress string
	// FrontendURL is the web client base, used for the welcome link.
	FrontendURL string
	// CodeTTL is shown to the recipient of a verification code.
	CodeTTL time.Duration
}

// Mailer is the email Gateway.
type Mailer struct {
	cfg      MailerConfig
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger

	// nil if no registry was provided
	sent *prometheus.CounterVec
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithLogger sets the Mailer's logger.
func WithLogger(logger *slog.Logger) MailerOption {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRegistry registers melodies_notifications_total on reg.
func WithRegistry(reg prometheus.Registerer) MailerOption {
	return func(m *Mailer) {
		if reg == nil {
			return
		}
		m.sent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melodies_notifications_total",
			Help: "Notification attempts by kind and status",
		}, []string{"kind", "status"})
		reg.MustRegister(m.sent)
	}
}

// NewMailer creates a Mailer delivering through sender.
func NewMailer(cfg MailerConfig, sender Sender, opts ...MailerOption) (*Mailer, error) {
	if sender == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	if cfg.FromAddress == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("from address is required")
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	m := &Mailer{
		cfg:      cfg,
		renderer: renderer,
		sender:   sender,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SendVerificationCode renders and sends the verification template.
func (m *Mailer) SendVerificationCode(ctx context.Context, email, code, displayName string) error {
	minutes := int(m.cfg.CodeTTL / time.Minute)
	if minutes <= 0 {
		minutes = 10
	}
	return m.send(ctx, KindVerification, email, VerificationData{
		AppName:      m.cfg.AppName,
		Name:         displayName,
		Code:         code,
		ValidMinutes: minutes,
	})
}

// SendWelcome renders and sends the welcome template.
func (m *Mailer) SendWelcome(ctx context.Context, email, displayName string) error {
	return m.send(ctx, KindWelcome, email, WelcomeData{
		AppName:  m.cfg.AppName,
		Name:     displayName,
		LoginURL: m.cfg.FrontendURL + "/login",
	})
}

func (m *Mailer) send(ctx context.Context, kind Kind, to string, data any) error {
	subject, body, err := m.renderer.Render(kind, data)
	if err != nil {
		m.record(kind, "render_error")
		return err
	}

	err = m.sender.Send(ctx, Message{
		From:    Address{Name: m.cfg.AppName, Email: m.cfg.FromAddress},
		To:      to,
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		m.record(kind, "error")
		return oops.Code("NOTIFY_SEND_FAILED").With("kind", kind).With("to", to).Wrap(err)
	}

	m.record(kind, "sent")
	m.logger.DebugContext(ctx, "notification sent", "kind", kind, "to", to)
	return nil
}

func (m *Mailer) record(kind Kind, status string) {
	if m.sent != nil {
		m.sent.WithLabelValues(string(kind), status).Inc()
	}
}

var _ Gateway = (*Mailer)(nil)
