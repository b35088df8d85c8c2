// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LogSender logs messages instead of delivering them. It writes recipients
// and bodies, codes included, to the log, so it is for local development only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "send email",
		"from", msg.From.Email,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.HTML,
	)
	return nil
}

// MemorySender records messages for inspection in tests.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewMemorySender creates an empty MemorySender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// Send records msg.
func (s *MemorySender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// FailWith makes subsequent sends return err. Pass nil to recover.
func (s *MemorySender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Messages returns a copy of the recorded messages.
func (s *MemorySender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Last returns the most recent message sent to recipient.
func (s *MemorySender) Last(recipient string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].To == recipient {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

var (
	_ Sender = (*LogSender)(nil)
	_ Sender = (*MemorySender)(nil)
)
