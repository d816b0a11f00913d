package notify

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender delivers a rendered e-mail.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	send   func(...*gomail.Message) error
}

// NewSMTPSender creates a sender. from may carry a display name,
// e.g. "Portal <no-reply@example.com>".
func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	d := gomail.NewDialer(host, port, user, pass)
	return &SMTPSender{from: from, dialer: d, send: d.DialAndSend}
}

// Send delivers e, giving up when ctx ends. gomail bounds only the dial, so
// a relay that stalls mid-session is abandoned and left to time out on its own.
func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := s.message(e)
	done := make(chan error, 1)
	go func() { done <- s.send(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (s *SMTPSender) message(e Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	if e.ToName != "" {
		m.SetAddressHeader("To", e.To, e.ToName)
	} else {
		m.SetHeader("To", e.To)
	}
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/html", e.HTML)

	names := make([]string, 0, len(e.Inline))
	for name := range e.Inline {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data := e.Inline[name]
		m.Embed(name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return m
}

// LogSender records messages in the log instead of sending them. Used when
// SMTP is not configured.
type LogSender struct {
	log *zap.SugaredLogger
}

func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, e Email) error {
	s.log.Infow("smtp not configured, confirmation not sent", "to", e.To, "subject", e.Subject)
	return nil
}
