// Package mailer sends notification email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/domodwyer/mailyak/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/logging"
)

var (
	// ErrDisabled is returned by the disabled sender.
	ErrDisabled = errors.New("email delivery is not configured")

	// ErrNoRecipient indicates a message without a To address.
	ErrNoRecipient = errors.New("message has no recipient")
)

// Message is an outgoing email. Text is required; HTML is optional.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages and returns the message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SMTP sends through an SMTP relay using mailyak.
type SMTP struct {
	addr     string
	auth     smtp.Auth
	from     string
	fromName string
	domain   string
	logger   *logging.Logger

	newID    func() string
	transmit func(*mailyak.MailYak) error
}

// New creates an SMTP sender from config. It returns ErrDisabled when no
// host is configured.
func New(cfg config.MailConfig, logger *logging.Logger) (*SMTP, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if cfg.From == "" {
		return nil, errors.New("mail from address is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password.Value(), cfg.SMTPHost)
	}

	domain := "localhost"
	if at := strings.LastIndex(cfg.From, "@"); at >= 0 {
		domain = cfg.From[at+1:]
	}

	return &SMTP{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		auth:     auth,
		from:     cfg.From,
		fromName: cfg.FromName,
		domain:   domain,
		logger:   logger,
		newID:    uuid.NewString,
		transmit: func(m *mailyak.MailYak) error { return m.Send() },
	}, nil
}

// Send builds and delivers msg. mailyak has no context support, so ctx is
// only checked before the SMTP conversation starts.
func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := s.newID()
	m := s.build(msg, id)
	if err := s.transmit(m); err != nil {
		s.logger.Warn(ctx, "email delivery failed",
			zap.String("subject", msg.Subject),
			zap.String("email", strings.Join(msg.To, ",")),
			zap.Error(err))
		return "", fmt.Errorf("sending email: %w", err)
	}

	s.logger.Info(ctx, "email sent",
		zap.String("email_id", id),
		zap.String("subject", msg.Subject))
	return id, nil
}

func (s *SMTP) build(msg Message, id string) *mailyak.MailYak {
	m := mailyak.New(s.addr, s.auth)
	m.From(s.from)
	if s.fromName != "" {
		m.FromName(s.fromName)
	}
	m.To(msg.To...)
	if msg.ReplyTo != "" {
		m.ReplyTo(msg.ReplyTo)
	}
	m.Subject(msg.Subject)
	m.AddHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.domain))
	m.Plain().Set(msg.Text)
	if msg.HTML != "" {
		m.HTML().Set(msg.HTML)
	}
	return m
}

// Disabled rejects every message. It stands in when SMTP is not configured
// so callers report a soft email error instead of failing.
type Disabled struct{}

// Send implements Sender.
func (Disabled) Send(context.Context, Message) (string, error) {
	return "", ErrDisabled
}

var (
	_ Sender = (*SMTP)(nil)
	_ Sender = Disabled{}
)
