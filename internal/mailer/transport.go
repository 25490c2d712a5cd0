package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/wishmail/wishmail/internal/config"
)

const implicitTLSPort = 465

// Message is a fully rendered email ready for delivery.
type Message struct {
	FromName string
	FromAddr string
	ToName   string
	ToAddr   string
	Subject  string
	Text     string
	HTML     string
}

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPTransport delivers over authenticated SMTP. Port 465 uses implicit
// TLS; any other port requires STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPTransport builds a transport from mail settings.
func NewSMTPTransport(cfg config.MailConfig) (*SMTPTransport, error) {
	if cfg.Server == "" {
		return nil, errors.New("mail server is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid mail port %d", cfg.Port)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPTransport{
		host:     cfg.Server,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.AuthCode,
		timeout:  timeout,
	}, nil
}

// Send dials, authenticates and delivers msg with text and HTML alternatives.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.username),
		mail.WithPassword(t.password),
		mail.WithTimeout(t.timeout),
	}
	if t.port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(t.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.FromAddr); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.FromAddr, err)
	}
	if err := m.AddToFormat(msg.ToName, msg.ToAddr); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.ToAddr, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
