// Package mail delivers transactional email (verification and password reset
// links). Delivery is fire-and-forget from the caller's point of view.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	gomail "github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the synchronous mailer selected by cfg.MailMode.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (Mailer, error) {
	switch cfg.MailMode {
	case config.MailSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mail: SMTP_HOST is required in smtp mode")
		}
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom), nil
	case config.MailLog:
		logger.Warn(ctx, "MAIL_MODE=log: mail is not delivered; verification and reset links are logged at debug level")
		return &LogMailer{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("mail: unknown mode %q", cfg.MailMode)
	}
}

// SMTPMailer sends plain-text mail through an SMTP relay. STARTTLS is used
// whenever the relay offers it.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// send is a seam for the SMTP round trip.
	send func(ctx context.Context, c *gomail.Client, m *gomail.Msg) error
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		send: func(ctx context.Context, c *gomail.Client, m *gomail.Msg) error {
			return c.DialAndSendWithContext(ctx, m)
		},
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := m.message(msg)
	if err != nil {
		return err
	}
	c, err := m.client()
	if err != nil {
		return err
	}
	if err := m.send(ctx, c, gm); err != nil {
		return fmt.Errorf("mail: smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) message(msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.From(m.From); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", m.From, err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to %q: %w", msg.To, err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return gm, nil
}

func (m *SMTPMailer) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(m.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if m.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.Username),
			gomail.WithPassword(m.Password),
		)
	}
	c, err := gomail.NewClient(m.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}
	return c, nil
}

// LogMailer writes messages to the log instead of sending them. The body
// carries live one-time links, so it only appears at debug level.
type LogMailer struct {
	Logger logging.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.Logger.Info(ctx, "mail not sent (log mode)", "to", msg.To, "subject", msg.Subject)
	m.Logger.Debug(ctx, "mail body", "to", msg.To, "body", msg.Body)
	return nil
}

// Async wraps a Mailer so Send returns immediately and delivery happens on
// its own goroutine with a bounded timeout. Failures are logged, never
// returned to the caller.
type Async struct {
	next    Mailer
	logger  logging.Logger
	timeout time.Duration
	done    func()
}

func NewAsync(next Mailer, logger logging.Logger, timeout time.Duration) *Async {
	return &Async{next: next, logger: logger, timeout: timeout}
}

func (a *Async) Send(ctx context.Context, msg Message) error {
	// detach from the request: it is cancelled as soon as the response is written
	bg := context.WithoutCancel(ctx)
	go func() {
		if a.done != nil {
			defer a.done()
		}
		sendCtx, cancel := context.WithTimeout(bg, a.timeout)
		defer cancel()
		if err := a.next.Send(sendCtx, msg); err != nil {
			a.logger.Error(sendCtx, "mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}()
	return nil
}
