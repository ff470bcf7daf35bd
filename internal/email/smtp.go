package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/observability/logger"
)

// SMTPTransport implementa Transport usando SMTP.
type SMTPTransport struct {
	Host               string
	Port               int
	From               string
	FromName           string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewSMTPTransport crea un SMTPTransport. Puerto 465 implica SSL implícito.
func NewSMTPTransport(host string, port int, from, user, pass string) *SMTPTransport {
	mode := "auto"
	if port == 465 {
		mode = "ssl"
	}
	return &SMTPTransport{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: mode,
		Timeout: 10 * time.Second,
	}
}

func (s *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
		logger.Email(msg.To),
	)

	m := mail.NewMessage()
	fromName := msg.FromName
	if fromName == "" {
		fromName = s.FromName
	}
	m.SetAddressHeader("From", s.From, fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", s.messageID())

	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text == "" {
			m.SetBody("text/html", msg.HTML)
		} else {
			m.AddAlternative("text/html", msg.HTML)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.Timeout = s.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		diag := DiagnoseSMTP(err)
		log.Error("smtp send failed",
			logger.String("diag", diag.Code), logger.Bool("temporary", diag.Temporary), logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}

func (s *SMTPTransport) messageID() string {
	domain := "localhost"
	if i := strings.LastIndex(s.From, "@"); i >= 0 && i < len(s.From)-1 {
		domain = s.From[i+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
