package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minispace/minispace/internal/observability/logger"
)

var (
	ErrSendFailed   = errors.New("email: send failed")
	ErrInvalidInput = errors.New("email: invalid input")
)

// Sender es lo que necesita el orquestador de auth.
type Sender interface {
	Send2FACode(ctx context.Context, to, code, tenantName string) error
	SendInvitation(ctx context.Context, to, url, tenantName, roleLabel string) error
	SendPasswordReset(ctx context.Context, to, name, url, tenantName string) error
}

// Message es un email listo para enviar (multipart/alternative).
type Message struct {
	FromName string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
}

// Transport entrega un Message. Implementado por SMTPTransport.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer implementa Sender sobre un Transport.
type Mailer struct {
	tr Transport
}

var _ Sender = (*Mailer)(nil)

func NewMailer(tr Transport) *Mailer { return &Mailer{tr: tr} }

func (m *Mailer) Send2FACode(ctx context.Context, to, code, tenantName string) error {
	if strings.TrimSpace(to) == "" || code == "" {
		return ErrInvalidInput
	}
	html, text, err := render(tpl2FA, codeVars{Tenant: tenantName, Code: code})
	if err != nil {
		return err
	}
	return m.send(ctx, "Send2FACode", Message{
		FromName: tenantName,
		To:       to,
		Subject:  "Code de connexion - " + tenantName,
		HTML:     html,
		Text:     text,
	})
}

func (m *Mailer) SendInvitation(ctx context.Context, to, url, tenantName, roleLabel string) error {
	if strings.TrimSpace(to) == "" || url == "" {
		return ErrInvalidInput
	}
	html, text, err := render(tplInvite, inviteVars{Tenant: tenantName, Link: url, Role: roleLabel})
	if err != nil {
		return err
	}
	return m.send(ctx, "SendInvitation", Message{
		FromName: tenantName,
		To:       to,
		Subject:  "Invitation à rejoindre " + tenantName,
		HTML:     html,
		Text:     text,
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, url, tenantName string) error {
	if strings.TrimSpace(to) == "" || url == "" {
		return ErrInvalidInput
	}
	html, text, err := render(tplReset, resetVars{Tenant: tenantName, Name: name, Link: url})
	if err != nil {
		return err
	}
	return m.send(ctx, "SendPasswordReset", Message{
		FromName: tenantName,
		To:       to,
		ToName:   name,
		Subject:  "Réinitialisation de mot de passe - " + tenantName,
		HTML:     html,
		Text:     text,
	})
}

func (m *Mailer) send(ctx context.Context, op string, msg Message) error {
	if err := m.tr.Send(ctx, msg); err != nil {
		logger.From(ctx).Warn("email delivery failed",
			logger.Component("email"), logger.Op(op), logger.Email(msg.To), logger.Err(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}
