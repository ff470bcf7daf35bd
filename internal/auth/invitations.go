package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/observability/logger"
	tokens "github.com/minispace/minispace/internal/security/token"
)

// CreateInvitation genera un token de 7 días y envía el link de registro.
// Requiere un sender configurado. super_admin no se puede invitar.
func (s *Service) CreateInvitation(ctx context.Context, tenantSlug, emailAddr string, role repository.Role, invitedBy *uuid.UUID) (*repository.Invitation, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.invitation"), logger.Op("CreateInvitation"),
		logger.TenantSlug(tenantSlug), logger.Email(emailAddr), logger.Role(string(role)),
	)

	emailAddr = normalizeEmail(emailAddr)
	if !validEmail(emailAddr) || !role.Valid() || role == repository.RoleSuperAdmin {
		return nil, ErrInvalidInput
	}
	if s.mailer == nil {
		return nil, ErrEmailServiceUnavailable
	}
	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return nil, mapTenantErr(err, ErrTenantNotFound)
	}

	token, err := tokens.GenerateAlphanumeric(tokens.LinkTokenLength)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv := repository.Invitation{
		ID:        uuid.New(),
		Email:     emailAddr,
		Token:     token,
		Role:      role,
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(InvitationTTL),
		CreatedAt: now,
	}
	if err := ts.Invitations().Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("auth: create invitation: %w", err)
	}

	url := s.tenantURL(ref.Slug, "register", token)
	if err := s.mailer.SendInvitation(ctx, emailAddr, url, ref.DisplayName, role.Label()); err != nil {
		log.Error("invitation email failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrEmailServiceUnavailable, err)
	}
	s.metrics.InvitationCreated(ref.Slug)
	log.Info("invitation sent")
	return &inv, nil
}

// RegisterFromInvite crea el usuario con el email y rol de la invitación.
// Consumir la invitación y crear el usuario ocurren juntos: una invitación
// nunca registra dos cuentas.
func (s *Service) RegisterFromInvite(ctx context.Context, tenantSlug, token, firstName, lastName, pw, locale string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.invitation"), logger.Op("RegisterFromInvite"),
		logger.TenantSlug(tenantSlug),
	)

	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, ErrInvalidInput
	}
	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return nil, mapTenantErr(err, ErrInvitationExpiredOrUsed)
	}
	invs := ts.Invitations()
	inv, err := invs.GetActiveByToken(ctx, token, s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvitationExpiredOrUsed
		}
		return nil, fmt.Errorf("auth: load invitation: %w", err)
	}
	if err := s.checkPolicy(pw); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, pw)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	if locale == "" {
		locale = s.locale
	}

	u, err := invs.Accept(ctx, inv.ID, s.now(), repository.CreateUserInput{
		Email:           inv.Email,
		PasswordHash:    hash,
		FirstName:       firstName,
		LastName:        lastName,
		Role:            inv.Role,
		PreferredLocale: locale,
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, ErrInvitationExpiredOrUsed
		case repository.IsConflict(err):
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("auth: accept invitation: %w", err)
	}
	log.Info("user registered from invitation", logger.UserID(u.ID.String()), logger.Role(string(u.Role)))
	return u, nil
}

// ListPendingInvitations devuelve las invitaciones activas, más nuevas primero.
func (s *Service) ListPendingInvitations(ctx context.Context, tenantSlug string) ([]repository.Invitation, error) {
	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return nil, mapTenantErr(err, ErrTenantNotFound)
	}
	out, err := ts.Invitations().ListPending(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("auth: list invitations: %w", err)
	}
	return out, nil
}

// DeleteInvitation borra una invitación no usada. false si no existía o ya
// se había usado.
func (s *Service) DeleteInvitation(ctx context.Context, tenantSlug string, id uuid.UUID) (bool, error) {
	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return false, mapTenantErr(err, ErrTenantNotFound)
	}
	ok, err := ts.Invitations().Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("auth: delete invitation: %w", err)
	}
	return ok, nil
}
