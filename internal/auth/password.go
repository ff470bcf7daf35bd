package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/observability/logger"
	tokens "github.com/minispace/minispace/internal/security/token"
	"github.com/minispace/minispace/internal/tenant"
)

// Métodos de AdminResetPassword.
const (
	ResetMethodEmail        = "email"
	ResetMethodTempPassword = "temp_password"
)

// Valores de la label kind de password_resets_total.
const (
	resetKindRequest   = "request"
	resetKindCompleted = "completed"
	resetKindAdmin     = "admin"
)

// ChangePassword exige la contraseña actual. En éxito limpia
// force_password_change y revoca todas las sesiones del usuario.
func (s *Service) ChangePassword(ctx context.Context, tenantSlug string, userID uuid.UUID, current, next string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.password"), logger.Op("ChangePassword"),
		logger.TenantSlug(tenantSlug), logger.UserID(userID.String()),
	)

	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return mapTenantErr(err, ErrTenantNotFound)
	}
	if _, err := s.verifyUserPassword(ctx, ts, userID, current); err != nil {
		log.Info("change password rejected", logger.Err(err))
		return err
	}
	if err := s.checkPolicy(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := ts.Users().UpdatePassword(ctx, userID, hash, false); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if err := s.revokeAll(ctx, ts, userID); err != nil {
		return err
	}
	log.Info("password changed")
	return nil
}

// UpdateEmail exige la contraseña. El email nuevo no puede estar en uso por
// otro usuario del tenant. En éxito revoca todas las sesiones.
func (s *Service) UpdateEmail(ctx context.Context, tenantSlug string, userID uuid.UUID, newEmail, pw string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.password"), logger.Op("UpdateEmail"),
		logger.TenantSlug(tenantSlug), logger.UserID(userID.String()),
	)

	newEmail = normalizeEmail(newEmail)
	if !validEmail(newEmail) {
		return ErrInvalidInput
	}
	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return mapTenantErr(err, ErrTenantNotFound)
	}
	if _, err := s.verifyUserPassword(ctx, ts, userID, pw); err != nil {
		log.Info("update email rejected", logger.Err(err))
		return err
	}

	users := ts.Users()
	other, err := users.GetByEmail(ctx, newEmail)
	switch {
	case err == nil && other.ID != userID:
		return ErrEmailInUse
	case err != nil && !isNotFound(err):
		return fmt.Errorf("auth: lookup email: %w", err)
	}
	if err := users.UpdateEmail(ctx, userID, newEmail); err != nil {
		if repository.IsConflict(err) {
			return ErrEmailInUse
		}
		return fmt.Errorf("auth: update email: %w", err)
	}
	if err := s.revokeAll(ctx, ts, userID); err != nil {
		return err
	}
	log.Info("email updated", logger.Email(newEmail))
	return nil
}

// RequestPasswordReset crea un token de reset de una hora y envía el link.
// Siempre devuelve nil salvo fallas de infraestructura: ni un tenant ni un
// email desconocidos se distinguen del caso exitoso, y los errores de envío
// se tragan.
func (s *Service) RequestPasswordReset(ctx context.Context, tenantSlug, emailAddr string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.password"), logger.Op("RequestPasswordReset"),
		logger.TenantSlug(tenantSlug), logger.Email(emailAddr),
	)

	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		if isTenantMiss(err) {
			log.Info("reset requested for unknown tenant")
			return nil
		}
		return fmt.Errorf("auth: resolve tenant: %w", err)
	}
	u, reason, err := s.activeUserByEmail(ctx, ts, emailAddr)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("reset requested for unknown user", logger.String("reason", reason))
			return nil
		}
		return err
	}
	if err := s.sendResetLink(ctx, ref, ts, u); err != nil {
		return err
	}
	s.metrics.PasswordReset(ref.Slug, resetKindRequest)
	return nil
}

// sendResetLink persiste el token y manda el email; el envío es best-effort.
func (s *Service) sendResetLink(ctx context.Context, ref tenant.Ref, ts repository.TenantStore, u *repository.User) error {
	token, err := tokens.GenerateAlphanumeric(tokens.LinkTokenLength)
	if err != nil {
		return err
	}
	now := s.now()
	row := repository.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: now.Add(PasswordResetTTL),
		CreatedAt: now,
	}
	if err := ts.PasswordResets().Create(ctx, row); err != nil {
		return fmt.Errorf("auth: create reset token: %w", err)
	}

	log := logger.From(ctx).With(logger.Component("auth.password"), logger.TenantSlug(ref.Slug), logger.UserID(u.ID.String()))
	if s.mailer == nil {
		log.Warn("reset token created but no email sender configured")
		return nil
	}
	url := s.tenantURL(ref.Slug, "reset-password", token)
	if err := s.mailer.SendPasswordReset(ctx, u.Email, u.DisplayName(), url, ref.DisplayName); err != nil {
		log.Warn("reset email failed", logger.Err(err))
	}
	return nil
}

// ResetPassword consume un token de reset válido, fija la contraseña nueva y
// revoca todas las sesiones del usuario.
func (s *Service) ResetPassword(ctx context.Context, tenantSlug, token, next string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.password"), logger.Op("ResetPassword"),
		logger.TenantSlug(tenantSlug),
	)

	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return mapTenantErr(err, ErrResetTokenInvalidOrExpired)
	}
	resets := ts.PasswordResets()
	rt, err := resets.GetActiveByToken(ctx, token, s.now())
	if err != nil {
		if isNotFound(err) {
			return ErrResetTokenInvalidOrExpired
		}
		return fmt.Errorf("auth: load reset token: %w", err)
	}
	if err := s.checkPolicy(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	won, err := resets.Consume(ctx, rt.ID, s.now())
	if err != nil {
		return fmt.Errorf("auth: consume reset token: %w", err)
	}
	if !won {
		return ErrResetTokenInvalidOrExpired
	}
	if err := ts.Users().UpdatePassword(ctx, rt.UserID, hash, false); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if err := s.revokeAll(ctx, ts, rt.UserID); err != nil {
		return err
	}
	s.metrics.PasswordReset(ref.Slug, resetKindCompleted)
	log.Info("password reset completed", logger.UserID(rt.UserID.String()))
	return nil
}

// AdminResetResult: TempPassword solo viene con ResetMethodTempPassword.
type AdminResetResult struct {
	Method       string
	Email        string
	TempPassword string
}

// AdminResetPassword lo usa un administrador ya autenticado en el tenant.
// temp_password fija una contraseña temporal y fuerza el cambio; email envía
// un link de reset. Ambos revocan todas las sesiones del usuario.
func (s *Service) AdminResetPassword(ctx context.Context, tenantSlug string, userID uuid.UUID, method string) (*AdminResetResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.password"), logger.Op("AdminResetPassword"),
		logger.TenantSlug(tenantSlug), logger.UserID(userID.String()), logger.String("method", method),
	)

	if method == "" {
		method = ResetMethodEmail
	}
	if method != ResetMethodEmail && method != ResetMethodTempPassword {
		return nil, ErrInvalidInput
	}
	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return nil, mapTenantErr(err, ErrTenantNotFound)
	}
	u, err := ts.Users().GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrUserNotFound
	}

	res := &AdminResetResult{Method: method, Email: u.Email}
	switch method {
	case ResetMethodTempPassword:
		temp, err := tokens.GenerateAlphanumeric(tokens.TempPasswordLength)
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, temp)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password: %w", err)
		}
		if err := ts.Users().UpdatePassword(ctx, u.ID, hash, true); err != nil {
			return nil, fmt.Errorf("auth: update password: %w", err)
		}
		res.TempPassword = temp
	default:
		if err := s.sendResetLink(ctx, ref, ts, u); err != nil {
			return nil, err
		}
	}
	if err := s.revokeAll(ctx, ts, u.ID); err != nil {
		return nil, err
	}
	s.metrics.PasswordReset(ref.Slug, resetKindAdmin)
	log.Info("admin password reset")
	return res, nil
}

// verifyUserPassword: usuario inexistente, inactivo o contraseña incorrecta
// => ErrInvalidCredentials.
func (s *Service) verifyUserPassword(ctx context.Context, ts repository.TenantStore, userID uuid.UUID, pw string) (*repository.User, error) {
	u, err := ts.Users().GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(ctx, pw, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("auth: verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
