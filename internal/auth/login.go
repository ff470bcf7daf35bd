package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/twofactor"
)

// LoginStatus es el resultado del primer paso del login.
type LoginStatus string

const (
	StatusTwoFactorRequired LoginStatus = "2fa_required"
	StatusAuthenticated     LoginStatus = "authenticated"
)

// LoginResult: con StatusAuthenticated trae Session (atajo por dispositivo);
// con StatusTwoFactorRequired el código ya salió por email.
type LoginResult struct {
	Status     LoginStatus
	TenantName string
	Session    *Session
}

// Login valida email y contraseña. Si deviceCookie es un dispositivo de
// confianza vigente del usuario, lo rota y emite la sesión directamente;
// si no, invalida cualquier código previo y envía uno nuevo por email.
func (s *Service) Login(ctx context.Context, tenantSlug, emailAddr, pw, deviceCookie string) (*LoginResult, error) {
	defer s.metrics.ObserveOp("Login", time.Now())
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.login"), logger.Op("Login"),
		logger.TenantSlug(tenantSlug), logger.Email(emailAddr),
	)

	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		if isTenantMiss(err) {
			// Mismo error que una contraseña mala: no se revela qué tenants existen.
			log.Info("login rejected: unknown tenant", logger.Err(err))
			s.metrics.Login(metrics.UnknownTenant, metrics.LoginFailed)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: resolve tenant: %w", err)
	}

	u, reason, err := s.checkCredentials(ctx, ts, emailAddr, pw)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("login rejected", logger.String("reason", reason))
			s.metrics.Login(ref.Slug, metrics.LoginFailed)
		}
		return nil, err
	}
	log = log.With(logger.UserID(u.ID.String()))

	if deviceCookie != "" {
		tok, trusted, err := s.devices.Rotate(ctx, ts.TrustedDevices(), u.ID, deviceCookie)
		if err != nil {
			return nil, err
		}
		if trusted {
			sess, err := s.issueSession(ctx, ref, ts, u)
			if err != nil {
				return nil, err
			}
			sess.DeviceToken = tok
			log.Info("login via trusted device")
			s.metrics.Login(ref.Slug, metrics.LoginDeviceSkip)
			return &LoginResult{Status: StatusAuthenticated, TenantName: ref.DisplayName, Session: sess}, nil
		}
		log.Debug("device cookie not trusted, falling back to 2fa")
	}

	if s.mailer == nil {
		log.Error("2fa required but no email sender configured")
		return nil, ErrEmailServiceUnavailable
	}

	codes := ts.TwoFactorCodes()
	if err := s.twoFactor.InvalidateActive(ctx, codes, u.ID); err != nil {
		return nil, err
	}
	code, err := s.twoFactor.Issue(ctx, codes, u.ID)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.Send2FACode(ctx, u.Email, code, ref.DisplayName); err != nil {
		log.Error("2fa email failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrEmailServiceUnavailable, err)
	}

	s.metrics.TwoFactorEmailSent(ref.Slug)
	s.metrics.Login(ref.Slug, metrics.Login2FASent)
	log.Info("2fa code sent")
	return &LoginResult{Status: StatusTwoFactorRequired, TenantName: ref.DisplayName}, nil
}

// Verify2FA valida el código enviado en Login. En éxito emite la sesión y
// un dispositivo de confianza nuevo.
func (s *Service) Verify2FA(ctx context.Context, tenantSlug, emailAddr, code string) (*Session, error) {
	defer s.metrics.ObserveOp("Verify2FA", time.Now())
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.login"), logger.Op("Verify2FA"),
		logger.TenantSlug(tenantSlug), logger.Email(emailAddr),
	)

	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		if isTenantMiss(err) {
			log.Info("2fa rejected: unknown tenant", logger.Err(err))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: resolve tenant: %w", err)
	}

	u, reason, err := s.activeUserByEmail(ctx, ts, emailAddr)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("2fa rejected", logger.String("reason", reason))
		}
		return nil, err
	}

	if err := s.twoFactor.Verify(ctx, ts.TwoFactorCodes(), u.ID, code); err != nil {
		s.metrics.Login(ref.Slug, metrics.Login2FAFailed)
		log.Info("2fa rejected", logger.Err(err))
		switch {
		case errors.Is(err, twofactor.ErrCodeExpiredOrMissing):
			return nil, ErrCodeExpiredOrMissing
		case errors.Is(err, twofactor.ErrTooManyAttempts):
			return nil, ErrTooManyAttempts
		case errors.Is(err, twofactor.ErrInvalidCode):
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	sess, err := s.issueSession(ctx, ref, ts, u)
	if err != nil {
		return nil, err
	}
	tok, err := s.devices.Issue(ctx, ts.TrustedDevices(), u.ID)
	if err != nil {
		return nil, err
	}
	sess.DeviceToken = tok

	s.metrics.Login(ref.Slug, metrics.LoginSuccess)
	log.Info("login completed", logger.UserID(u.ID.String()), logger.DeviceID(tok.ID.String()))
	return sess, nil
}

// Motivos de rechazo. Solo van al log: el caller recibe ErrInvalidCredentials a secas.
const (
	rejectUnknownUser      = "unknown user"
	rejectInactiveUser     = "inactive user"
	rejectPasswordMismatch = "password mismatch"
)

// dummyPassword se verifica cuando no hay usuario, para que el rechazo
// cueste lo mismo que una contraseña mala.
const dummyPassword = "minispace-dummy-password"

// activeUserByEmail: usuario inexistente o inactivo => ErrInvalidCredentials
// más el motivo para el log.
func (s *Service) activeUserByEmail(ctx context.Context, ts repository.TenantStore, emailAddr string) (*repository.User, string, error) {
	u, err := ts.Users().GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, rejectUnknownUser, ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("auth: load user: %w", err)
	}
	if !u.IsActive {
		return nil, rejectInactiveUser, ErrInvalidCredentials
	}
	return u, "", nil
}

func (s *Service) checkCredentials(ctx context.Context, ts repository.TenantStore, emailAddr, pw string) (*repository.User, string, error) {
	u, reason, err := s.activeUserByEmail(ctx, ts, emailAddr)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.burnVerify(ctx, pw)
		}
		return nil, reason, err
	}
	ok, err := s.hasher.Verify(ctx, pw, u.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("auth: verify password: %w", err)
	}
	if !ok {
		return nil, rejectPasswordMismatch, ErrInvalidCredentials
	}
	return u, "", nil
}

// burnVerify corre un bcrypt contra un hash fijo con el costo del hasher.
// El resultado se descarta.
func (s *Service) burnVerify(ctx context.Context, pw string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(ctx, dummyPassword)
		if err != nil {
			logger.From(ctx).Warn("dummy hash unavailable", logger.Component("auth.login"), logger.Err(err))
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, pw, s.dummyHash)
}
