package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/observability/logger"
)

// Refresh rota el refresh token: valida firma y exp, busca la fila por jti,
// chequea la expiración de la fila y el hash, revoca la fila vieja con un
// UPDATE condicional y emite un par nuevo. Un token ya rotado siempre falla.
func (s *Service) Refresh(ctx context.Context, tenantSlug, refreshToken string) (sess *Session, err error) {
	defer s.metrics.ObserveOp("Refresh", time.Now())
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.session"), logger.Op("Refresh"),
		logger.TenantSlug(tenantSlug),
	)
	label := metrics.UnknownTenant
	defer func() {
		if err != nil {
			s.metrics.Refresh(label, metrics.RefreshRejected)
			log.Info("refresh rejected", logger.Err(err))
		}
	}()

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	jti, _ := claims.TokenID()
	sub, _ := claims.UserID()
	log = log.With(logger.JTI(jti.String()), logger.UserID(sub.String()))

	ref, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		return nil, mapTenantErr(err, ErrInvalidToken)
	}
	label = ref.Slug

	tokens := ts.RefreshTokens()
	stored, err := tokens.Get(ctx, jti)
	switch {
	case err == nil && stored.Revoked:
		return nil, ErrTokenRevokedOrUnknown
	case err != nil && isNotFound(err):
		return nil, ErrTokenRevokedOrUnknown
	case err != nil:
		return nil, fmt.Errorf("auth: load refresh: %w", err)
	}
	if stored.UserID != sub {
		return nil, ErrTokenMismatch
	}
	// La fila manda aunque el JWT siga vigente.
	if !stored.ExpiresAt.After(s.now()) {
		return nil, ErrTokenExpired
	}
	ok, err := s.hasher.VerifyToken(ctx, refreshToken, stored.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("auth: verify refresh: %w", err)
	}
	if !ok {
		return nil, ErrTokenMismatch
	}

	// Único punto de decisión bajo replays concurrentes.
	if _, err := tokens.Revoke(ctx, jti); err != nil {
		if isNotFound(err) {
			return nil, ErrTokenRevokedOrUnknown
		}
		return nil, fmt.Errorf("auth: revoke refresh: %w", err)
	}

	u, err := ts.Users().GetByID(ctx, sub)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	sess, err = s.issueSession(ctx, ref, ts, u)
	if err != nil {
		return nil, err
	}
	s.metrics.Refresh(ref.Slug, metrics.RefreshRotated)
	log.Debug("refresh rotated")
	return sess, nil
}

// Logout revoca el refresh token y borra el dispositivo, ambos best-effort.
// Nunca falla hacia el llamador: tokens inválidos o ya revocados se ignoran.
func (s *Service) Logout(ctx context.Context, tenantSlug, refreshToken, deviceCookie string) {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("auth.session"), logger.Op("Logout"),
		logger.TenantSlug(tenantSlug),
	)

	_, ts, err := s.tenantStore(ctx, tenantSlug)
	if err != nil {
		log.Info("logout: tenant not resolved", logger.Err(err))
		return
	}

	if claims, err := s.tokens.ParseRefresh(refreshToken); err == nil {
		jti, _ := claims.TokenID()
		if _, err := ts.RefreshTokens().Revoke(ctx, jti); err != nil && !isNotFound(err) {
			log.Warn("logout: revoke failed", logger.JTI(jti.String()), logger.Err(err))
		}
	}
	if deviceCookie != "" {
		s.devices.Revoke(ctx, ts.TrustedDevices(), deviceCookie)
	}
	log.Debug("logout done")
}
