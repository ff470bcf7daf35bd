// Package auth implementa el orquestador de sesiones: login con 2FA por
// email, atajo por dispositivo de confianza, rotación de refresh tokens,
// logout, invitaciones y reset de contraseña. Todo el estado vive en el
// CredentialStore del tenant; el servicio no guarda estado propio.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minispace/minispace/internal/devicetrust"
	"github.com/minispace/minispace/internal/domain/repository"
	"github.com/minispace/minispace/internal/email"
	"github.com/minispace/minispace/internal/jwt"
	"github.com/minispace/minispace/internal/metrics"
	"github.com/minispace/minispace/internal/observability/logger"
	"github.com/minispace/minispace/internal/security/password"
	"github.com/minispace/minispace/internal/tenant"
	"github.com/minispace/minispace/internal/twofactor"
)

const (
	InvitationTTL    = 7 * 24 * time.Hour
	PasswordResetTTL = time.Hour

	DefaultMinPasswordLength = 8
)

// TenantResolver valida el slug y confirma que el tenant existe.
// Implementado por *tenant.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, slug string) (tenant.Ref, error)
}

// Deps agrupa los colaboradores del servicio.
type Deps struct {
	Store     repository.CredentialStore
	Tenants   TenantResolver
	Hasher    *password.Hasher
	Tokens    *jwt.Codec
	Devices   *devicetrust.Manager
	TwoFactor *twofactor.Challenge
	// Email puede ser nil: el login queda bloqueado (2FA obligatorio) y los
	// resets se crean sin enviar.
	Email   email.Sender
	Metrics *metrics.Metrics
	Policy  password.Policy

	// BaseURL es el dominio público ("https://minispace.app"); los links
	// van a "{scheme}://{tenant}.{host}/{locale}/...".
	BaseURL       string
	DefaultLocale string
	Now           func() time.Time
}

type Service struct {
	store     repository.CredentialStore
	tenants   TenantResolver
	hasher    *password.Hasher
	tokens    *jwt.Codec
	devices   *devicetrust.Manager
	twoFactor *twofactor.Challenge
	mailer    email.Sender
	metrics   *metrics.Metrics
	policy    password.Policy
	baseURL   string
	locale    string
	clock     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("auth: store is required")
	case d.Tenants == nil:
		return nil, errors.New("auth: tenant resolver is required")
	case d.Hasher == nil:
		return nil, errors.New("auth: hasher is required")
	case d.Tokens == nil:
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		store:     d.Store,
		tenants:   d.Tenants,
		hasher:    d.Hasher,
		tokens:    d.Tokens,
		devices:   d.Devices,
		twoFactor: d.TwoFactor,
		mailer:    d.Email,
		metrics:   d.Metrics,
		policy:    d.Policy,
		baseURL:   d.BaseURL,
		locale:    d.DefaultLocale,
		clock:     d.Now,
	}
	if s.devices == nil {
		s.devices = devicetrust.NewManager(d.Hasher)
	}
	if s.twoFactor == nil {
		s.twoFactor = twofactor.New()
	}
	if s.policy.MinLength <= 0 {
		s.policy.MinLength = DefaultMinPasswordLength
	}
	if s.locale == "" {
		s.locale = "fr"
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s, nil
}

func (s *Service) now() time.Time { return s.clock() }

// Session es el par de tokens emitido tras autenticar.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *repository.User
	TenantName       string

	// DeviceToken es la cookie de dispositivo nueva; cero en Refresh.
	DeviceToken devicetrust.Token
}

// ForcePasswordChange indica que el usuario debe cambiar la contraseña
// temporal antes de seguir.
func (s *Session) ForcePasswordChange() bool {
	return s.User != nil && s.User.ForcePasswordChange
}

// tenantStore resuelve el tenant y abre sus repositorios. Devuelve los
// errores del resolver sin traducir.
func (s *Service) tenantStore(ctx context.Context, slug string) (tenant.Ref, repository.TenantStore, error) {
	ref, err := s.tenants.Resolve(ctx, slug)
	if err != nil {
		return tenant.Ref{}, nil, err
	}
	ts, err := s.store.ForTenant(ref.Schema)
	if err != nil {
		return tenant.Ref{}, nil, err
	}
	return ref, ts, nil
}

// isTenantMiss distingue "tenant inválido o inexistente" de una falla de infra.
func isTenantMiss(err error) bool {
	return errors.Is(err, tenant.ErrNotFound) || errors.Is(err, tenant.ErrInvalidSlug) ||
		errors.Is(err, repository.ErrInvalidSchema)
}

// mapTenantErr traduce un fallo de resolución a errTenant o lo envuelve.
func mapTenantErr(err, errTenant error) error {
	if isTenantMiss(err) {
		return errTenant
	}
	return fmt.Errorf("auth: resolve tenant: %w", err)
}

// issueSession firma access+refresh y persiste el refresh (hash bcrypt).
func (s *Service) issueSession(ctx context.Context, ref tenant.Ref, ts repository.TenantStore, u *repository.User) (*Session, error) {
	access, accessExp, err := s.tokens.MintAccess(u.ID, ref.Slug, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.MintRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashToken(ctx, refresh.Token)
	if err != nil {
		return nil, fmt.Errorf("auth: hash refresh: %w", err)
	}
	row := repository.RefreshToken{
		ID:        refresh.ID,
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: s.now(),
	}
	if err := ts.RefreshTokens().Create(ctx, row); err != nil {
		return nil, fmt.Errorf("auth: persist refresh: %w", err)
	}
	return &Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             u,
		TenantName:       ref.DisplayName,
	}, nil
}

// revokeAll es parte del camino feliz de todo cambio de credenciales.
func (s *Service) revokeAll(ctx context.Context, ts repository.TenantStore, userID uuid.UUID) error {
	n, err := ts.RefreshTokens().RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("auth: revoke sessions: %w", err)
	}
	logger.From(ctx).Debug("sessions revoked",
		logger.Component("auth"), logger.UserID(userID.String()), logger.Count(n))
	return nil
}

func (s *Service) checkPolicy(pw string) error { return s.policy.Check(pw) }

// tenantURL arma "{scheme}://{tenant}.{host}/{locale}/{page}?token=...".
func (s *Service) tenantURL(slug, page, token string) string {
	scheme, host := "https", strings.TrimRight(s.baseURL, "/")
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, host = host[:i], host[i+3:]
	}
	return fmt.Sprintf("%s://%s.%s/%s/%s?token=%s", scheme, slug, host, s.locale, page, token)
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func validEmail(e string) bool {
	at := strings.IndexByte(e, '@')
	return at > 0 && at < len(e)-1 && !strings.ContainsAny(e, " \t\r\n") && strings.Count(e, "@") == 1
}

func isNotFound(err error) bool { return repository.IsNotFound(err) }
