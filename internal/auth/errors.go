package auth

import "errors"

// Errores del orquestador. Los handlers los traducen a respuestas; las
// fallas de autenticación se reportan de forma genérica.
var (
	ErrInvalidCredentials         = errors.New("auth: invalid credentials")
	ErrTenantNotFound             = errors.New("auth: tenant not found")
	ErrCodeExpiredOrMissing       = errors.New("auth: 2fa code expired or missing")
	ErrTooManyAttempts            = errors.New("auth: too many 2fa attempts")
	ErrInvalidCode                = errors.New("auth: invalid 2fa code")
	ErrInvalidToken               = errors.New("auth: invalid token")
	ErrTokenRevokedOrUnknown      = errors.New("auth: refresh token revoked or unknown")
	ErrTokenExpired               = errors.New("auth: refresh token expired")
	ErrTokenMismatch              = errors.New("auth: refresh token mismatch")
	ErrInvitationExpiredOrUsed    = errors.New("auth: invitation expired or used")
	ErrResetTokenInvalidOrExpired = errors.New("auth: reset token invalid or expired")
	ErrEmailServiceUnavailable    = errors.New("auth: email service unavailable")
	ErrEmailInUse                 = errors.New("auth: email already in use")
	ErrUserNotFound               = errors.New("auth: user not found")
	ErrInvalidInput               = errors.New("auth: invalid input")
)
