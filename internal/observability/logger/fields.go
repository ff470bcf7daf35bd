package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// ─── Sistema ───

// Layer identifica la capa (service, store, cli).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Component identifica el módulo, ej. "auth.login".
func Component(v string) zap.Field { return zap.String("component", v) }

// Op identifica la operación en curso.
func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ─── Negocio ───

func TenantSlug(v string) zap.Field { return zap.String("tenant", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// DeviceID es el id público de un dispositivo de confianza (nunca el secreto).
func DeviceID(v string) zap.Field { return zap.String("device_id", v) }

// JTI es el id de un refresh token.
func JTI(v string) zap.Field { return zap.String("jti", v) }

func Role(v string) zap.Field { return zap.String("role", v) }

// Email loguea la dirección enmascarada: "a…@e….com".
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// ─── Datos ───

func Count(v int) zap.Field { return zap.Int("count", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// MaskEmail deja la primera letra del usuario y del dominio.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	parts := strings.Split(dom, ".")
	if len(parts[0]) > 1 {
		parts[0] = parts[0][:1] + "…"
	}
	return user + "@" + strings.Join(parts, ".")
}
