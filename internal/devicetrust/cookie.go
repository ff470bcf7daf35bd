package devicetrust

import (
	"net/http"
	"strings"
	"time"
)

const DefaultCookieName = "tdt"

// CookieConfig controla cómo se emite la cookie de dispositivo.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	TTL    time.Duration
}

func (c CookieConfig) name() string {
	if strings.TrimSpace(c.Name) == "" {
		return DefaultCookieName
	}
	return c.Name
}

// Cookie arma la cookie HttpOnly/SameSite=Lax con el token rotado.
func (c CookieConfig) Cookie(tok Token) *http.Cookie {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = TTL
	}
	ck := &http.Cookie{
		Name:     c.name(),
		Value:    tok.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl).UTC(),
		MaxAge:   int(ttl.Seconds()),
	}
	if strings.TrimSpace(c.Domain) != "" {
		ck.Domain = c.Domain
	}
	return ck
}

// DeletionCookie expira la cookie en el navegador (logout).
func (c CookieConfig) DeletionCookie() *http.Cookie {
	ck := &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(c.Domain) != "" {
		ck.Domain = c.Domain
	}
	return ck
}

// FromRequest lee el valor crudo de la cookie; "" si no está.
func (c CookieConfig) FromRequest(r *http.Request) string {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return ck.Value
}
