package password

import (
	"errors"
	"strings"
	"unicode"
)

// ErrWeakPassword se devuelve envuelto en *PolicyError.
var ErrWeakPassword = errors.New("password: does not satisfy policy")

// PolicyError lista los motivos ("too_short", "missing_digit", ...).
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Reasons, ",")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// Blacklist opcional de contraseñas comunes.
	Blacklist *Blacklist
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if len(s) > MaxPasswordBytes {
		reasons = append(reasons, "too_long")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, "blacklisted")
	}
	return len(reasons) == 0, reasons
}

// Check es Validate con forma de error.
func (p Policy) Check(s string) error {
	if ok, reasons := p.Validate(s); !ok {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}
