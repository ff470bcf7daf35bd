package tenant

import (
	"errors"
	"regexp"
	"strings"
)

// SchemaPrefix antecede al slug en el nombre del schema de cada garderie.
const SchemaPrefix = "garderie_"

// MaxSlugLength deja el schema dentro de los 63 bytes de un identificador
// de Postgres (NAMEDATALEN-1), que trunca el resto en silencio.
const MaxSlugLength = 63 - len(SchemaPrefix)

var (
	ErrInvalidSlug = errors.New("tenant: invalid slug")

	slugRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,53}$`)
	schemaRe = regexp.MustCompile(`^garderie_[a-z0-9][a-z0-9_]{0,53}$`)
)

// NormalizeSlug pasa a minúsculas y valida el slug.
func NormalizeSlug(slug string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(slug))
	if !slugRe.MatchString(s) {
		return "", ErrInvalidSlug
	}
	return s, nil
}

// SchemaName arma "garderie_<slug>" con "-" reemplazado por "_".
func SchemaName(slug string) (string, error) {
	s, err := NormalizeSlug(slug)
	if err != nil {
		return "", err
	}
	return SchemaPrefix + strings.ReplaceAll(s, "-", "_"), nil
}

// ValidSchema indica si el nombre tiene la forma que produce SchemaName.
// Los stores lo chequean de nuevo antes de usarlo como identificador.
func ValidSchema(schema string) bool {
	return schemaRe.MatchString(schema)
}
