package outbox

import (
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseIdentifier reads "table" or "schema.table".
func ParseIdentifier(s string) (pgx.Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(ErrInvalidMessage, "outbox table is empty")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, errors.Wrapf(ErrInvalidMessage, "outbox table %q: expected table or schema.table", s)
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if !identPart.MatchString(parts[i]) {
			return nil, errors.Wrapf(ErrInvalidMessage, "outbox table %q: bad part %q", s, p)
		}
	}
	return pgx.Identifier(parts), nil
}
