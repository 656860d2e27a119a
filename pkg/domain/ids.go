package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"trustreg/contracts/registry"

	dErrors "trustreg/pkg/domain-errors"
)

// MaxIdentifierLength bounds entity IDs and principals accepted at the API edge.
const MaxIdentifierLength = 256

// ParseEntityID validates an entity identifier received at a trust boundary.
// The registry itself treats identifiers as opaque; this only rejects input
// that cannot be a meaningful key (empty, non-UTF-8, control characters, oversized).
func ParseEntityID(s string) (registry.EntityID, error) {
	if err := validateIdentifier(s, "entity_id"); err != nil {
		return "", err
	}
	return registry.EntityID(s), nil
}

// ParsePrincipal validates a caller principal taken from a verified token.
func ParsePrincipal(s string) (registry.Principal, error) {
	if err := validateIdentifier(s, "principal"); err != nil {
		return "", err
	}
	return registry.Principal(s), nil
}

func validateIdentifier(s, field string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > MaxIdentifierLength {
		return dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidInput, field+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return dErrors.New(dErrors.CodeInvalidInput, field+" contains invalid characters")
		}
	}
	return nil
}
