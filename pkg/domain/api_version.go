package domain

import "fmt"

// APIVersion is a route or token API version. Only known versions parse.
type APIVersion string

const (
	APIVersionV1 APIVersion = "v1"
)

var versionOrder = map[APIVersion]int{
	APIVersionV1: 1,
}

// ParseAPIVersion accepts only versions this server routes.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := versionOrder[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string {
	return string(v)
}

func (v APIVersion) IsNil() bool {
	return v == ""
}

// IsAtLeast reports whether v is the same as or newer than other. Unknown
// versions compare false both ways, so a token minted for an API this
// server does not serve is never accepted.
func (v APIVersion) IsAtLeast(other APIVersion) bool {
	this, ok := versionOrder[v]
	if !ok {
		return false
	}
	that, ok := versionOrder[other]
	if !ok {
		return false
	}
	return this >= that
}

// DefaultVersion is stamped into newly issued caller tokens.
func DefaultVersion() APIVersion {
	return APIVersionV1
}
