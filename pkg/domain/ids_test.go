package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustreg/contracts/registry"
	dErrors "trustreg/pkg/domain-errors"
)

// TestParseEntityID_SecurityInvariants validates trust boundary parsing rules.
// Identifiers stay opaque: anything printable and bounded is accepted verbatim.
func TestParseEntityID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Null byte injection", "ST2CY5V39\x00NHDPWSX", true},
		{"Oversized input", strings.Repeat("a", MaxIdentifierLength+1), true},
		{"Unicode zero-width space", "ST2CY5V39\u200BNHDPWSX", true},
		{"Newline", "acme\nadmin", true},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},

		{"Stacks principal", "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG", false},
		{"Contract principal", "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.manufacturer-verification", false},
		{"Max length", strings.Repeat("a", MaxIdentifierLength), false},
		{"Inner spaces kept", "Acme Corp", false},
		{"SQL looking text is opaque", "'; DROP TABLE users;--", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntityID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, registry.EntityID(tt.input), got)
		})
	}
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	require.NoError(t, err)
	assert.Equal(t, registry.Principal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"), p)

	_, err = ParsePrincipal("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
