package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	owner         Principal = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	manufacturer1 EntityID  = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
	manufacturer2 EntityID  = "ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC"
	stranger      Principal = "ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC"
)

type RegistrySuite struct {
	suite.Suite
	reg *Registry
}

func (s *RegistrySuite) SetupTest() {
	s.reg = New(owner)
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) snapshot() map[EntityID]Record {
	out := make(map[EntityID]Record, s.reg.Len())
	for _, id := range s.reg.Entities() {
		rec, _ := s.reg.Record(id)
		out[id] = rec
	}
	return out
}

func (s *RegistrySuite) TestRegister() {
	s.Run("authority registers a fresh entity", func() {
		s.Require().NoError(s.reg.Register(owner, 100, manufacturer1, "MedSupply Inc", "MS12345"))

		rec, ok := s.reg.Record(manufacturer1)
		s.Require().True(ok)
		s.Equal(Record{Name: "MedSupply Inc", LicenseNumber: "MS12345", VerifiedAt: 100, Active: true}, rec)
		s.True(s.reg.IsVerified(manufacturer1))
		s.Equal(1, s.reg.Len())
	})

	s.Run("non-authority is rejected without mutation", func() {
		before := s.snapshot()

		err := s.reg.Register(stranger, 101, manufacturer2, "MedSupply Inc", "MS12345")
		s.Require().ErrorIs(err, ErrNotAuthorized)
		s.Equal(CodeNotAuthorized, Code(err))
		s.Equal(before, s.snapshot())
		s.False(s.reg.IsVerified(manufacturer2))
	})

	s.Run("second registration keeps the original record", func() {
		err := s.reg.Register(owner, 200, manufacturer1, "Other Name", "OTHER")
		s.Require().ErrorIs(err, ErrAlreadyRegistered)
		s.Equal(CodeAlreadyRegistered, Code(err))

		rec, _ := s.reg.Record(manufacturer1)
		s.Equal("MedSupply Inc", rec.Name)
		s.Equal("MS12345", rec.LicenseNumber)
		s.Equal(Height(100), rec.VerifiedAt)
	})

	s.Run("inactive entity cannot be registered again", func() {
		s.Require().NoError(s.reg.Deactivate(owner, manufacturer1))

		err := s.reg.Register(owner, 300, manufacturer1, "MedSupply Inc", "MS12345")
		s.Require().ErrorIs(err, ErrAlreadyRegistered)
		s.False(s.reg.IsVerified(manufacturer1))
	})

	s.Run("authorization is checked before duplication", func() {
		err := s.reg.Register(stranger, 400, manufacturer1, "x", "y")
		s.Require().ErrorIs(err, ErrNotAuthorized)
	})
}

func (s *RegistrySuite) TestNameAndLicenseAreNotKeys() {
	s.Require().NoError(s.reg.Register(owner, 1, manufacturer1, "Acme", "LIC1"))
	s.Require().NoError(s.reg.Register(owner, 2, manufacturer2, "Acme", "LIC1"))

	s.Equal(2, s.reg.Len())
	s.True(s.reg.IsVerified(manufacturer2))
}

func (s *RegistrySuite) TestValuesStoredVerbatim() {
	s.Require().NoError(s.reg.Register(owner, 5, manufacturer1, "  acme  ", ""))

	rec, ok := s.reg.Record(manufacturer1)
	s.Require().True(ok)
	s.Equal("  acme  ", rec.Name)
	s.Empty(rec.LicenseNumber)
}

func (s *RegistrySuite) TestDeactivateReactivate() {
	s.Require().NoError(s.reg.Register(owner, 100, manufacturer1, "MedSupply Inc", "MS12345"))

	s.Run("round trip", func() {
		s.Require().NoError(s.reg.Deactivate(owner, manufacturer1))
		s.False(s.reg.IsVerified(manufacturer1))

		s.Require().NoError(s.reg.Reactivate(owner, manufacturer1))
		s.True(s.reg.IsVerified(manufacturer1))
	})

	s.Run("idempotent", func() {
		s.Require().NoError(s.reg.Deactivate(owner, manufacturer1))
		s.Require().NoError(s.reg.Deactivate(owner, manufacturer1))
		s.False(s.reg.IsVerified(manufacturer1))

		s.Require().NoError(s.reg.Reactivate(owner, manufacturer1))
		s.Require().NoError(s.reg.Reactivate(owner, manufacturer1))
		s.True(s.reg.IsVerified(manufacturer1))
	})

	s.Run("unknown entity is not found", func() {
		err := s.reg.Deactivate(owner, manufacturer2)
		s.Require().ErrorIs(err, ErrNotFound)
		s.Equal(CodeNotFound, Code(err))

		err = s.reg.Reactivate(owner, manufacturer2)
		s.Require().ErrorIs(err, ErrNotFound)
		s.Equal(1, s.reg.Len())
	})

	s.Run("non-authority is rejected without mutation", func() {
		before := s.snapshot()

		s.Require().ErrorIs(s.reg.Deactivate(stranger, manufacturer1), ErrNotAuthorized)
		s.Require().ErrorIs(s.reg.Reactivate(stranger, manufacturer1), ErrNotAuthorized)
		s.Require().ErrorIs(s.reg.Deactivate(stranger, manufacturer2), ErrNotAuthorized)
		s.Equal(before, s.snapshot())
	})
}

func (s *RegistrySuite) TestCanChecksDoNotMutate() {
	s.Require().NoError(s.reg.CanRegister(owner, manufacturer1))
	s.Equal(0, s.reg.Len())

	s.Require().NoError(s.reg.Register(owner, 7, manufacturer1, "Acme", "LIC1"))
	s.Require().NoError(s.reg.CanDeactivate(owner, manufacturer1))
	s.True(s.reg.IsVerified(manufacturer1))
	s.Require().NoError(s.reg.CanReactivate(owner, manufacturer1))

	s.ErrorIs(s.reg.CanRegister(owner, manufacturer1), ErrAlreadyRegistered)
	s.ErrorIs(s.reg.CanDeactivate(owner, manufacturer2), ErrNotFound)
	s.ErrorIs(s.reg.CanReactivate(stranger, manufacturer1), ErrNotAuthorized)
}

func TestUnregisteredIsNeverVerified(t *testing.T) {
	reg := New(owner)
	for i := 0; i < 50; i++ {
		assert.False(t, reg.IsVerified(EntityID(fmt.Sprintf("entity-%d", i))))
	}
	assert.False(t, reg.IsVerified(""))

	_, ok := reg.Record(manufacturer1)
	assert.False(t, ok)
}

// TestVerifiedAtSurvivesToggling covers the full lifecycle at a fixed height.
func TestVerifiedAtSurvivesToggling(t *testing.T) {
	const e EntityID = "E"
	reg := New(owner)

	require.NoError(t, reg.Register(owner, 100, e, "Acme", "LIC1"))
	assert.True(t, reg.IsVerified(e))
	assertVerifiedAt(t, reg, e, 100)

	require.NoError(t, reg.Deactivate(owner, e))
	assert.False(t, reg.IsVerified(e))
	assertVerifiedAt(t, reg, e, 100)

	require.NoError(t, reg.Reactivate(owner, e))
	assert.True(t, reg.IsVerified(e))
	assertVerifiedAt(t, reg, e, 100)
}

func assertVerifiedAt(t *testing.T, reg *Registry, e EntityID, want Height) {
	t.Helper()
	rec, ok := reg.Record(e)
	require.True(t, ok)
	assert.Equal(t, want, rec.VerifiedAt)
}

func TestRecordReturnsCopy(t *testing.T) {
	reg := New(owner)
	require.NoError(t, reg.Register(owner, 1, manufacturer1, "Acme", "LIC1"))

	rec, _ := reg.Record(manufacturer1)
	rec.Active = false
	rec.Name = "mutated"

	assert.True(t, reg.IsVerified(manufacturer1))
	stored, _ := reg.Record(manufacturer1)
	assert.Equal(t, "Acme", stored.Name)
}

func TestEntitiesSorted(t *testing.T) {
	reg := New(owner)
	for _, id := range []EntityID{"c", "a", "b"} {
		require.NoError(t, reg.Register(owner, 1, id, "n", "l"))
	}
	assert.Equal(t, []EntityID{"a", "b", "c"}, reg.Entities())
	assert.Equal(t, owner, reg.Authority())
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want uint32
	}{
		{"nil", nil, 0},
		{"not authorized", ErrNotAuthorized, 403},
		{"already registered", ErrAlreadyRegistered, 100},
		{"not found", ErrNotFound, 404},
		{"wrapped", fmt.Errorf("deactivate: %w", ErrNotFound), 404},
		{"foreign", fmt.Errorf("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}
