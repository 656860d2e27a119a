package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trustreg/contracts/registry"
	"trustreg/internal/registry/journal"
)

func TestEventFromEntry(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		kind journal.Kind
		want string
	}{
		{journal.KindRegistered, EventTypeRegistered},
		{journal.KindDeactivated, EventTypeDeactivated},
		{journal.KindReactivated, EventTypeReactivated},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := journal.Entry{Height: 9, Kind: tt.kind, EntityID: "M1", Caller: "owner", Name: "Acme", RecordedAt: at}
			e.Seal(journal.Digest{})

			evt := EventFromEntry(e)
			assert.Equal(t, tt.want, evt.Type)
			assert.Equal(t, e.ID, evt.ID)
			assert.Equal(t, registry.Height(9), evt.Height)
			assert.Equal(t, e.Hash, evt.Hash)
			assert.Equal(t, at, evt.OccurredAt)
		})
	}
}

func TestNewManufacturer(t *testing.T) {
	m := NewManufacturer("M1", registry.Record{Name: "Acme", LicenseNumber: "L", VerifiedAt: 3, Active: false})
	assert.Equal(t, &Manufacturer{EntityID: "M1", Name: "Acme", LicenseNumber: "L", VerifiedAt: 3}, m)
}
