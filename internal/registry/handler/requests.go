package handler

import (
	"trustreg/contracts/registry"
	"trustreg/internal/registry/models"
	id "trustreg/pkg/domain"
	dErrors "trustreg/pkg/domain-errors"
)

const maxFieldLength = 1024

// RegisterRequest is the body of POST /registry/manufacturers. Name and
// license number are stored verbatim; only the entity id is checked.
type RegisterRequest struct {
	EntityID      string `json:"entity_id"`
	Name          string `json:"name"`
	LicenseNumber string `json:"license_number"`

	parsedEntityID registry.EntityID
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Name) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if len(r.LicenseNumber) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "license_number is too long")
	}
	entity, err := id.ParseEntityID(r.EntityID)
	if err != nil {
		return err
	}
	r.parsedEntityID = entity
	return nil
}

// Command returns the validated registration.
func (r *RegisterRequest) Command() models.RegisterCommand {
	return models.RegisterCommand{
		EntityID:      r.parsedEntityID,
		Name:          r.Name,
		LicenseNumber: r.LicenseNumber,
	}
}
