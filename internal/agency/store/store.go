// Package store persists agency applications.
package store

import (
	"fmt"

	"resqnet/internal/agency/models"
	"resqnet/pkg/platform/sentinel"
)

// IdentityConflictError reports that a write would give an identity number to two
// agencies. It unwraps to sentinel.ErrConflict.
type IdentityConflictError struct {
	Field models.Field
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict on %s", e.Field)
}

func (e *IdentityConflictError) Unwrap() error { return sentinel.ErrConflict }

// identityColumns is the closed set of columns uniqueness lookups may target.
var identityColumns = map[models.Field]string{
	models.FieldPAN:                "pan",
	models.FieldOwnerAadhaarMasked: "owner_aadhaar_masked",
	models.FieldNGODarpanID:        "ngo_darpan_id",
	models.FieldGST:                "gst",
	models.FieldCIN:                "cin",
	models.FieldMedicalRegNumber:   "medical_reg_number",
	models.FieldOwnerPhone:         "owner_phone",
}

var identityOrder = []models.Field{
	models.FieldPAN,
	models.FieldOwnerAadhaarMasked,
	models.FieldNGODarpanID,
	models.FieldGST,
	models.FieldCIN,
	models.FieldMedicalRegNumber,
	models.FieldOwnerPhone,
}

func errUnknownField(f models.Field) error {
	return fmt.Errorf("%w: %s is not an identity field", sentinel.ErrInvalidState, f)
}

// claimsIdentity reports whether an owner write takes ownership of the record's
// identity numbers. Only owner saves call it.
func claimsIdentity(app *models.Application) bool {
	return app.Status != models.StatusDraft
}
