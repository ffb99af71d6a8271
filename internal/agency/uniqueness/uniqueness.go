// Package uniqueness enforces that identity numbers belong to a single agency.
package uniqueness

//go:generate mockgen -source=uniqueness.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"

	"resqnet/internal/agency/models"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
)

// Store answers whether another owner's application already holds a value.
// Implementations only accept fields from IdentityFields.
type Store interface {
	ExistsForOtherOwner(ctx context.Context, field models.Field, value string, owner id.UserID) (bool, error)
}

// IdentityFields lists the unique identity numbers in check order.
var IdentityFields = []models.Field{
	models.FieldPAN,
	models.FieldOwnerAadhaarMasked,
	models.FieldNGODarpanID,
	models.FieldGST,
	models.FieldCIN,
	models.FieldMedicalRegNumber,
	models.FieldOwnerPhone,
}

var labels = map[models.Field]string{
	models.FieldPAN:                "PAN",
	models.FieldOwnerAadhaarMasked: "Aadhaar",
	models.FieldNGODarpanID:        "NGO Darpan ID",
	models.FieldGST:                "GST",
	models.FieldCIN:                "CIN",
	models.FieldMedicalRegNumber:   "Medical Registration Number",
	models.FieldOwnerPhone:         "Phone number",
}

// Label returns the human-readable name of an identity field.
func Label(f models.Field) (string, bool) {
	l, ok := labels[f]
	return l, ok
}

// IsIdentityField reports whether f is subject to uniqueness.
func IsIdentityField(f models.Field) bool {
	_, ok := labels[f]
	return ok
}

// ConflictError builds the conflict returned when a value is taken.
func ConflictError(f models.Field) error {
	label, _ := Label(f)
	return dErrors.New(dErrors.CodeConflict, label+" already exists").WithIssues([]string{string(f)})
}

// Claim is a value an applicant wants to hold exclusively.
type Claim struct {
	Field models.Field
	Value string
}

// ClaimsOf extracts the identity claims of an application in check order.
func ClaimsOf(app *models.Application) []Claim {
	claims := make([]Claim, 0, len(IdentityFields))
	for _, f := range IdentityFields {
		claims = append(claims, Claim{Field: f, Value: app.Value(f)})
	}
	return claims
}

type Checker struct {
	store Store
}

func New(store Store) *Checker {
	return &Checker{store: store}
}

// CheckConflict fails with a conflict when value is held by an application of
// another owner. Store failures become internal errors naming the field.
func (c *Checker) CheckConflict(ctx context.Context, field models.Field, value string, owner id.UserID) error {
	label, ok := Label(field)
	if !ok {
		return dErrors.New(dErrors.CodeInternal, "uniqueness check on non-identity field "+string(field))
	}
	exists, err := c.store.ExistsForOtherOwner(ctx, field, value, owner)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "DB error while checking "+label)
	}
	if exists {
		return ConflictError(field)
	}
	return nil
}

// CheckAll runs CheckConflict over claims in order, skipping empty values and
// stopping at the first failure.
func (c *Checker) CheckAll(ctx context.Context, owner id.UserID, claims []Claim) error {
	for _, claim := range claims {
		if claim.Value == "" {
			continue
		}
		if err := c.CheckConflict(ctx, claim.Field, claim.Value, owner); err != nil {
			return err
		}
	}
	return nil
}
