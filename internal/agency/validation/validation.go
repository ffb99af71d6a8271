// Package validation checks agency applications against the requirements of their
// declared archetype. All functions are pure.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"resqnet/internal/agency/models"
)

var (
	pinCodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstPattern     = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// IsValidPinCode reports whether v is a six digit postal code.
func IsValidPinCode(v string) bool { return pinCodePattern.MatchString(v) }

// IsValidPAN reports whether v is a ten character permanent account number.
func IsValidPAN(v string) bool { return panPattern.MatchString(v) }

// IsValidGST reports whether v is a fifteen character GST identification number.
func IsValidGST(v string) bool { return gstPattern.MatchString(v) }

// Check is a format check applied on submission.
type Check string

const (
	CheckPAN Check = "PAN"
	CheckGST Check = "GST"
	// CheckGSTOptional validates GST only when one was supplied.
	CheckGSTOptional Check = "GST_OPTIONAL"
)

// Requirements lists the fields an archetype must fill and the format checks it must pass.
type Requirements struct {
	Required []models.Field
	Checks   []Check
}

func (r Requirements) has(c Check) bool {
	for _, x := range r.Checks {
		if x == c {
			return true
		}
	}
	return false
}

var baseFields = []models.Field{
	models.FieldAgencyName,
	models.FieldAgencyAddress,
	models.FieldCity,
	models.FieldState,
	models.FieldPinCode,
	models.FieldServicesOffered,
	models.FieldTeamSize,
}

// RequirementsFor maps an archetype to its requirements. Unknown archetypes get
// the base fields and no checks.
func RequirementsFor(t models.AgencyType) Requirements {
	switch t {
	case models.AgencyTypeNGO:
		return Requirements{
			Required: withBase(models.FieldPAN, models.FieldNGODarpanID, models.FieldRegistrationCertificateURL),
			Checks:   []Check{CheckPAN},
		}
	case models.AgencyTypeHealthcareResponder:
		return Requirements{
			Required: withBase(models.FieldClinicLicenseURL),
			Checks:   []Check{CheckGSTOptional},
		}
	case models.AgencyTypeInfrastructureTeam:
		return Requirements{
			Required: withBase(models.FieldGST, models.FieldBusinessRegURL),
			Checks:   []Check{CheckGST},
		}
	}
	return Requirements{Required: withBase()}
}

// RequiredFieldsFor is RequirementsFor(t).Required.
func RequiredFieldsFor(t models.AgencyType) []models.Field {
	return RequirementsFor(t).Required
}

func withBase(extra ...models.Field) []models.Field {
	out := make([]models.Field, 0, len(baseFields)+len(extra))
	out = append(out, baseFields...)
	return append(out, extra...)
}

// Submission is an application about to be submitted, together with the document
// slots that receive a new upload in the same save.
type Submission struct {
	Application *models.Application
	Pending     []models.DocumentSlot
}

func (s Submission) present(f models.Field) bool {
	app := s.Application
	switch f {
	case models.FieldTeamSize:
		return app.TeamSize != nil
	case models.FieldServicesOffered:
		for _, svc := range app.ServicesOffered {
			if strings.TrimSpace(svc) != "" {
				return true
			}
		}
		return false
	}
	for _, slot := range s.Pending {
		if slot.URLField() == f {
			return true
		}
	}
	return app.Value(f) != ""
}

// ValidateSubmission returns the ordered list of problems that block submission.
// An empty result means the application may be submitted.
func ValidateSubmission(s Submission) []string {
	app := s.Application
	var issues []string

	if app.AgencyType == "" {
		issues = append(issues, "agency type is required")
	}

	req := RequirementsFor(app.AgencyType)
	var missing []string
	for _, f := range req.Required {
		if !s.present(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
	}

	if !IsValidPinCode(app.PinCode) {
		issues = append(issues, "pin code must be a valid 6 digit value")
	}
	if req.has(CheckPAN) && !IsValidPAN(app.PAN) {
		issues = append(issues, "PAN format is invalid")
	}
	if req.has(CheckGST) && !IsValidGST(app.GST) {
		issues = append(issues, "GST format is invalid")
	}
	if req.has(CheckGSTOptional) && app.GST != "" && !IsValidGST(app.GST) {
		issues = append(issues, "GST format is invalid")
	}
	return issues
}
