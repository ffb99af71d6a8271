package models

import (
	"strings"
	"time"

	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
)

// Status is the lifecycle state of an agency application.
type Status string

const (
	// StatusUnregistered is reported when the owner has no application; it is never stored.
	StatusUnregistered Status = "unregistered"
	StatusDraft        Status = "draft"
	StatusSubmitted    Status = "submitted"
	StatusUnderReview  Status = "under_review"
	StatusVerified     Status = "verified"
	StatusRejected     Status = "rejected"
)

func (s Status) String() string { return string(s) }

// IsStored reports whether s may appear on a persisted application.
func (s Status) IsStored() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// CanOwnerTransitionTo reports whether the owner may save an application currently in
// s with the target status. Owners only ever produce draft or submitted, and only
// while the application is not in an administrator's hands.
func (s Status) CanOwnerTransitionTo(target Status) bool {
	if target != StatusDraft && target != StatusSubmitted {
		return false
	}
	switch s {
	case StatusUnregistered, StatusDraft, StatusRejected:
		return true
	}
	return false
}

// Decision is an administrator's verdict on an application.
type Decision string

const (
	DecisionVerified Decision = "verified"
	DecisionRejected Decision = "rejected"
)

// ParseDecision accepts verified, its alias approved, and rejected.
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "verified", "approved":
		return DecisionVerified, nil
	case "rejected":
		return DecisionRejected, nil
	case "":
		return "", dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "status must be verified or rejected")
}

func (d Decision) Status() Status {
	if d == DecisionRejected {
		return StatusRejected
	}
	return StatusVerified
}

// AgencyType is the archetype an applicant declares. Unknown values are accepted and
// validated against the base requirements only.
type AgencyType string

const (
	AgencyTypeGovernment            AgencyType = "Government"
	AgencyTypeHealthcareResponder   AgencyType = "Healthcare Responder"
	AgencyTypeNGO                   AgencyType = "NGO"
	AgencyTypeVolunteerOrganization AgencyType = "Volunteer Organization"
	AgencyTypeInfrastructureTeam    AgencyType = "Infrastructure Team"
)

// Field names an application attribute by its column name.
type Field string

const (
	FieldAgencyName                 Field = "agency_name"
	FieldAgencyType                 Field = "agency_type"
	FieldAgencyAddress              Field = "agency_address"
	FieldCity                       Field = "city"
	FieldState                      Field = "state"
	FieldPinCode                    Field = "pin_code"
	FieldServicesOffered            Field = "services_offered"
	FieldTeamSize                   Field = "team_size"
	FieldPAN                        Field = "pan"
	FieldGST                        Field = "gst"
	FieldNGODarpanID                Field = "ngo_darpan_id"
	FieldCIN                        Field = "cin"
	FieldMedicalRegNumber           Field = "medical_reg_number"
	FieldOwnerAadhaarMasked         Field = "owner_aadhaar_masked"
	FieldOwnerPANMasked             Field = "owner_pan_masked"
	FieldOwnerPhone                 Field = "owner_phone"
	FieldRegistrationCertificateURL Field = "registration_certificate_url"
	FieldClinicLicenseURL           Field = "clinic_license_url"
	FieldBusinessRegURL             Field = "business_reg_url"
)

// DocumentSlot is one of the three document references an application carries.
type DocumentSlot string

const (
	SlotRegistrationCertificate DocumentSlot = "registration_certificate"
	SlotClinicLicense           DocumentSlot = "clinic_license"
	SlotBusinessRegistration    DocumentSlot = "business_reg"
)

// DocumentSlots lists the slots in upload order.
var DocumentSlots = []DocumentSlot{SlotRegistrationCertificate, SlotClinicLicense, SlotBusinessRegistration}

// Folder is the blob prefix documents of this slot are stored under.
func (d DocumentSlot) Folder() string {
	switch d {
	case SlotRegistrationCertificate:
		return "agency_docs/ngo"
	case SlotClinicLicense:
		return "agency_docs/healthcare"
	default:
		return "agency_docs/business"
	}
}

// URLField is the application field holding the slot's public URL.
func (d DocumentSlot) URLField() Field {
	switch d {
	case SlotRegistrationCertificate:
		return FieldRegistrationCertificateURL
	case SlotClinicLicense:
		return FieldClinicLicenseURL
	default:
		return FieldBusinessRegURL
	}
}

// Application is an agency's registration record. One per owner.
//
// Invariants:
//   - UserID is unique across applications
//   - non-empty identity numbers are unique across applications of different owners
//   - Status is one of the stored statuses
type Application struct {
	ID                         id.ApplicationID `json:"id"`
	UserID                     id.UserID        `json:"user_id"`
	AgencyEmail                string           `json:"agency_email"`
	AgencyName                 string           `json:"agency_name"`
	AgencyType                 AgencyType       `json:"agency_type"`
	AgencyAddress              string           `json:"agency_address"`
	City                       string           `json:"city"`
	State                      string           `json:"state"`
	PinCode                    string           `json:"pin_code"`
	TeamSize                   *int             `json:"team_size"`
	ServicesOffered            []string         `json:"services_offered"`
	PAN                        string           `json:"pan"`
	GST                        string           `json:"gst"`
	NGODarpanID                string           `json:"ngo_darpan_id"`
	CIN                        string           `json:"cin"`
	MedicalRegNumber           string           `json:"medical_reg_number"`
	OwnerAadhaarMasked         string           `json:"owner_aadhaar_masked"`
	OwnerPANMasked             string           `json:"owner_pan_masked"`
	OwnerPhone                 string           `json:"owner_phone"`
	PhoneVerified              bool             `json:"phone_verified"`
	RegistrationCertificateURL string           `json:"registration_certificate_url"`
	ClinicLicenseURL           string           `json:"clinic_license_url"`
	BusinessRegURL             string           `json:"business_reg_url"`
	Status                     Status           `json:"status"`
	RejectionReason            string           `json:"rejection_reason,omitempty"`
	CreatedAt                  time.Time        `json:"created_at"`
	UpdatedAt                  time.Time        `json:"updated_at"`
}

// Value returns the textual value of a scalar field. Non-scalar fields
// (services_offered, team_size) return "".
func (a *Application) Value(f Field) string {
	switch f {
	case FieldAgencyName:
		return a.AgencyName
	case FieldAgencyType:
		return string(a.AgencyType)
	case FieldAgencyAddress:
		return a.AgencyAddress
	case FieldCity:
		return a.City
	case FieldState:
		return a.State
	case FieldPinCode:
		return a.PinCode
	case FieldPAN:
		return a.PAN
	case FieldGST:
		return a.GST
	case FieldNGODarpanID:
		return a.NGODarpanID
	case FieldCIN:
		return a.CIN
	case FieldMedicalRegNumber:
		return a.MedicalRegNumber
	case FieldOwnerAadhaarMasked:
		return a.OwnerAadhaarMasked
	case FieldOwnerPANMasked:
		return a.OwnerPANMasked
	case FieldOwnerPhone:
		return a.OwnerPhone
	case FieldRegistrationCertificateURL:
		return a.RegistrationCertificateURL
	case FieldClinicLicenseURL:
		return a.ClinicLicenseURL
	case FieldBusinessRegURL:
		return a.BusinessRegURL
	}
	return ""
}

func (a *Application) DocumentURL(slot DocumentSlot) string {
	return a.Value(slot.URLField())
}

func (a *Application) SetDocumentURL(slot DocumentSlot, url string) {
	switch slot {
	case SlotRegistrationCertificate:
		a.RegistrationCertificateURL = url
	case SlotClinicLicense:
		a.ClinicLicenseURL = url
	case SlotBusinessRegistration:
		a.BusinessRegURL = url
	}
}

// Fields is the owner-editable part of an application as submitted in one save.
type Fields struct {
	AgencyName         string
	AgencyType         AgencyType
	AgencyAddress      string
	City               string
	State              string
	PinCode            string
	TeamSize           *int
	ServicesOffered    []string
	PAN                string
	GST                string
	NGODarpanID        string
	CIN                string
	MedicalRegNumber   string
	OwnerAadhaarMasked string
	OwnerPANMasked     string
	OwnerPhone         string
	PhoneVerified      bool
}

// ApplyFields overwrites every owner-editable field. Document URLs, status and
// ownership are left alone.
func (a *Application) ApplyFields(f Fields) {
	a.AgencyName = f.AgencyName
	a.AgencyType = f.AgencyType
	a.AgencyAddress = f.AgencyAddress
	a.City = f.City
	a.State = f.State
	a.PinCode = f.PinCode
	a.TeamSize = f.TeamSize
	a.ServicesOffered = f.ServicesOffered
	a.PAN = f.PAN
	a.GST = f.GST
	a.NGODarpanID = f.NGODarpanID
	a.CIN = f.CIN
	a.MedicalRegNumber = f.MedicalRegNumber
	a.OwnerAadhaarMasked = f.OwnerAadhaarMasked
	a.OwnerPANMasked = f.OwnerPANMasked
	a.OwnerPhone = f.OwnerPhone
	a.PhoneVerified = f.PhoneVerified
}

// Clone returns a deep copy so stores never share slices with callers.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.TeamSize != nil {
		n := *a.TeamSize
		c.TeamSize = &n
	}
	if a.ServicesOffered != nil {
		c.ServicesOffered = append([]string(nil), a.ServicesOffered...)
	}
	return &c
}

// Summary is the limited projection shown in administrator listings.
type Summary struct {
	ID            id.ApplicationID `json:"id"`
	AgencyName    string           `json:"agency_name"`
	Status        Status           `json:"status"`
	AgencyAddress string           `json:"agency_address"`
	AgencyType    AgencyType       `json:"agency_type"`
	City          string           `json:"city"`
	State         string           `json:"state"`
	TeamSize      *int             `json:"team_size"`
}

func (a *Application) Summary() Summary {
	return Summary{
		ID:            a.ID,
		AgencyName:    a.AgencyName,
		Status:        a.Status,
		AgencyAddress: a.AgencyAddress,
		AgencyType:    a.AgencyType,
		City:          a.City,
		State:         a.State,
		TeamSize:      a.TeamSize,
	}
}
