package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
)

// Role is the portal role an account signs up with.
type Role string

const (
	RoleCitizen     Role = "citizen"
	RoleVolunteer   Role = "volunteer"
	RoleCoordinator Role = "coordinator"
	RoleAgency      Role = "agency"
	RoleAdmin       Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleVolunteer, RoleCoordinator, RoleAgency, RoleAdmin:
		return true
	}
	return false
}

// ParseRole lowercases raw and checks it against the known roles.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "role is required")
	}
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown role %q", raw))
	}
	return r, nil
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Account is the credential record. Its id is shared by the profile.
type Account struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Profile tracks activation of an account. A verified profile never holds an OTP.
type Profile struct {
	ID           id.UserID  `json:"id"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"verified"`
	OTP          string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewProfile builds an unverified profile holding a fresh OTP.
func NewProfile(userID id.UserID, email string, role Role, otp string, expiresAt, now time.Time) *Profile {
	return &Profile{
		ID:           userID,
		Email:        email,
		Role:         role,
		OTP:          otp,
		OTPExpiresAt: &expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// OTPExpired reports whether the stored OTP can no longer be used. A missing
// expiry counts as expired.
func (p *Profile) OTPExpired(now time.Time) bool {
	return p.OTPExpiresAt == nil || now.After(*p.OTPExpiresAt)
}

// IssueOTP replaces the OTP and its expiry together. The role follows the latest request.
func (p *Profile) IssueOTP(otp string, expiresAt time.Time, role Role, now time.Time) {
	p.OTP = otp
	p.OTPExpiresAt = &expiresAt
	p.Role = role
	p.UpdatedAt = now
}

// MarkVerified activates the profile and clears the OTP.
func (p *Profile) MarkVerified(now time.Time) error {
	if p.Verified {
		return dErrors.New(dErrors.CodeInvariantViolation, "profile is already verified")
	}
	p.Verified = true
	p.OTP = ""
	p.OTPExpiresAt = nil
	p.UpdatedAt = now
	return nil
}

// RosterEntry is a staff member an agency listed before they signed up. It pins
// the role that email may register with.
type RosterEntry struct {
	Email     string
	Role      Role
	AgencyID  *id.ApplicationID
	UserID    *id.UserID
	CreatedAt time.Time
}

const (
	otpMin   = 100000
	otpRange = 900000
)

// GenerateOTP returns a uniformly random six digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

// Outcome tokens reported by a code request.
const (
	StatusNewProfile      = "NEW_PROFILE"
	StatusOTPSent         = "OTP_SENT"
	StatusOTPResent       = "OTP_RESENT"
	StatusAlreadyVerified = "ALREADY_VERIFIED"
	StatusRoleMismatch    = "ROLE_MISMATCH"
)

// Client action hints returned by verification.
const (
	ActionLogin         = "LOGIN"
	ActionRetry         = "RETRY"
	ActionRegisterAgain = "REGISTER_AGAIN"
)
