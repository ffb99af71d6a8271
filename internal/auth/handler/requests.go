package handler

import (
	"strings"

	dErrors "resqnet/pkg/domain-errors"
)

const (
	maxEmailLength    = 254
	maxPasswordLength = 72
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r *SignupRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	if len(r.Email) > maxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	return nil
}

// CreateProfileRequest asks for an activation code.
type CreateProfileRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *CreateProfileRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)
	if len(r.Email) > maxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	return nil
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r *VerifyOTPRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	if len(r.Email) > maxEmailLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if len(r.Email) > maxEmailLength || len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
	}
	return nil
}
