package handler

import (
	"strings"

	"resqnet/internal/admin/service"
)

// UpdateStatusRequest is the body of POST /admin/update-agency-status.
type UpdateStatusRequest struct {
	AgencyID        string `json:"agencyId"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

// Validate trims the fields. Presence is checked by the service so the
// message matches the one clients already handle.
func (r *UpdateStatusRequest) Validate() error {
	r.AgencyID = strings.TrimSpace(r.AgencyID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
	return nil
}

func (r *UpdateStatusRequest) command() service.DecideCommand {
	return service.DecideCommand{
		ApplicationID: r.AgencyID,
		Status:        r.Status,
		Reason:        r.RejectionReason,
	}
}

// SendQueryRequest is the body of POST /admin/send-query.
type SendQueryRequest struct {
	AgencyEmail string `json:"agencyEmail"`
	AgencyName  string `json:"agencyName"`
	Message     string `json:"message"`
}

func (r *SendQueryRequest) Validate() error {
	r.AgencyEmail = strings.TrimSpace(r.AgencyEmail)
	r.AgencyName = strings.TrimSpace(r.AgencyName)
	return nil
}

func (r *SendQueryRequest) command() service.QueryCommand {
	return service.QueryCommand{
		AgencyEmail: r.AgencyEmail,
		AgencyName:  r.AgencyName,
		Message:     r.Message,
	}
}
