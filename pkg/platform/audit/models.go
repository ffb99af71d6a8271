package audit

import (
	"context"
	"time"

	id "resqnet/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers decisions with regulatory weight (application verdicts).
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication outcomes and abuse signals.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	Email     string
	RequestID string
	// ActorID is set when an administrator acts on another account's record.
	ActorID string
	// Client is a short browser/os label derived from the User-Agent.
	Client string
}

type AuditEvent string

const (
	// Activation events
	EventAccountCreated    AuditEvent = "account_created"
	EventProfileCreated    AuditEvent = "profile_created"
	EventOTPIssued         AuditEvent = "otp_issued"
	EventOTPResent         AuditEvent = "otp_resent"
	EventProfileVerified   AuditEvent = "profile_verified"
	EventOTPRejected       AuditEvent = "otp_rejected"
	EventLoginSucceeded    AuditEvent = "login_succeeded"
	EventLoginFailed       AuditEvent = "login_failed"
	EventRoleMismatch      AuditEvent = "role_mismatch"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"

	// Registration events
	EventApplicationDraftSaved AuditEvent = "application_draft_saved"
	EventApplicationSubmitted  AuditEvent = "application_submitted"
	EventIdentityConflict      AuditEvent = "identity_conflict"

	// Admin events
	EventApplicationDecided AuditEvent = "application_decided"
	EventAdminQuerySent     AuditEvent = "admin_query_sent"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventApplicationDecided:   CategoryCompliance,
	EventApplicationSubmitted: CategoryCompliance,
	EventProfileVerified:      CategoryCompliance,

	EventOTPRejected:       CategorySecurity,
	EventLoginFailed:       CategorySecurity,
	EventRoleMismatch:      CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,
	EventIdentityConflict:  CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
