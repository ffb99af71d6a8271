package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resqnet/internal/auth/models"
	"resqnet/internal/notification"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/sentinel"
	"resqnet/pkg/requestcontext"
)

// RequestCodeResult reports which branch of activation ran.
type RequestCodeResult struct {
	Status  string
	Message string
}

// VerifyResult tells the client what to do next.
type VerifyResult struct {
	Action  string
	Message string
}

// RequestCode creates the profile or re-sends its OTP. The profile write and the
// email share one transaction so a failed send leaves no undelivered code behind.
func (s *Service) RequestCode(ctx context.Context, email, rawRole string) (result *RequestCodeResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.RequestCode")
	defer func() {
		outcome := ""
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			outcome = result.Status
			span.SetAttributes(attribute.String("auth.otp_status", outcome))
		}
		s.metrics.IncrementCodeRequest(outcome)
		span.End()
	}()

	email = models.NormalizeEmail(email)
	if email == "" || rawRole == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Email and role required")
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.FindByEmail(ctx, email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check staff roster")
	}
	for _, entry := range roster {
		if entry.Role != role {
			s.emit(ctx, audit.Event{
				Subject:  "account:" + email,
				Action:   string(audit.EventRoleMismatch),
				Decision: string(role),
				Reason:   "listed as " + string(entry.Role),
				Email:    email,
			})
			return nil, dErrors.New(dErrors.CodeBadRequest, "Role mismatch: Already added as "+string(entry.Role)).
				WithStatus(models.StatusRoleMismatch)
		}
	}

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Auth user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	now := requestcontext.Now(ctx)
	var event audit.AuditEvent
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		profile, err := s.profiles.FindByID(ctx, acct.ID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			otp, err := s.generateOTP()
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
			}
			profile = models.NewProfile(acct.ID, acct.Email, role, otp, now.Add(s.otpTTL), now)
			if err := s.profiles.Create(ctx, profile); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "Failed to create profile")
			}
			if len(roster) > 0 {
				if err := s.roster.LinkUser(ctx, email, acct.ID); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link staff roster")
				}
			}
			result = &RequestCodeResult{Status: models.StatusNewProfile, Message: "OTP sent to email"}
			event = audit.EventProfileCreated

		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")

		case profile.Verified:
			return dErrors.New(dErrors.CodeConflict, "User already verified. Please login.").
				WithStatus(models.StatusAlreadyVerified).
				WithAction(models.ActionLogin)

		case profile.OTPExpired(now):
			otp, err := s.generateOTP()
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
			}
			profile.IssueOTP(otp, now.Add(s.otpTTL), role, now)
			if err := s.profiles.Update(ctx, profile); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
			}
			result = &RequestCodeResult{Status: models.StatusOTPSent, Message: "OTP regenerated and sent"}
			event = audit.EventOTPIssued

		default:
			result = &RequestCodeResult{Status: models.StatusOTPResent, Message: "OTP resent"}
			event = audit.EventOTPResent
		}
		return s.sendCode(ctx, acct.Email, profile.OTP)
	})
	if err != nil {
		result = nil
		return nil, err
	}

	s.logger.InfoContext(ctx, "verification code sent",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", acct.ID.String(),
		"status", result.Status,
	)
	s.emit(ctx, audit.Event{
		UserID:   acct.ID,
		Subject:  "profile:" + acct.ID.String(),
		Action:   string(event),
		Decision: result.Status,
		Email:    email,
	})
	return result, nil
}

func (s *Service) sendCode(ctx context.Context, to, otp string) error {
	msg, err := notification.Verification(to, otp, humanizeTTL(s.otpTTL))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render verification email")
	}
	start := time.Now()
	err = s.mailer.Send(ctx, msg)
	s.metrics.ObserveEmail(start)
	if err != nil {
		s.logger.ErrorContext(ctx, "verification email failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeEmailDeliveryFailed, "failed to send verification email")
	}
	return nil
}

func humanizeTTL(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(ttl/time.Minute))
	}
	return ttl.String()
}

// VerifyCode checks, in order: profile exists, not yet verified, code matches,
// code not expired. Success clears the code and marks the profile verified.
func (s *Service) VerifyCode(ctx context.Context, email, otp string) (result *VerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.VerifyCode")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.IncrementVerification(outcome)
		span.End()
	}()

	email = models.NormalizeEmail(email)
	if email == "" || otp == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Email and OTP are required")
	}

	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Profile not found").
				WithAction(models.ActionRegisterAgain)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	if profile.Verified {
		return nil, dErrors.New(dErrors.CodeConflict, "Account already verified").
			WithAction(models.ActionLogin).
			WithStatus(models.StatusAlreadyVerified)
	}

	now := requestcontext.Now(ctx)
	if subtle.ConstantTimeCompare([]byte(profile.OTP), []byte(otp)) != 1 {
		s.emit(ctx, audit.Event{
			UserID:  profile.ID,
			Subject: "profile:" + profile.ID.String(),
			Action:  string(audit.EventOTPRejected),
			Reason:  "mismatch",
			Email:   email,
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid OTP").WithAction(models.ActionRetry)
	}
	if profile.OTPExpired(now) {
		s.emit(ctx, audit.Event{
			UserID:  profile.ID,
			Subject: "profile:" + profile.ID.String(),
			Action:  string(audit.EventOTPRejected),
			Reason:  "expired",
			Email:   email,
		})
		return nil, dErrors.New(dErrors.CodeGone, "OTP expired").WithAction(models.ActionRegisterAgain)
	}

	if err := profile.MarkVerified(now); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to verify account")
	}

	s.logger.InfoContext(ctx, "profile verified",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", profile.ID.String(),
	)
	s.emit(ctx, audit.Event{
		UserID:   profile.ID,
		Subject:  "profile:" + profile.ID.String(),
		Action:   string(audit.EventProfileVerified),
		Decision: "verified",
		Email:    email,
	})
	return &VerifyResult{Action: models.ActionLogin, Message: "OTP verified successfully"}, nil
}
