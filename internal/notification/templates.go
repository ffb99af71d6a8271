// Package notification builds the transactional emails sent during onboarding.
package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"resqnet/internal/platform/mail"
	"resqnet/pkg/email"
)

const (
	verificationSubject   = "ResQNet | verification Code"
	defaultRejectReason   = "Requirements not met."
	defaultQueryAgency    = "Agency Registration"
	defaultQueryRecipient = "Agency Representative"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(verificationHTML))
	rejectionTmpl    = template.Must(template.New("rejection").Parse(rejectionHTML))
	queryTmpl        = template.Must(template.New("query").Parse(queryHTML))
)

// Verification builds the OTP email for a profile activation.
func Verification(to, otp, expiresIn string) (mail.Message, error) {
	first := email.GreetingName(to)
	data := struct {
		Name      string
		Code      string
		ExpiresIn string
	}{first, otp, expiresIn}

	body, err := render(verificationTmpl, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:       to,
		Subject:  verificationSubject,
		HTMLBody: body,
		TextBody: fmt.Sprintf("Your ResQNet verification code is: %s\n\nThis code expires in %s.\nIf you did not request this code, please ignore this email.\n", otp, expiresIn),
	}, nil
}

// Rejection builds the email sent to an agency whose application was rejected.
// An empty reason falls back to a generic one.
func Rejection(to, agencyName, reason string) (mail.Message, error) {
	if strings.TrimSpace(reason) == "" {
		reason = defaultRejectReason
	}
	data := struct {
		AgencyName string
		Reason     string
	}{agencyName, reason}

	body, err := render(rejectionTmpl, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:       to,
		Subject:  "Agency Registration Update: " + agencyName,
		HTMLBody: body,
	}, nil
}

// AdminQuery builds a free-text query from an administrator to an agency.
func AdminQuery(to, agencyName, message string) (mail.Message, error) {
	subjectName := agencyName
	greeting := agencyName
	if strings.TrimSpace(agencyName) == "" {
		subjectName = defaultQueryAgency
		greeting = defaultQueryRecipient
	}
	data := struct {
		Greeting string
		Lines    []string
	}{greeting, strings.Split(message, "\n")}

	body, err := render(queryTmpl, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:       to,
		Subject:  "Query from Admin regarding " + subjectName,
		HTMLBody: body,
		TextBody: fmt.Sprintf("Dear %s,\n\n%s\n\nBest regards,\nResQNet Administration Team\n", greeting, message),
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

const verificationHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Verification Code</title>
</head>
<body style="margin: 0; padding: 0; font-family: Roboto, Verdana, sans-serif; background-color: #f5f5f5;">
  <span style="display: none;">Here's your verification code: {{.Code}}</span>
  <div style="max-width: 600px; margin: 40px auto; background-color: #ffffff; padding: 24px; border-radius: 8px;">
    <h2>Hello {{.Name}},</h2>
    <p>Thank you for registering. Please use the following verification code to complete your registration:</p>
    <p style="font-size: 22px; font-weight: bold; letter-spacing: 4px; margin: 16px 0;">{{.Code}}</p>
    <p>This code expires in {{.ExpiresIn}}. If you did not request this code, please ignore this email.</p>
    <div style="margin-top: 24px; font-size: 12px; color: #777777;">ResQNet</div>
  </div>
</body>
</html>`

const rejectionHTML = `<div style="font-family: Arial, sans-serif; color: #333;">
  <h2>Application Update</h2>
  <p>Hello <strong>{{.AgencyName}}</strong>,</p>
  <p>We regret to inform you that your agency registration for ResQNet has been <strong>rejected</strong>.</p>
  <div style="background: #fef2f2; border: 1px solid #fecaca; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <strong style="color: #991b1b;">Reason for Rejection:</strong>
    <p style="margin-top: 5px;">{{.Reason}}</p>
  </div>
  <p>You may log in to the dashboard to correct your details and re-submit your application.</p>
  <p>Best Regards,<br>ResQNet Admin Team</p>
</div>`

const queryHTML = `<div style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: #2563eb;">ResQNet Admin Query</h2>
  <p>Dear {{.Greeting}},</p>
  <p>You have received a query regarding your registration with ResQNet.</p>
  <div style="background-color: #f3f4f6; border-left: 4px solid #2563eb; padding: 15px; margin: 20px 0;">
    <strong>Message:</strong><br/>
    {{range $i, $line := .Lines}}{{if $i}}<br/>{{end}}{{$line}}{{end}}
  </div>
  <p>Please reply to this email directly to address the query.</p>
  <br/>
  <p style="font-size: 12px; color: #666;">Best regards,<br/>ResQNet Administration Team</p>
</div>`
