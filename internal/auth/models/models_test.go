package models

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
)

func TestGenerateOTP(t *testing.T) {
	for range 200 {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 6)
		n, err := strconv.Atoi(otp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestProfileLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewProfile(id.NewUserID(), "a@b.org", RoleAgency, "123456", now.Add(10*time.Minute), now)

	assert.False(t, p.OTPExpired(now.Add(10*time.Minute)), "expiry instant is still valid")
	assert.True(t, p.OTPExpired(now.Add(10*time.Minute+time.Second)))

	p.IssueOTP("654321", now.Add(20*time.Minute), RoleVolunteer, now.Add(time.Minute))
	assert.Equal(t, "654321", p.OTP)
	assert.Equal(t, RoleVolunteer, p.Role)

	require.NoError(t, p.MarkVerified(now.Add(2*time.Minute)))
	assert.True(t, p.Verified)
	assert.Empty(t, p.OTP)
	assert.Nil(t, p.OTPExpiresAt)
	assert.True(t, p.OTPExpired(now), "verified profile has no usable otp")

	err := p.MarkVerified(now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Agency ")
	require.NoError(t, err)
	assert.Equal(t, RoleAgency, r)

	_, err = ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = ParseRole("superuser")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
