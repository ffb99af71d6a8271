package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerification(t *testing.T) {
	msg, err := Verification("priya.sharma@example.org", "482913", "10 minutes")
	require.NoError(t, err)

	assert.Equal(t, "priya.sharma@example.org", msg.To)
	assert.Equal(t, "ResQNet | verification Code", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hello Priya,")
	assert.Contains(t, msg.HTMLBody, "482913")
	assert.Contains(t, msg.TextBody, "482913")
}

func TestRejection(t *testing.T) {
	t.Run("default reason", func(t *testing.T) {
		msg, err := Rejection("ops@relief.org", "Relief Org", "  ")
		require.NoError(t, err)
		assert.Equal(t, "Agency Registration Update: Relief Org", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "Requirements not met.")
		assert.Contains(t, msg.HTMLBody, "re-submit")
	})

	t.Run("reason is escaped", func(t *testing.T) {
		msg, err := Rejection("ops@relief.org", "Relief Org", "<script>x</script>")
		require.NoError(t, err)
		assert.NotContains(t, msg.HTMLBody, "<script>")
		assert.Contains(t, msg.HTMLBody, "&lt;script&gt;")
	})
}

func TestAdminQuery(t *testing.T) {
	t.Run("named agency", func(t *testing.T) {
		msg, err := AdminQuery("ops@relief.org", "Relief Org", "line one\nline two")
		require.NoError(t, err)
		assert.Equal(t, "Query from Admin regarding Relief Org", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "Dear Relief Org,")
		assert.Contains(t, msg.HTMLBody, "line one<br/>line two")
		assert.Contains(t, msg.HTMLBody, "ResQNet Administration Team")
	})

	t.Run("unnamed agency", func(t *testing.T) {
		msg, err := AdminQuery("ops@relief.org", "", "hello")
		require.NoError(t, err)
		assert.Equal(t, "Query from Admin regarding Agency Registration", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "Dear Agency Representative,")
	})
}
