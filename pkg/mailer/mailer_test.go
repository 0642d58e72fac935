package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRejectsEmptyRecipient(t *testing.T) {
	m := New(Config{Host: "localhost", Port: 2525, From: "sacco@example.com"})
	err := m.Send("  ", "Loan disbursed", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty recipient")
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("sacco@example.com", "amina@example.com", "Payment confirmed", "KES 1,000.00 received")
	assert.Equal(t, []string{"sacco@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"amina@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Payment confirmed"}, msg.GetHeader("Subject"))
}
