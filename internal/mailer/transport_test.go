package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/config"
)

func TestNewSMTPTransport(t *testing.T) {
	transport, err := NewSMTPTransport(config.MailConfig{Server: "smtp.163.com", Port: 465, User: "bot@163.com", AuthCode: "code"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, transport.timeout)

	_, err = NewSMTPTransport(config.MailConfig{Port: 465})
	require.Error(t, err)

	_, err = NewSMTPTransport(config.MailConfig{Server: "smtp.163.com"})
	require.Error(t, err)
}

func TestBuildMsg(t *testing.T) {
	m, err := buildMsg(Message{
		FromName: "Birthday Wishes",
		FromAddr: "bot@163.com",
		ToName:   "Alice",
		ToAddr:   "alice@example.com",
		Subject:  Subject("Alice"),
		Text:     "hello",
		HTML:     "<p>hello</p>",
	})
	require.NoError(t, err)

	recipients, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, recipients)

	_, err = buildMsg(Message{FromAddr: "bot@163.com", ToAddr: "not an address"})
	require.Error(t, err)
}
