package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "u", "p", "bot@example.com")
	m := s.message("me@example.com", "threadkeeper: 2 new", "<p>hi</p>", "hi")

	raw, err := m.Bytes()
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "me@example.com")
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "<p>hi</p>")
	assert.Equal(t, "threadkeeper <bot@example.com>", m.From)
}
