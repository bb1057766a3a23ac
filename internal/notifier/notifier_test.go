package notifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/report"
)

type fakeSender struct {
	to, subject string
	err         error
}

func (f *fakeSender) Send(to, subject, _, _ string) error {
	f.to, f.subject = to, subject
	return f.err
}

func TestSendReport(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil)
	require.NoError(t, n.SendReport(&report.Email{Subject: "s"}, "me@example.com"))
	assert.Equal(t, "me@example.com", s.to)
	assert.Equal(t, "s", s.subject)

	s.err = errors.New("refused")
	assert.ErrorContains(t, n.SendReport(&report.Email{}, "x"), "refused")
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.EmailConfig{Provider: "smtp", SMTPHost: "h", SMTPPort: 25}, nil)
	assert.NoError(t, err)

	_, err = NewFromConfig(config.EmailConfig{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
