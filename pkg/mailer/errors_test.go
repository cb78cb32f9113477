package mailer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ msg string }

func (e *fakeNetError) Error() string   { return e.msg }
func (e *fakeNetError) Timeout() bool   { return true }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "auth rejected 535",
			err:  &smtp.SMTPError{Code: 535, Message: "authentication failed"},
			want: ErrCredentialInvalid,
		},
		{
			name: "auth required 530",
			err:  &smtp.SMTPError{Code: 530, Message: "authentication required"},
			want: ErrCredentialInvalid,
		},
		{
			name: "mechanism too weak 534",
			err:  &smtp.SMTPError{Code: 534, Message: "mechanism too weak"},
			want: ErrCredentialInvalid,
		},
		{
			name: "temporary smtp failure",
			err:  &smtp.SMTPError{Code: 451, Message: "try again later"},
			want: ErrTransient,
		},
		{
			name: "permanent smtp rejection",
			err:  &smtp.SMTPError{Code: 550, Message: "mailbox unavailable"},
			want: ErrSendFailed,
		},
		{
			name: "wrapped smtp error",
			err:  fmt.Errorf("data: %w", &smtp.SMTPError{Code: 535, Message: "bad password"}),
			want: ErrCredentialInvalid,
		},
		{
			name: "network error",
			err:  &fakeNetError{msg: "dial tcp: i/o timeout"},
			want: ErrTransient,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: ErrTransient,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: ErrSendFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			// the original cause stays reachable for logging
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify(nil))
}
