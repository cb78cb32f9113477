package mailer

import (
	"context"
	"errors"
	"net"

	"github.com/emersion/go-smtp"
)

// Send failures are classified into three buckets. The caller decides
// policy: CredentialInvalid feeds the reconnect flow, Transient may be
// retried by the caller, SendFailed is terminal for the message. No
// retry happens inside this package.
var (
	ErrCredentialInvalid = errors.New("mail transport rejected credential")
	ErrTransient         = errors.New("transient mail transport failure")
	ErrSendFailed        = errors.New("mail transport rejected message")
)

// authReplyCodes are the SMTP reply codes that mean the server refused
// our credentials rather than the message.
var authReplyCodes = map[int]bool{
	530: true, // authentication required
	534: true, // mechanism too weak
	535: true, // authentication credentials invalid
}

// Classify maps a raw transport error onto the taxonomy sentinels. The
// returned error wraps both the sentinel and the original cause.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if authReplyCodes[smtpErr.Code] {
			return wrap(ErrCredentialInvalid, err)
		}
		// 4xx 临时错误，可由调用方重试
		if smtpErr.Temporary() {
			return wrap(ErrTransient, err)
		}
		return wrap(ErrSendFailed, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(ErrTransient, err)
	}

	return wrap(ErrSendFailed, err)
}

type classified struct {
	kind  error
	cause error
}

func (e *classified) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *classified) Unwrap() []error { return []error{e.kind, e.cause} }

func wrap(kind, cause error) error {
	return &classified{kind: kind, cause: cause}
}
