// Package mailer is the outbound SMTP transport. It is a collaborator
// with at-least-once, best-effort semantics: once the server accepts
// the DATA payload the message cannot be unsent.
package mailer

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Account carries the per-user credentials used for one send.
type Account struct {
	Address string
	Secret  string
}

// Message is one outbound email, already stamped with its tracking code.
type Message struct {
	To        []string
	Cc        []string
	Subject   string
	Body      string
	MessageID string
	InReplyTo string
	Date      time.Time
}

// SMTPTransport sends through a single configured SMTP host using
// STARTTLS and AUTH PLAIN with the account's credentials.
type SMTPTransport struct {
	Host      string // host:port
	TLSVerify bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewSMTPTransport(host string, tlsVerify bool, timeout time.Duration, logger *zap.Logger) *SMTPTransport {
	return &SMTPTransport{
		Host:      host,
		TLSVerify: tlsVerify,
		Timeout:   timeout,
		Logger:    logger,
	}
}

// Send transmits the message. Every failure is classified (see
// errors.go) so the caller can route credential problems to the
// reconnect flow and retry transient ones.
func (t *SMTPTransport) Send(account Account, msg *Message) error {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !t.TLSVerify,
	}

	c, err := smtp.DialStartTLS(t.Host, tlsConfig)
	if err != nil {
		return Classify(fmt.Errorf("failed to connect to SMTP host: %w", err))
	}
	defer c.Close()

	if t.Timeout > 0 {
		c.CommandTimeout = t.Timeout
		c.SubmissionTimeout = t.Timeout
	}

	auth := sasl.NewPlainClient("", account.Address, account.Secret)
	if err := c.Auth(auth); err != nil {
		return Classify(fmt.Errorf("SMTP auth failed: %w", err))
	}

	if err := c.Mail(account.Address, nil); err != nil {
		return Classify(fmt.Errorf("failed to set sender: %w", err))
	}
	for _, rcpt := range append(append([]string{}, msg.To...), msg.Cc...) {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return Classify(fmt.Errorf("failed to set recipient %s: %w", rcpt, err))
		}
	}

	wc, err := c.Data()
	if err != nil {
		return Classify(fmt.Errorf("failed to start data: %w", err))
	}
	if _, err := wc.Write(buildRFC822(account.Address, msg)); err != nil {
		_ = wc.Close()
		return Classify(fmt.Errorf("failed to write message: %w", err))
	}
	if err := wc.Close(); err != nil {
		return Classify(fmt.Errorf("failed to close data writer: %w", err))
	}

	// Quit 失败不影响投递结果，消息已被接受
	if err := c.Quit(); err != nil && t.Logger != nil {
		t.Logger.Warn("SMTP QUIT failed after accepted delivery", zap.Error(err))
	}

	return nil
}

// buildRFC822 renders the plain-text wire form of the message.
func buildRFC822(from string, msg *Message) []byte {
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	if msg.MessageID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s>\r\n", msg.MessageID)
	}
	if msg.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: <%s>\r\n", msg.InReplyTo)
	}
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
