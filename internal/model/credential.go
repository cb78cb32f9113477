package model

import "time"

const (
	CredentialSMTP  = "smtp"
	CredentialOAuth = "oauth"
)

// MailboxCredential holds one user's mail-sending credentials. At most
// one live row per user; saving a new one supersedes the old. There is
// no validity flag: staleness is detected lazily, by the next send
// failing with an authentication error.
type MailboxCredential struct {
	ID           int
	UserID       int
	EmailAddress string
	AuthType     string
	AppPassword  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
	CreatedAt    time.Time
}

// Secret returns the value handed to the SMTP transport for AUTH.
func (c *MailboxCredential) Secret() string {
	if c.AuthType == CredentialOAuth {
		return c.AccessToken
	}
	return c.AppPassword
}
