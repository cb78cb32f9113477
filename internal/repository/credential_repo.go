package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
)

// ErrCredentialReplacePartial means the old credential was deleted but
// the new one failed to insert. The user is left with no credential on
// file; callers must surface this instead of reporting success.
var ErrCredentialReplacePartial = errors.New("credential replace partially applied")

type CredentialRepository struct {
	db *pgxpool.Pool
}

func NewCredentialRepository(db *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the user's mailbox credential, or pgx.ErrNoRows when the
// user never connected a mailbox.
func (r *CredentialRepository) Get(ctx context.Context, userID int) (*model.MailboxCredential, error) {
	query := `
        SELECT id, user_id, email_address, auth_type, app_password,
               access_token, refresh_token, token_expiry, created_at
        FROM mailbox_credentials
        WHERE user_id = $1
    `
	var c model.MailboxCredential
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.EmailAddress,
		&c.AuthType,
		&c.AppPassword,
		&c.AccessToken,
		&c.RefreshToken,
		&c.TokenExpiry,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Replace supersedes any existing credential for the user. Delete and
// insert run as two steps, not one transaction: the backing store is
// not assumed to offer cross-entity atomicity, so a failed insert after
// a successful delete is reported as ErrCredentialReplacePartial.
func (r *CredentialRepository) Replace(ctx context.Context, c *model.MailboxCredential) error {
	deleted, err := r.db.Exec(ctx, `DELETE FROM mailbox_credentials WHERE user_id = $1`, c.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete prior credential: %w", err)
	}

	query := `
        INSERT INTO mailbox_credentials
            (user_id, email_address, auth_type, app_password, access_token, refresh_token, token_expiry, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id
    `
	err = r.db.QueryRow(ctx, query,
		c.UserID,
		c.EmailAddress,
		c.AuthType,
		c.AppPassword,
		c.AccessToken,
		c.RefreshToken,
		c.TokenExpiry,
	).Scan(&c.ID)
	if err != nil {
		if deleted.RowsAffected() > 0 {
			return fmt.Errorf("%w: %v", ErrCredentialReplacePartial, err)
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}
