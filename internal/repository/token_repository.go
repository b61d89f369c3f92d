package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"
)

// ErrTokenInvalid covers unknown, revoked and expired refresh tokens alike
// so callers cannot tell them apart.
var ErrTokenInvalid = errors.New("refresh token invalid")

// TokenRepo persists/validates refresh tokens. Only the SHA-256 hash of a
// token is stored.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
    _, err := r.db.ExecContext(ctx,
        "INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
        userID, tokenHash, exp.UTC())
    return err
}

// ValidateRefresh returns the owning userID if the token exists, is not
// revoked and has not expired.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
    var (
        userID    uint64
        expiresAt time.Time
        revokedAt sql.NullTime
    )
    err := r.db.QueryRowContext(ctx,
        "SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
        tokenHash).Scan(&userID, &expiresAt, &revokedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrTokenInvalid
    }
    if err != nil {
        return 0, err
    }
    if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
        return 0, ErrTokenInvalid
    }
    return userID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
    _, err := r.db.ExecContext(ctx,
        "UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
        tokenHash)
    return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
    _, err := r.db.ExecContext(ctx,
        "UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
        userID)
    return err
}
