package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Repository provides persistence for accounts, content and activity on
// top of a Postgres pool.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies the database connection is alive.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapError translates driver errors into repository sentinels.
func mapError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(q) + "%"
}

// --- Accounts ---

const accountColumns = `id, username, email, password_hash, bio, theme,
	is_superuser, is_uploader, is_private, download_policy, created_at`

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Bio,
		&a.Theme,
		&a.IsSuperuser,
		&a.IsUploader,
		&a.IsPrivate,
		&a.DownloadPolicy,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]*Account, error) {
	defer rows.Close()
	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts a new account.
func (r *Repository) CreateAccount(ctx context.Context, a *Account) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.Bio,
		a.Theme,
		a.IsSuperuser,
		a.IsUploader,
		a.IsPrivate,
		a.DownloadPolicy,
		a.CreatedAt,
	)
	if err != nil {
		return mapError(err, "create account")
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "get account")
	}
	return a, nil
}

// GetAccountByUsername retrieves an account by its username.
func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username = $1", username))
	if err != nil {
		return nil, mapError(err, "get account by username")
	}
	return a, nil
}

// GetAccountByLogin retrieves an account by email (case-insensitive) or username.
func (r *Repository) GetAccountByLogin(ctx context.Context, login string) (*Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE LOWER(email) = LOWER($1) OR username = $1 LIMIT 1", login))
	if err != nil {
		return nil, mapError(err, "get account by login")
	}
	return a, nil
}

// UpdateAccount overwrites the mutable fields of an account.
func (r *Repository) UpdateAccount(ctx context.Context, a *Account) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE accounts SET
			username = $2, email = $3, password_hash = $4, bio = $5, theme = $6,
			is_superuser = $7, is_uploader = $8, is_private = $9, download_policy = $10
		WHERE id = $1
	`,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.Bio,
		a.Theme,
		a.IsSuperuser,
		a.IsUploader,
		a.IsPrivate,
		a.DownloadPolicy,
	)
	if err != nil {
		return mapError(err, "update account")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account and, by cascade, everything it owns.
func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return mapError(err, "delete account")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchAccounts matches username or bio, excluding one account.
func (r *Repository) SearchAccounts(ctx context.Context, q string, exclude uuid.UUID, limit int) ([]*Account, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE (username ILIKE $1 OR bio ILIKE $1) AND id <> $2
		ORDER BY username
		LIMIT $3
	`, likePattern(q), exclude, limit)
	if err != nil {
		return nil, mapError(err, "search accounts")
	}
	return collectAccounts(rows)
}

// ListAccounts returns all accounts, newest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at DESC")
	if err != nil {
		return nil, mapError(err, "list accounts")
	}
	return collectAccounts(rows)
}

// SetAllowedDownloaders replaces an owner's download allow-list.
func (r *Repository) SetAllowedDownloaders(ctx context.Context, ownerID uuid.UUID, accountIDs []uuid.UUID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM allowed_downloaders WHERE owner_id = $1", ownerID); err != nil {
		return mapError(err, "clear allow-list")
	}
	for _, id := range accountIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO allowed_downloaders (owner_id, account_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			ownerID, id,
		); err != nil {
			return mapError(err, "add to allow-list")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit allow-list: %w", err)
	}
	return nil
}

// ListAllowedDownloaders returns the accounts on an owner's allow-list.
func (r *Repository) ListAllowedDownloaders(ctx context.Context, ownerID uuid.UUID) ([]*Account, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+prefixed("a", accountColumns)+` FROM accounts a
		JOIN allowed_downloaders d ON d.account_id = a.id
		WHERE d.owner_id = $1
		ORDER BY a.username
	`, ownerID)
	if err != nil {
		return nil, mapError(err, "list allow-list")
	}
	return collectAccounts(rows)
}

// IsAllowedDownloader reports whether accountID is on ownerID's allow-list.
func (r *Repository) IsAllowedDownloader(ctx context.Context, ownerID, accountID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM allowed_downloaders WHERE owner_id = $1 AND account_id = $2)",
		ownerID, accountID,
	).Scan(&ok)
	if err != nil {
		return false, mapError(err, "check allow-list")
	}
	return ok, nil
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// --- Follows ---

// GetFollow returns the edge follower -> followed in any state.
func (r *Repository) GetFollow(ctx context.Context, followerID, followedID uuid.UUID) (*Follow, error) {
	f := &Follow{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT follower_id, followed_id, accepted, created_at
		FROM follows WHERE follower_id = $1 AND followed_id = $2
	`, followerID, followedID).Scan(&f.FollowerID, &f.FollowedID, &f.Accepted, &f.CreatedAt)
	if err != nil {
		return nil, mapError(err, "get follow")
	}
	return f, nil
}

// CreateFollow inserts a follow edge.
func (r *Repository) CreateFollow(ctx context.Context, f *Follow) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO follows (follower_id, followed_id, accepted, created_at)
		VALUES ($1, $2, $3, $4)
	`, f.FollowerID, f.FollowedID, f.Accepted, f.CreatedAt)
	if err != nil {
		return mapError(err, "create follow")
	}
	return nil
}

// DeleteFollow removes a follow edge.
func (r *Repository) DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		"DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2", followerID, followedID)
	if err != nil {
		return mapError(err, "delete follow")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AcceptFollow accepts a pending edge. Returns ErrNotFound when no
// pending edge exists.
func (r *Repository) AcceptFollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE follows SET accepted = TRUE
		WHERE follower_id = $1 AND followed_id = $2 AND NOT accepted
	`, followerID, followedID)
	if err != nil {
		return mapError(err, "accept follow")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsFollowing reports whether an accepted edge follower -> followed exists.
func (r *Repository) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2 AND accepted)",
		followerID, followedID,
	).Scan(&ok)
	if err != nil {
		return false, mapError(err, "check follow")
	}
	return ok, nil
}

// ListFollowers returns accounts following followedID with the given
// acceptance state.
func (r *Repository) ListFollowers(ctx context.Context, followedID uuid.UUID, accepted bool) ([]*Account, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+prefixed("a", accountColumns)+` FROM accounts a
		JOIN follows f ON f.follower_id = a.id
		WHERE f.followed_id = $1 AND f.accepted = $2
		ORDER BY f.created_at DESC
	`, followedID, accepted)
	if err != nil {
		return nil, mapError(err, "list followers")
	}
	return collectAccounts(rows)
}

// ListFollowing returns accounts followerID follows with an accepted edge.
func (r *Repository) ListFollowing(ctx context.Context, followerID uuid.UUID) ([]*Account, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+prefixed("a", accountColumns)+` FROM accounts a
		JOIN follows f ON f.followed_id = a.id
		WHERE f.follower_id = $1 AND f.accepted
		ORDER BY f.created_at DESC
	`, followerID)
	if err != nil {
		return nil, mapError(err, "list following")
	}
	return collectAccounts(rows)
}
