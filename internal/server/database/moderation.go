package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// --- Upload requests ---

const uploadRequestSelect = `
	SELECT r.id, r.account_id, r.message, r.is_approved, r.processed_at, r.created_at, a.username
	FROM upload_requests r JOIN accounts a ON a.id = r.account_id`

func scanUploadRequest(row rowScanner) (*UploadRequest, error) {
	u := &UploadRequest{}
	if err := row.Scan(
		&u.ID,
		&u.AccountID,
		&u.Message,
		&u.IsApproved,
		&u.ProcessedAt,
		&u.CreatedAt,
		&u.Username,
	); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUploadRequest inserts an upload request.
func (r *Repository) CreateUploadRequest(ctx context.Context, u *UploadRequest) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO upload_requests (id, account_id, message, is_approved, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.AccountID, u.Message, u.IsApproved, u.ProcessedAt, u.CreatedAt)
	if err != nil {
		return mapError(err, "create upload request")
	}
	return nil
}

// GetUploadRequest retrieves an upload request by ID.
func (r *Repository) GetUploadRequest(ctx context.Context, id uuid.UUID) (*UploadRequest, error) {
	u, err := scanUploadRequest(r.db.Pool.QueryRow(ctx, uploadRequestSelect+" WHERE r.id = $1", id))
	if err != nil {
		return nil, mapError(err, "get upload request")
	}
	return u, nil
}

// UpdateUploadRequest stores the processing outcome of a request.
func (r *Repository) UpdateUploadRequest(ctx context.Context, u *UploadRequest) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE upload_requests SET is_approved = $2, processed_at = $3 WHERE id = $1",
		u.ID, u.IsApproved, u.ProcessedAt)
	if err != nil {
		return mapError(err, "update upload request")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUploadRequests returns pending requests (newest first) or processed
// ones (most recently processed first).
func (r *Repository) ListUploadRequests(ctx context.Context, processed bool, limit int) ([]*UploadRequest, error) {
	query := uploadRequestSelect + " WHERE r.processed_at IS NULL ORDER BY r.created_at DESC LIMIT $1"
	if processed {
		query = uploadRequestSelect + " WHERE r.processed_at IS NOT NULL ORDER BY r.processed_at DESC LIMIT $1"
	}
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, mapError(err, "list upload requests")
	}
	defer rows.Close()

	var out []*UploadRequest
	for rows.Next() {
		u, err := scanUploadRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload request: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// HasPendingUploadRequest reports whether the account has an unprocessed request.
func (r *Repository) HasPendingUploadRequest(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM upload_requests WHERE account_id = $1 AND processed_at IS NULL)",
		accountID,
	).Scan(&ok)
	if err != nil {
		return false, mapError(err, "check pending upload request")
	}
	return ok, nil
}

// --- Reported problems ---

const problemSelect = `
	SELECT p.id, p.account_id, p.message, p.is_resolved, p.resolved_at, p.created_at, a.username
	FROM reported_problems p JOIN accounts a ON a.id = p.account_id`

func scanProblem(row rowScanner) (*ReportedProblem, error) {
	p := &ReportedProblem{}
	if err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Message,
		&p.IsResolved,
		&p.ResolvedAt,
		&p.CreatedAt,
		&p.Username,
	); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProblem inserts a problem report.
func (r *Repository) CreateProblem(ctx context.Context, p *ReportedProblem) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO reported_problems (id, account_id, message, is_resolved, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.AccountID, p.Message, p.IsResolved, p.ResolvedAt, p.CreatedAt)
	if err != nil {
		return mapError(err, "create problem")
	}
	return nil
}

// GetProblem retrieves a problem report by ID.
func (r *Repository) GetProblem(ctx context.Context, id uuid.UUID) (*ReportedProblem, error) {
	p, err := scanProblem(r.db.Pool.QueryRow(ctx, problemSelect+" WHERE p.id = $1", id))
	if err != nil {
		return nil, mapError(err, "get problem")
	}
	return p, nil
}

// UpdateProblem stores the resolution state of a report.
func (r *Repository) UpdateProblem(ctx context.Context, p *ReportedProblem) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE reported_problems SET is_resolved = $2, resolved_at = $3 WHERE id = $1",
		p.ID, p.IsResolved, p.ResolvedAt)
	if err != nil {
		return mapError(err, "update problem")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProblems returns reports with the given resolution state, newest first.
func (r *Repository) ListProblems(ctx context.Context, resolved bool, limit int) ([]*ReportedProblem, error) {
	rows, err := r.db.Pool.Query(ctx,
		problemSelect+" WHERE p.is_resolved = $1 ORDER BY p.created_at DESC LIMIT $2", resolved, limit)
	if err != nil {
		return nil, mapError(err, "list problems")
	}
	defer rows.Close()

	var out []*ReportedProblem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetStats returns aggregate server statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE is_uploader),
			(SELECT COUNT(*) FROM media_items),
			(SELECT COALESCE(SUM(downloads_count), 0) FROM media_items),
			(SELECT COALESCE(SUM(views_count), 0) FROM media_items),
			(SELECT COUNT(*) FROM upload_requests WHERE processed_at IS NULL),
			(SELECT COUNT(*) FROM reported_problems WHERE NOT is_resolved)
	`).Scan(
		&stats.Accounts,
		&stats.Uploaders,
		&stats.MediaItems,
		&stats.TotalDownloads,
		&stats.TotalViews,
		&stats.PendingRequests,
		&stats.OpenProblems,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
