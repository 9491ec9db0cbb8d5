package database

import (
	"context"
	"fmt"
	"time"

	"mediavault/internal/server/access"

	"github.com/google/uuid"
)

// --- Downloads ---

// ChargeDownload counts the account's downloads of rec.MediaType since
// dayStart, passes the count to check and, if check allows, inserts rec
// and increments the media item's download counter. The count, check and
// insert run under a per-account advisory lock so concurrent downloads
// cannot overshoot a quota.
func (r *Repository) ChargeDownload(ctx context.Context, rec *DownloadRecord, dayStart time.Time, check func(todayCount int) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", rec.AccountID.String()); err != nil {
		return fmt.Errorf("failed to lock account downloads: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM download_records
		WHERE account_id = $1 AND media_type = $2 AND created_at >= $3
	`, rec.AccountID, rec.MediaType, dayStart).Scan(&count)
	if err != nil {
		return mapError(err, "count downloads")
	}

	if err := check(count); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO download_records (id, account_id, media_id, media_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.AccountID, rec.MediaID, rec.MediaType, rec.CreatedAt); err != nil {
		return mapError(err, "record download")
	}

	tag, err := tx.Exec(ctx,
		"UPDATE media_items SET downloads_count = downloads_count + 1 WHERE id = $1", rec.MediaID)
	if err != nil {
		return mapError(err, "increment download count")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit download: %w", err)
	}
	return nil
}

// CountDownloads returns the account's downloads since the given time,
// per media type.
func (r *Repository) CountDownloads(ctx context.Context, accountID uuid.UUID, since time.Time) (map[access.MediaType]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT media_type, COUNT(*) FROM download_records
		WHERE account_id = $1 AND created_at >= $2
		GROUP BY media_type
	`, accountID, since)
	if err != nil {
		return nil, mapError(err, "count downloads")
	}
	defer rows.Close()

	counts := make(map[access.MediaType]int)
	for rows.Next() {
		var t access.MediaType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan download count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// PruneDownloads deletes download records created before the cutoff.
func (r *Repository) PruneDownloads(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM download_records WHERE created_at < $1", before)
	if err != nil {
		return 0, mapError(err, "prune downloads")
	}
	return tag.RowsAffected(), nil
}

// --- Likes & favorites ---

// ToggleLike likes the media item or removes an existing like. Returns
// true when the item is liked afterwards.
func (r *Repository) ToggleLike(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.toggle(ctx, "likes", accountID, mediaID)
}

// ToggleFavorite favorites the media item or removes an existing
// favorite. Returns true when the item is a favorite afterwards.
func (r *Repository) ToggleFavorite(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.toggle(ctx, "favorites", accountID, mediaID)
}

func (r *Repository) toggle(ctx context.Context, table string, accountID, mediaID uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		"DELETE FROM "+table+" WHERE account_id = $1 AND media_id = $2", accountID, mediaID)
	if err != nil {
		return false, mapError(err, "toggle "+table)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	if _, err := r.db.Pool.Exec(ctx,
		"INSERT INTO "+table+" (account_id, media_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		accountID, mediaID,
	); err != nil {
		return false, mapError(err, "toggle "+table)
	}
	return true, nil
}

// HasLiked reports whether the account likes the media item.
func (r *Repository) HasLiked(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.exists(ctx, "likes", accountID, mediaID)
}

// HasFavorited reports whether the account favorited the media item.
func (r *Repository) HasFavorited(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.exists(ctx, "favorites", accountID, mediaID)
}

func (r *Repository) exists(ctx context.Context, table string, accountID, mediaID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM "+table+" WHERE account_id = $1 AND media_id = $2)",
		accountID, mediaID,
	).Scan(&ok)
	if err != nil {
		return false, mapError(err, "check "+table)
	}
	return ok, nil
}

// CountLikes returns the number of likes on a media item.
func (r *Repository) CountLikes(ctx context.Context, mediaID uuid.UUID) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM likes WHERE media_id = $1", mediaID).Scan(&n); err != nil {
		return 0, mapError(err, "count likes")
	}
	return n, nil
}

// --- Reviews ---

// CreateReview inserts a review.
func (r *Repository) CreateReview(ctx context.Context, rv *Review) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO reviews (id, account_id, media_id, rating, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rv.ID, rv.AccountID, rv.MediaID, rv.Rating, rv.Content, rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		return mapError(err, "create review")
	}
	return nil
}

// ListReviews returns a media item's reviews, newest first.
func (r *Repository) ListReviews(ctx context.Context, mediaID uuid.UUID) ([]*Review, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT rv.id, rv.account_id, rv.media_id, rv.rating, rv.content,
		       rv.created_at, rv.updated_at, a.username
		FROM reviews rv JOIN accounts a ON a.id = rv.account_id
		WHERE rv.media_id = $1
		ORDER BY rv.created_at DESC
	`, mediaID)
	if err != nil {
		return nil, mapError(err, "list reviews")
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		rv := &Review{}
		if err := rows.Scan(
			&rv.ID,
			&rv.AccountID,
			&rv.MediaID,
			&rv.Rating,
			&rv.Content,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&rv.Username,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// --- Notifications ---

// CreateNotification inserts a notification.
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, message, target_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.RecipientID, n.SenderID, n.Type, n.Message, n.TargetURL, n.IsRead, n.CreatedAt)
	if err != nil {
		return mapError(err, "create notification")
	}
	return nil
}

// ListNotifications returns a recipient's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]*Notification, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, recipient_id, sender_id, type, message, target_url, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3
	`, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, mapError(err, "list notifications")
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SenderID,
			&n.Type,
			&n.Message,
			&n.TargetURL,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead marks a recipient's unread notifications as read.
// A nil sender or empty type matches any.
func (r *Repository) MarkNotificationsRead(ctx context.Context, recipientID uuid.UUID, senderID *uuid.UUID, typ NotificationType) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_id = $1 AND NOT is_read
		  AND ($2::uuid IS NULL OR sender_id = $2)
		  AND ($3 = '' OR type = $3)
	`, recipientID, senderID, string(typ))
	if err != nil {
		return 0, mapError(err, "mark notifications read")
	}
	return tag.RowsAffected(), nil
}
