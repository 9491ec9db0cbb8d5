package memory

import (
	"context"
	"sort"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

// --- Downloads ---

// ChargeDownload counts, checks and records under the write lock, so
// concurrent downloads by one account are serialized.
func (r *Repository) ChargeDownload(ctx context.Context, rec *database.DownloadRecord, dayStart time.Time, check func(todayCount int) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, d := range r.downloads {
		if d.AccountID == rec.AccountID && d.MediaType == rec.MediaType && !d.CreatedAt.Before(dayStart) {
			count++
		}
	}
	if err := check(count); err != nil {
		return err
	}

	m, ok := r.media[rec.MediaID]
	if !ok {
		return database.ErrNotFound
	}
	c := *rec
	r.downloads[rec.ID] = &c
	m.DownloadsCount++
	return nil
}

func (r *Repository) CountDownloads(ctx context.Context, accountID uuid.UUID, since time.Time) (map[access.MediaType]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[access.MediaType]int)
	for _, d := range r.downloads {
		if d.AccountID == accountID && !d.CreatedAt.Before(since) {
			counts[d.MediaType]++
		}
	}
	return counts, nil
}

func (r *Repository) PruneDownloads(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, d := range r.downloads {
		if d.CreatedAt.Before(before) {
			delete(r.downloads, id)
			n++
		}
	}
	return n, nil
}

// --- Likes & favorites ---

func (r *Repository) ToggleLike(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.toggle(r.likes, accountID, mediaID)
}

func (r *Repository) ToggleFavorite(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	return r.toggle(r.favorites, accountID, mediaID)
}

func (r *Repository) toggle(set map[pair]time.Time, accountID, mediaID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.media[mediaID]; !ok {
		return false, database.ErrNotFound
	}
	k := pair{accountID, mediaID}
	if _, ok := set[k]; ok {
		delete(set, k)
		return false, nil
	}
	set[k] = time.Now()
	return true, nil
}

func (r *Repository) HasLiked(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.likes[pair{accountID, mediaID}]
	return ok, nil
}

func (r *Repository) HasFavorited(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.favorites[pair{accountID, mediaID}]
	return ok, nil
}

func (r *Repository) CountLikes(ctx context.Context, mediaID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.likes {
		if k.b == mediaID {
			n++
		}
	}
	return n, nil
}

// --- Reviews ---

func (r *Repository) CreateReview(ctx context.Context, rv *database.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.media[rv.MediaID]; !ok {
		return database.ErrNotFound
	}
	c := *rv
	r.reviews[rv.ID] = &c
	return nil
}

func (r *Repository) ListReviews(ctx context.Context, mediaID uuid.UUID) ([]*database.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.Review
	for _, rv := range r.reviews {
		if rv.MediaID != mediaID {
			continue
		}
		c := *rv
		if a, ok := r.accounts[rv.AccountID]; ok {
			c.Username = a.Username
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Notifications ---

func (r *Repository) CreateNotification(ctx context.Context, n *database.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *n
	r.notes[n.ID] = &c
	return nil
}

func (r *Repository) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]*database.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.Notification
	for _, n := range r.notes {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *Repository) MarkNotificationsRead(ctx context.Context, recipientID uuid.UUID, senderID *uuid.UUID, typ database.NotificationType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, note := range r.notes {
		if note.RecipientID != recipientID || note.IsRead {
			continue
		}
		if senderID != nil && (note.SenderID == nil || *note.SenderID != *senderID) {
			continue
		}
		if typ != "" && note.Type != typ {
			continue
		}
		note.IsRead = true
		n++
	}
	return n, nil
}
