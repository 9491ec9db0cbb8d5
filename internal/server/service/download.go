package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"
	"mediavault/internal/server/storage"

	"github.com/google/uuid"
)

// DownloadStore is the persistence the download guard needs.
type DownloadStore interface {
	GetMedia(ctx context.Context, id uuid.UUID) (*database.MediaItem, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error)
	IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)
	IsAllowedDownloader(ctx context.Context, ownerID, accountID uuid.UUID) (bool, error)
	ChargeDownload(ctx context.Context, rec *database.DownloadRecord, dayStart time.Time, check func(todayCount int) error) error
	CountDownloads(ctx context.Context, accountID uuid.UUID, since time.Time) (map[access.MediaType]int, error)
}

// DownloadResult is returned for an allowed download.
type DownloadResult struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// QuotaUsage is one media type's usage for the current UTC day.
type QuotaUsage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// Quota is the viewer's download usage for the current UTC day.
type Quota struct {
	Day     string                          `json:"day"`
	ResetAt time.Time                       `json:"reset_at"`
	Usage   map[access.MediaType]QuotaUsage `json:"usage"`
}

// DownloadService authorizes downloads and charges daily quotas.
type DownloadService struct {
	repo  DownloadStore
	store storage.Store
	now   clock
}

// NewDownloadService creates a new download service.
func NewDownloadService(repo DownloadStore, store storage.Store) *DownloadService {
	return &DownloadService{repo: repo, store: store}
}

// AuthorizeDownload decides whether the viewer may download the media item
// now. Only the uploader's download policy and the daily quota apply; the
// item's visibility does not. Denials are returned as ErrForbidden wrapping
// an *access.Denial. The link is resolved before anything is charged, so
// nothing is written unless the download is allowed.
func (s *DownloadService) AuthorizeDownload(ctx context.Context, viewer access.Viewer, mediaID uuid.UUID) (*DownloadResult, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}

	item, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, notFound(err, "media")
	}
	owner, err := s.repo.GetAccount(ctx, item.OwnerID)
	if err != nil {
		return nil, notFound(err, "uploader")
	}

	url, err := s.store.URL(ctx, item.StorageKey, item.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download url: %w", err)
	}
	allowed := &DownloadResult{Status: "allowed", URL: url}

	if access.Exempt(viewer, owner.ID) {
		return allowed, nil
	}

	following, err := s.repo.IsFollowing(ctx, viewer.ID, owner.ID)
	if err != nil {
		return nil, err
	}
	allowListed := false
	if owner.DownloadPolicy == access.PolicyRestricted {
		allowListed, err = s.repo.IsAllowedDownloader(ctx, owner.ID, viewer.ID)
		if err != nil {
			return nil, err
		}
	}
	if err := access.CheckPolicy(viewer, owner.DownloadPolicy, following, allowListed); err != nil {
		var d *access.Denial
		if errors.As(err, &d) {
			return nil, deny(d)
		}
		return nil, err
	}

	now := s.now.now()
	rec := &database.DownloadRecord{
		ID:        uuid.New(),
		AccountID: viewer.ID,
		MediaID:   item.ID,
		MediaType: item.MediaType,
		CreatedAt: now,
	}
	err = s.repo.ChargeDownload(ctx, rec, access.DayStart(now), func(todayCount int) error {
		return access.CheckQuota(item.MediaType, todayCount)
	})
	if err != nil {
		var d *access.Denial
		if errors.As(err, &d) {
			slog.Info("download denied",
				"account_id", viewer.ID,
				"media_id", item.ID,
				"reason", d.Reason,
			)
			return nil, deny(d)
		}
		return nil, notFound(err, "media")
	}

	slog.Info("download charged",
		"account_id", viewer.ID,
		"media_id", item.ID,
		"media_type", item.MediaType,
	)
	return allowed, nil
}

// Quota returns the viewer's usage for the current UTC day.
func (s *DownloadService) Quota(ctx context.Context, viewer access.Viewer) (*Quota, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}

	now := s.now.now()
	day := access.DayStart(now)
	counts, err := s.repo.CountDownloads(ctx, viewer.ID, day)
	if err != nil {
		return nil, err
	}

	usage := make(map[access.MediaType]QuotaUsage)
	for _, t := range []access.MediaType{access.MediaVideo, access.MediaImage, access.MediaDocument, access.MediaOther} {
		u := QuotaUsage{Used: counts[t]}
		if limit, _, limited := access.DailyLimit(t); limited {
			u.Limit = limit
			u.Remaining = max(limit-u.Used, 0)
		} else {
			u.Unlimited = true
		}
		usage[t] = u
	}

	return &Quota{
		Day:     day.Format(time.DateOnly),
		ResetAt: day.Add(24 * time.Hour),
		Usage:   usage,
	}, nil
}
