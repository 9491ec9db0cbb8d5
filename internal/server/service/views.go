package service

import (
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

// AccountSummary is the public view of an account.
type AccountSummary struct {
	ID             uuid.UUID             `json:"id"`
	Username       string                `json:"username"`
	Bio            string                `json:"bio"`
	Role           string                `json:"role"`
	IsPrivate      bool                  `json:"is_private"`
	DownloadPolicy access.DownloadPolicy `json:"download_policy"`
	CreatedAt      time.Time             `json:"created_at"`
}

func summarizeAccount(a *database.Account) AccountSummary {
	return AccountSummary{
		ID:             a.ID,
		Username:       a.Username,
		Bio:            a.Bio,
		Role:           a.Role(),
		IsPrivate:      a.IsPrivate,
		DownloadPolicy: a.DownloadPolicy,
		CreatedAt:      a.CreatedAt,
	}
}

func summarizeAccounts(accounts []*database.Account) []AccountSummary {
	out := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summarizeAccount(a))
	}
	return out
}

// MediaSummary is the listing view of a media item. It carries no
// retrieval URL; files are obtained through the download endpoint.
type MediaSummary struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	FolderID       *uuid.UUID       `json:"folder_id,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	OriginalName   string           `json:"original_name"`
	MediaType      access.MediaType `json:"media_type"`
	Size           int64            `json:"size"`
	ViewsCount     int              `json:"views_count"`
	DownloadsCount int              `json:"downloads_count"`
	IsPrivate      bool             `json:"is_private"`
	IsHidden       bool             `json:"is_hidden"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func summarizeMedia(m *database.MediaItem) MediaSummary {
	return MediaSummary{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		FolderID:       m.FolderID,
		Title:          m.Title,
		Description:    m.Description,
		OriginalName:   m.OriginalName,
		MediaType:      m.MediaType,
		Size:           m.Size,
		ViewsCount:     m.ViewsCount,
		DownloadsCount: m.DownloadsCount,
		IsPrivate:      m.IsPrivate,
		IsHidden:       m.IsHidden,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func summarizeMediaList(items []*database.MediaItem) []MediaSummary {
	out := make([]MediaSummary, 0, len(items))
	for _, m := range items {
		out = append(out, summarizeMedia(m))
	}
	return out
}

// FolderSummary is the listing view of a folder.
type FolderSummary struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Name         string     `json:"name"`
	CoverMediaID *uuid.UUID `json:"cover_media_id,omitempty"`
	IsPrivate    bool       `json:"is_private"`
	IsHidden     bool       `json:"is_hidden"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func summarizeFolder(f *database.Folder) FolderSummary {
	return FolderSummary{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		ParentID:     f.ParentID,
		Name:         f.Name,
		CoverMediaID: f.CoverMediaID,
		IsPrivate:    f.IsPrivate,
		IsHidden:     f.IsHidden,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func summarizeFolders(folders []*database.Folder) []FolderSummary {
	out := make([]FolderSummary, 0, len(folders))
	for _, f := range folders {
		out = append(out, summarizeFolder(f))
	}
	return out
}
