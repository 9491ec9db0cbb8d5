package database

import (
	"time"

	"mediavault/internal/server/access"

	"github.com/google/uuid"
)

// Account is a registered user.
type Account struct {
	ID             uuid.UUID
	Username       string
	Email          string
	PasswordHash   string
	Bio            string
	Theme          string
	IsSuperuser    bool
	IsUploader     bool
	IsPrivate      bool
	DownloadPolicy access.DownloadPolicy
	CreatedAt      time.Time
}

// Viewer returns the access identity of an authenticated account.
func (a *Account) Viewer() access.Viewer {
	return access.Viewer{
		ID:            a.ID,
		Authenticated: true,
		IsSuperuser:   a.IsSuperuser,
		IsUploader:    a.IsUploader,
	}
}

// Role is the display role: Admin, Uploader or User.
func (a *Account) Role() string {
	switch {
	case a.IsSuperuser:
		return "Admin"
	case a.IsUploader:
		return "Uploader"
	}
	return "User"
}

// Folder groups media items and subfolders of one owner.
type Folder struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	ParentID     *uuid.UUID
	Name         string
	CoverMediaID *uuid.UUID
	IsPrivate    bool
	IsHidden     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// OwnerPrivate is the owner's account privacy, loaded with the row.
	OwnerPrivate bool
}

// Access projects the folder for visibility checks.
func (f *Folder) Access() access.Content {
	return access.Content{
		OwnerID:      f.OwnerID,
		OwnerPrivate: f.OwnerPrivate,
		IsPrivate:    f.IsPrivate,
		IsHidden:     f.IsHidden,
	}
}

// MediaItem is an uploaded file.
type MediaItem struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	FolderID       *uuid.UUID
	Title          string
	Description    string
	StorageKey     string
	OriginalName   string
	MediaType      access.MediaType
	Size           int64
	ViewsCount     int
	DownloadsCount int
	IsPrivate      bool
	IsHidden       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// OwnerPrivate is the owner's account privacy, loaded with the row.
	OwnerPrivate bool
}

// Access projects the media item for visibility checks.
func (m *MediaItem) Access() access.Content {
	return access.Content{
		OwnerID:      m.OwnerID,
		OwnerPrivate: m.OwnerPrivate,
		IsPrivate:    m.IsPrivate,
		IsHidden:     m.IsHidden,
	}
}

// Follow is a directed follower -> followed edge. Accepted is false while
// a request to a private account is pending.
type Follow struct {
	FollowerID uuid.UUID
	FollowedID uuid.UUID
	Accepted   bool
	CreatedAt  time.Time
}

// DownloadRecord logs one charged download. MediaType is captured at
// download time so quotas do not depend on later edits.
type DownloadRecord struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	MediaID   uuid.UUID
	MediaType access.MediaType
	CreatedAt time.Time
}

// Review is a comment with an optional 1-5 rating.
type Review struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	MediaID   uuid.UUID
	Rating    *int
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Username of the author, loaded with the row.
	Username string
}

// NotificationType classifies notifications.
type NotificationType string

const (
	NotifyFollow        NotificationType = "FOLLOW"
	NotifyFollowRequest NotificationType = "FOLLOW_REQUEST"
	NotifyFollowAccept  NotificationType = "FOLLOW_ACCEPT"
	NotifyLike          NotificationType = "LIKE"
	NotifyComment       NotificationType = "COMMENT"
)

// Notification is a message for a recipient.
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	SenderID    *uuid.UUID
	Type        NotificationType
	Message     string
	TargetURL   string
	IsRead      bool
	CreatedAt   time.Time
}

// UploadRequest asks an admin for uploader rights.
type UploadRequest struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Message     string
	IsApproved  bool
	ProcessedAt *time.Time
	CreatedAt   time.Time

	Username string
}

// ReportedProblem is a user-submitted problem report.
type ReportedProblem struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Message    string
	IsResolved bool
	ResolvedAt *time.Time
	CreatedAt  time.Time

	Username string
}

// Stats holds aggregate server statistics.
type Stats struct {
	Accounts        int64 `json:"accounts"`
	Uploaders       int64 `json:"uploaders"`
	MediaItems      int64 `json:"media_items"`
	TotalDownloads  int64 `json:"total_downloads"`
	TotalViews      int64 `json:"total_views"`
	PendingRequests int64 `json:"pending_requests"`
	OpenProblems    int64 `json:"open_problems"`
}

// Sort orders for media listings.
const (
	SortDateDesc = "date_desc"
	SortDateAsc  = "date_asc"
	SortViews    = "views"
	SortNameAsc  = "name_asc"
	SortNameDesc = "name_desc"
	SortLikes    = "likes"
)

// MediaFilter narrows a media listing. Visibility is always applied on
// top of it.
type MediaFilter struct {
	OwnerID    *uuid.UUID
	FolderID   *uuid.UUID
	NoFolder   bool
	Type       access.MediaType
	Query      string
	Since      time.Time
	HiddenOnly bool
	OnlyAdmins bool
	ExcludeID  *uuid.UUID
	Sort       string
	Limit      int
	Offset     int
}

// FolderFilter narrows a folder listing. Visibility is always applied on
// top of it.
type FolderFilter struct {
	OwnerID  *uuid.UUID
	ParentID *uuid.UUID
	RootOnly bool
	Query    string
	Limit    int
}
