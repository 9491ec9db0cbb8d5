package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"
	"mediavault/internal/server/storage"

	"github.com/google/uuid"
)

// ContentStore is the persistence the content service needs.
type ContentStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error)
	SearchAccounts(ctx context.Context, q string, exclude uuid.UUID, limit int) ([]*database.Account, error)
	IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)

	CreateFolder(ctx context.Context, f *database.Folder) error
	GetFolder(ctx context.Context, id uuid.UUID) (*database.Folder, error)
	FindFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (*database.Folder, error)
	UpdateFolder(ctx context.Context, f *database.Folder) error
	DeleteFolder(ctx context.Context, id uuid.UUID) error
	ListFolders(ctx context.Context, viewer access.Viewer, filter database.FolderFilter) ([]*database.Folder, error)

	CreateMedia(ctx context.Context, m *database.MediaItem) error
	GetMedia(ctx context.Context, id uuid.UUID) (*database.MediaItem, error)
	UpdateMedia(ctx context.Context, m *database.MediaItem) error
	DeleteMedia(ctx context.Context, id uuid.UUID) error
	ListMedia(ctx context.Context, viewer access.Viewer, filter database.MediaFilter) ([]*database.MediaItem, error)
	RecordView(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error)

	HasLiked(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error)
	HasFavorited(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error)
	CountLikes(ctx context.Context, mediaID uuid.UUID) (int, error)

	GetStats(ctx context.Context) (*database.Stats, error)
}

const (
	pageSize      = 24
	feedRecent    = 20
	feedTrending  = 10
	feedFeatured  = 10
	relatedLimit  = 10
	searchResults = 20
	maxFolderName = 255
	maxDepth      = 64
)

// Visibility actions accepted by SetVisibility.
const (
	ActionHide    = "hide"
	ActionUnhide  = "unhide"
	ActionPrivate = "private"
	ActionPublic  = "public"
)

// FolderInput holds the fields for a new folder.
type FolderInput struct {
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parent_id"`
	IsPrivate bool       `json:"is_private"`
}

// FolderUpdate holds optional folder changes.
type FolderUpdate struct {
	Name *string `json:"name"`
}

// UploadInput describes an uploaded file. RelativePath, when it contains
// directories, places the file in that folder chain under FolderID,
// creating missing folders.
type UploadInput struct {
	Filename     string
	Title        string
	Description  string
	FolderID     *uuid.UUID
	RelativePath string
	IsPrivate    bool
	Size         int64
	Body         io.Reader
}

// MediaUpdate holds optional media changes. ToRoot moves the item out of
// its folder.
type MediaUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	FolderID    *uuid.UUID `json:"folder_id"`
	ToRoot      bool       `json:"to_root"`
}

// MediaQuery filters the all-media listing.
type MediaQuery struct {
	Type  access.MediaType
	Sort  string
	Date  string // today, week, month or empty
	Query string
	Page  int
}

// MediaPage is one page of a media listing.
type MediaPage struct {
	Items    []MediaSummary `json:"items"`
	Page     int            `json:"page"`
	NextPage *int           `json:"next_page"`
}

// MediaDetail is a single media item with the viewer's relation to it.
type MediaDetail struct {
	Media          MediaSummary   `json:"media"`
	Owner          AccountSummary `json:"owner"`
	LikesCount     int            `json:"likes_count"`
	IsOwner        bool           `json:"is_owner"`
	IsLiked        bool           `json:"is_liked"`
	IsFavorited    bool           `json:"is_favorited"`
	FollowingOwner bool           `json:"following_owner"`
	FolderItems    []MediaSummary `json:"folder_items"`
	RelatedItems   []MediaSummary `json:"related_items"`
}

// FolderDetail is a folder with its visible content.
type FolderDetail struct {
	Folder     FolderSummary   `json:"folder"`
	Owner      AccountSummary  `json:"owner"`
	IsOwner    bool            `json:"is_owner"`
	Ancestors  []FolderSummary `json:"ancestors"`
	Subfolders []FolderSummary `json:"subfolders"`
	Media      []MediaSummary  `json:"media"`
}

// Feed is the home page content.
type Feed struct {
	Recent   []MediaSummary `json:"recent"`
	Trending []MediaSummary `json:"trending"`
	Featured []MediaSummary `json:"featured"`
}

// SearchResults groups matches by kind.
type SearchResults struct {
	Users     []AccountSummary `json:"users"`
	Images    []MediaSummary   `json:"images"`
	Videos    []MediaSummary   `json:"videos"`
	Documents []MediaSummary   `json:"documents"`
	Folders   []FolderSummary  `json:"folders"`
}

// BulkDeleteInput lists items to delete.
type BulkDeleteInput struct {
	Media   []uuid.UUID `json:"media"`
	Folders []uuid.UUID `json:"folders"`
}

// BulkDeleteResult counts deleted items.
type BulkDeleteResult struct {
	Media   int `json:"media"`
	Folders int `json:"folders"`
}

// ContentService manages folders and media items.
type ContentService struct {
	repo          ContentStore
	store         storage.Store
	maxUploadSize int64
	now           clock
}

// NewContentService creates a new content service.
func NewContentService(repo ContentStore, store storage.Store, maxUploadSize int64) *ContentService {
	return &ContentService{repo: repo, store: store, maxUploadSize: maxUploadSize}
}

func requireUploader(v access.Viewer) error {
	if !v.Authenticated {
		return ErrUnauthorized
	}
	if !v.IsUploader && !v.IsSuperuser {
		return fmt.Errorf("%w: upload access required", ErrForbidden)
	}
	return nil
}

func (s *ContentService) following(ctx context.Context, v access.Viewer, ownerID uuid.UUID) (bool, error) {
	if !v.Authenticated || v.Owns(ownerID) {
		return false, nil
	}
	return s.repo.IsFollowing(ctx, v.ID, ownerID)
}

func (s *ContentService) canView(ctx context.Context, v access.Viewer, c access.Content) (bool, error) {
	following, err := s.following(ctx, v, c.OwnerID)
	if err != nil {
		return false, err
	}
	return access.CanView(v, c, following), nil
}

// --- Folders ---

func validFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || len(name) > maxFolderName || strings.ContainsAny(name, "/\\") {
		return "", invalid("invalid folder name %q", name)
	}
	return name, nil
}

// ownedFolder loads a folder the viewer may modify.
func (s *ContentService) ownedFolder(ctx context.Context, v access.Viewer, id uuid.UUID) (*database.Folder, error) {
	f, err := s.repo.GetFolder(ctx, id)
	if err != nil {
		return nil, notFound(err, "folder")
	}
	if err := requireOwner(v, f.OwnerID); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFolder creates a folder owned by the viewer.
func (s *ContentService) CreateFolder(ctx context.Context, viewer access.Viewer, in FolderInput) (*FolderSummary, error) {
	if err := requireUploader(viewer); err != nil {
		return nil, err
	}
	name, err := validFolderName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.repo.GetFolder(ctx, *in.ParentID)
		if err != nil {
			return nil, notFound(err, "parent folder")
		}
		if !viewer.Owns(parent.OwnerID) {
			return nil, fmt.Errorf("%w: parent folder belongs to another account", ErrForbidden)
		}
	}

	now := s.now.now()
	f := &database.Folder{
		ID:        uuid.New(),
		OwnerID:   viewer.ID,
		ParentID:  in.ParentID,
		Name:      name,
		IsPrivate: in.IsPrivate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateFolder(ctx, f); err != nil {
		return nil, conflict(err, "folder with this name already exists here")
	}

	slog.Info("folder created", "folder_id", f.ID, "owner_id", f.OwnerID, "name", f.Name)
	out := summarizeFolder(f)
	return &out, nil
}

// folderChain returns the folder for the directories of relPath under
// parent, creating missing folders.
func (s *ContentService) folderChain(ctx context.Context, ownerID uuid.UUID, parent *uuid.UUID, relPath string) (*uuid.UUID, error) {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	dirs := strings.Split(relPath, "/")
	dirs = dirs[:len(dirs)-1]

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		name, err := validFolderName(dir)
		if err != nil {
			return nil, err
		}

		f, err := s.repo.FindFolder(ctx, ownerID, parent, name)
		if errors.Is(err, database.ErrNotFound) {
			now := s.now.now()
			f = &database.Folder{
				ID:        uuid.New(),
				OwnerID:   ownerID,
				ParentID:  parent,
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err = s.repo.CreateFolder(ctx, f)
			if errors.Is(err, database.ErrConflict) {
				f, err = s.repo.FindFolder(ctx, ownerID, parent, name)
			}
		}
		if err != nil {
			return nil, err
		}
		parent = &f.ID
	}
	return parent, nil
}

// UploadMedia stores a file and creates its media item.
func (s *ContentService) UploadMedia(ctx context.Context, viewer access.Viewer, in UploadInput) (*MediaSummary, error) {
	if err := requireUploader(viewer); err != nil {
		return nil, err
	}
	if s.maxUploadSize > 0 && in.Size > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	filename := sanitizeFilename(in.Filename)
	if in.RelativePath != "" {
		filename = sanitizeFilename(in.RelativePath)
	}

	folderID := in.FolderID
	if folderID != nil {
		f, err := s.repo.GetFolder(ctx, *folderID)
		if err != nil {
			return nil, notFound(err, "folder")
		}
		if !viewer.Owns(f.OwnerID) {
			return nil, fmt.Errorf("%w: folder belongs to another account", ErrForbidden)
		}
	}
	if strings.ContainsAny(in.RelativePath, "/\\") {
		var err error
		folderID, err = s.folderChain(ctx, viewer.ID, folderID, in.RelativePath)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	key := viewer.ID.String() + "/" + id.String() + strings.ToLower(path.Ext(filename))

	size, err := s.store.Save(ctx, key, in.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if s.maxUploadSize > 0 && size > s.maxUploadSize {
		s.store.Delete(ctx, key)
		return nil, ErrFileTooLarge
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = filename
	}

	now := s.now.now()
	m := &database.MediaItem{
		ID:           id,
		OwnerID:      viewer.ID,
		FolderID:     folderID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		StorageKey:   key,
		OriginalName: filename,
		MediaType:    access.DetectMediaType(filename),
		Size:         size,
		IsPrivate:    in.IsPrivate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateMedia(ctx, m); err != nil {
		// Clean up stored file on DB failure
		s.store.Delete(ctx, key)
		return nil, fmt.Errorf("failed to create media record: %w", err)
	}

	slog.Info("media uploaded",
		"media_id", m.ID,
		"owner_id", m.OwnerID,
		"media_type", m.MediaType,
		"size", m.Size,
	)
	out := summarizeMedia(m)
	return &out, nil
}

// UpdateFolder renames a folder.
func (s *ContentService) UpdateFolder(ctx context.Context, viewer access.Viewer, id uuid.UUID, in FolderUpdate) (*FolderSummary, error) {
	f, err := s.ownedFolder(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name, err := validFolderName(*in.Name)
		if err != nil {
			return nil, err
		}
		f.Name = name
	}
	f.UpdatedAt = s.now.now()
	if err := s.repo.UpdateFolder(ctx, f); err != nil {
		return nil, conflict(err, "folder with this name already exists here")
	}
	out := summarizeFolder(f)
	return &out, nil
}

func applyVisibility(action string, private, hidden *bool) error {
	switch action {
	case ActionHide:
		*hidden = true
	case ActionUnhide:
		*hidden = false
	case ActionPrivate:
		*private = true
	case ActionPublic:
		*private = false
	default:
		return invalid("unknown visibility action %q", action)
	}
	return nil
}

// SetFolderVisibility applies hide, unhide, private or public to a folder.
func (s *ContentService) SetFolderVisibility(ctx context.Context, viewer access.Viewer, id uuid.UUID, action string) (*FolderSummary, error) {
	f, err := s.ownedFolder(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := applyVisibility(action, &f.IsPrivate, &f.IsHidden); err != nil {
		return nil, err
	}
	f.UpdatedAt = s.now.now()
	if err := s.repo.UpdateFolder(ctx, f); err != nil {
		return nil, err
	}
	out := summarizeFolder(f)
	return &out, nil
}

// SetFolderCover makes an image inside the folder its cover.
func (s *ContentService) SetFolderCover(ctx context.Context, viewer access.Viewer, folderID, mediaID uuid.UUID) (*FolderSummary, error) {
	f, err := s.ownedFolder(ctx, viewer, folderID)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, notFound(err, "media")
	}
	if m.FolderID == nil || *m.FolderID != f.ID {
		return nil, invalid("media is not in this folder")
	}
	if m.MediaType != access.MediaImage {
		return nil, invalid("only images can be set as cover")
	}

	f.CoverMediaID = &m.ID
	f.UpdatedAt = s.now.now()
	if err := s.repo.UpdateFolder(ctx, f); err != nil {
		return nil, err
	}
	out := summarizeFolder(f)
	return &out, nil
}

// DeleteFolder removes a folder and its subfolders. Media items inside
// move to the owner's root.
func (s *ContentService) DeleteFolder(ctx context.Context, viewer access.Viewer, id uuid.UUID) error {
	f, err := s.ownedFolder(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFolder(ctx, f.ID); err != nil {
		return notFound(err, "folder")
	}
	slog.Info("folder deleted", "folder_id", f.ID, "owner_id", f.OwnerID)
	return nil
}

// FolderDetail returns a folder with its visible subfolders and media.
func (s *ContentService) FolderDetail(ctx context.Context, viewer access.Viewer, id uuid.UUID) (*FolderDetail, error) {
	f, err := s.repo.GetFolder(ctx, id)
	if err != nil {
		return nil, notFound(err, "folder")
	}
	ok, err := s.canView(ctx, viewer, f.Access())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, deny(access.ErrPrivate)
	}

	owner, err := s.repo.GetAccount(ctx, f.OwnerID)
	if err != nil {
		return nil, notFound(err, "owner")
	}

	var ancestors []*database.Folder
	for parent, depth := f.ParentID, 0; parent != nil && depth < maxDepth; depth++ {
		p, err := s.repo.GetFolder(ctx, *parent)
		if err != nil {
			return nil, err
		}
		ancestors = append([]*database.Folder{p}, ancestors...)
		parent = p.ParentID
	}

	subfolders, err := s.repo.ListFolders(ctx, viewer, database.FolderFilter{ParentID: &f.ID})
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{FolderID: &f.ID, Sort: database.SortDateAsc})
	if err != nil {
		return nil, err
	}

	return &FolderDetail{
		Folder:     summarizeFolder(f),
		Owner:      summarizeAccount(owner),
		IsOwner:    viewer.Owns(f.OwnerID),
		Ancestors:  summarizeFolders(ancestors),
		Subfolders: summarizeFolders(subfolders),
		Media:      summarizeMediaList(items),
	}, nil
}

// ListFolders returns visible folders, optionally matching q.
func (s *ContentService) ListFolders(ctx context.Context, viewer access.Viewer, q string) ([]FolderSummary, error) {
	folders, err := s.repo.ListFolders(ctx, viewer, database.FolderFilter{Query: strings.TrimSpace(q), Limit: 100})
	if err != nil {
		return nil, err
	}
	return summarizeFolders(folders), nil
}

// --- Media ---

// ownedMedia loads a media item the viewer may modify.
func (s *ContentService) ownedMedia(ctx context.Context, v access.Viewer, id uuid.UUID) (*database.MediaItem, error) {
	m, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, notFound(err, "media")
	}
	if err := requireOwner(v, m.OwnerID); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMedia returns a media item if the viewer may see it, recording the
// viewer's first view.
func (s *ContentService) GetMedia(ctx context.Context, viewer access.Viewer, id uuid.UUID) (*MediaDetail, error) {
	m, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, notFound(err, "media")
	}
	following, err := s.following(ctx, viewer, m.OwnerID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(viewer, m.Access(), following) {
		return nil, deny(access.ErrPrivate)
	}

	owner, err := s.repo.GetAccount(ctx, m.OwnerID)
	if err != nil {
		return nil, notFound(err, "owner")
	}

	d := &MediaDetail{
		Owner:          summarizeAccount(owner),
		IsOwner:        viewer.Owns(m.OwnerID),
		FollowingOwner: following,
	}

	if viewer.Authenticated {
		recorded, err := s.repo.RecordView(ctx, viewer.ID, m.ID)
		if err != nil {
			return nil, err
		}
		if recorded {
			m.ViewsCount++
		}
		if d.IsLiked, err = s.repo.HasLiked(ctx, viewer.ID, m.ID); err != nil {
			return nil, err
		}
		if d.IsFavorited, err = s.repo.HasFavorited(ctx, viewer.ID, m.ID); err != nil {
			return nil, err
		}
	}
	if d.LikesCount, err = s.repo.CountLikes(ctx, m.ID); err != nil {
		return nil, err
	}
	d.Media = summarizeMedia(m)

	d.FolderItems = []MediaSummary{}
	if m.FolderID != nil {
		items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{
			FolderID:  m.FolderID,
			ExcludeID: &m.ID,
			Sort:      database.SortDateAsc,
			Limit:     relatedLimit,
		})
		if err != nil {
			return nil, err
		}
		d.FolderItems = summarizeMediaList(items)
	}

	related, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{
		Type:      m.MediaType,
		ExcludeID: &m.ID,
		Limit:     relatedLimit,
	})
	if err != nil {
		return nil, err
	}
	d.RelatedItems = summarizeMediaList(related)

	return d, nil
}

// UpdateMedia edits a media item's title, description or folder.
func (s *ContentService) UpdateMedia(ctx context.Context, viewer access.Viewer, id uuid.UUID, in MediaUpdate) (*MediaSummary, error) {
	m, err := s.ownedMedia(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalid("title must not be empty")
		}
		m.Title = title
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	switch {
	case in.ToRoot:
		m.FolderID = nil
	case in.FolderID != nil:
		f, err := s.repo.GetFolder(ctx, *in.FolderID)
		if err != nil {
			return nil, notFound(err, "folder")
		}
		if f.OwnerID != m.OwnerID {
			return nil, invalid("folder belongs to another account")
		}
		m.FolderID = &f.ID
	}

	m.UpdatedAt = s.now.now()
	if err := s.repo.UpdateMedia(ctx, m); err != nil {
		return nil, notFound(err, "media")
	}
	out := summarizeMedia(m)
	return &out, nil
}

// SetMediaVisibility applies hide, unhide, private or public to a media item.
func (s *ContentService) SetMediaVisibility(ctx context.Context, viewer access.Viewer, id uuid.UUID, action string) (*MediaSummary, error) {
	m, err := s.ownedMedia(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := applyVisibility(action, &m.IsPrivate, &m.IsHidden); err != nil {
		return nil, err
	}
	m.UpdatedAt = s.now.now()
	if err := s.repo.UpdateMedia(ctx, m); err != nil {
		return nil, notFound(err, "media")
	}
	out := summarizeMedia(m)
	return &out, nil
}

// DeleteMedia removes a media item and, best-effort, its stored file.
func (s *ContentService) DeleteMedia(ctx context.Context, viewer access.Viewer, id uuid.UUID) error {
	m, err := s.ownedMedia(ctx, viewer, id)
	if err != nil {
		return err
	}
	return s.deleteMedia(ctx, m)
}

func (s *ContentService) deleteMedia(ctx context.Context, m *database.MediaItem) error {
	if err := s.repo.DeleteMedia(ctx, m.ID); err != nil {
		return notFound(err, "media")
	}
	if err := s.store.Delete(ctx, m.StorageKey); err != nil {
		slog.Error("failed to delete file from storage", "media_id", m.ID, "error", err)
	}
	slog.Info("media deleted", "media_id", m.ID, "owner_id", m.OwnerID)
	return nil
}

// BulkDelete deletes the listed items the viewer owns and skips the rest.
func (s *ContentService) BulkDelete(ctx context.Context, viewer access.Viewer, in BulkDeleteInput) (*BulkDeleteResult, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}

	res := &BulkDeleteResult{}
	for _, id := range in.Media {
		m, err := s.repo.GetMedia(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !viewer.Owns(m.OwnerID) {
			continue
		}
		if err := s.deleteMedia(ctx, m); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		res.Media++
	}
	for _, id := range in.Folders {
		f, err := s.repo.GetFolder(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !viewer.Owns(f.OwnerID) {
			continue
		}
		if err := s.repo.DeleteFolder(ctx, f.ID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return nil, err
		}
		res.Folders++
	}

	slog.Info("bulk delete", "account_id", viewer.ID, "media", res.Media, "folders", res.Folders)
	return res, nil
}

// dateSince resolves the listing date filter.
func dateSince(filter string, now time.Time) (time.Time, error) {
	switch filter {
	case "", "all":
		return time.Time{}, nil
	case "today":
		return access.DayStart(now), nil
	case "week":
		return now.Add(-7 * 24 * time.Hour), nil
	case "month":
		return now.Add(-30 * 24 * time.Hour), nil
	}
	return time.Time{}, invalid("unknown date filter %q", filter)
}

func validSort(sort string) bool {
	switch sort {
	case "", database.SortDateDesc, database.SortDateAsc, database.SortViews,
		database.SortNameAsc, database.SortNameDesc, database.SortLikes:
		return true
	}
	return false
}

// ListMedia returns one page of visible media items.
func (s *ContentService) ListMedia(ctx context.Context, viewer access.Viewer, q MediaQuery) (*MediaPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, invalid("unknown media type %q", q.Type)
	}
	if !validSort(q.Sort) {
		return nil, invalid("unknown sort %q", q.Sort)
	}
	since, err := dateSince(q.Date, s.now.now())
	if err != nil {
		return nil, err
	}
	page := max(q.Page, 1)

	items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{
		Type:   q.Type,
		Query:  strings.TrimSpace(q.Query),
		Since:  since,
		Sort:   q.Sort,
		Limit:  pageSize + 1,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	out := &MediaPage{Page: page}
	if len(items) > pageSize {
		items = items[:pageSize]
		out.NextPage = ptr(page + 1)
	}
	out.Items = summarizeMediaList(items)
	return out, nil
}

// Feed returns recent, trending and featured media visible to the viewer.
func (s *ContentService) Feed(ctx context.Context, viewer access.Viewer) (*Feed, error) {
	recent, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{Limit: feedRecent})
	if err != nil {
		return nil, err
	}
	trending, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{Sort: database.SortLikes, Limit: feedTrending})
	if err != nil {
		return nil, err
	}
	featured, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{OnlyAdmins: true, Limit: feedFeatured})
	if err != nil {
		return nil, err
	}
	return &Feed{
		Recent:   summarizeMediaList(recent),
		Trending: summarizeMediaList(trending),
		Featured: summarizeMediaList(featured),
	}, nil
}

// Search finds users, media by type and folders matching q.
func (s *ContentService) Search(ctx context.Context, viewer access.Viewer, q string) (*SearchResults, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, invalid("query must not be empty")
	}

	users, err := s.repo.SearchAccounts(ctx, q, uuid.Nil, searchResults)
	if err != nil {
		return nil, err
	}
	res := &SearchResults{Users: summarizeAccounts(users)}

	for _, kind := range []struct {
		t   access.MediaType
		dst *[]MediaSummary
	}{
		{access.MediaImage, &res.Images},
		{access.MediaVideo, &res.Videos},
		{access.MediaDocument, &res.Documents},
	} {
		items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{Type: kind.t, Query: q, Limit: searchResults})
		if err != nil {
			return nil, err
		}
		*kind.dst = summarizeMediaList(items)
	}

	folders, err := s.repo.ListFolders(ctx, viewer, database.FolderFilter{Query: q, Limit: searchResults})
	if err != nil {
		return nil, err
	}
	res.Folders = summarizeFolders(folders)
	return res, nil
}

// Stats returns aggregate server statistics.
func (s *ContentService) Stats(ctx context.Context) (*database.Stats, error) {
	return s.repo.GetStats(ctx)
}
