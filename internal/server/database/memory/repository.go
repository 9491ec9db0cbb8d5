// Package memory implements the media vault repository in process memory.
// It backs the server when no database is configured and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

type pair struct {
	a, b uuid.UUID
}

// Repository holds every table in maps guarded by a single mutex.
type Repository struct {
	mu sync.RWMutex

	accounts  map[uuid.UUID]*database.Account
	allowed   map[pair]struct{} // owner, account
	follows   map[pair]*database.Follow
	folders   map[uuid.UUID]*database.Folder
	media     map[uuid.UUID]*database.MediaItem
	downloads map[uuid.UUID]*database.DownloadRecord
	views     map[pair]time.Time // account, media
	likes     map[pair]time.Time
	favorites map[pair]time.Time
	reviews   map[uuid.UUID]*database.Review
	notes     map[uuid.UUID]*database.Notification
	requests  map[uuid.UUID]*database.UploadRequest
	problems  map[uuid.UUID]*database.ReportedProblem
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		accounts:  make(map[uuid.UUID]*database.Account),
		allowed:   make(map[pair]struct{}),
		follows:   make(map[pair]*database.Follow),
		folders:   make(map[uuid.UUID]*database.Folder),
		media:     make(map[uuid.UUID]*database.MediaItem),
		downloads: make(map[uuid.UUID]*database.DownloadRecord),
		views:     make(map[pair]time.Time),
		likes:     make(map[pair]time.Time),
		favorites: make(map[pair]time.Time),
		reviews:   make(map[uuid.UUID]*database.Review),
		notes:     make(map[uuid.UUID]*database.Notification),
		requests:  make(map[uuid.UUID]*database.UploadRequest),
		problems:  make(map[uuid.UUID]*database.ReportedProblem),
	}
}

// HealthCheck always succeeds.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return nil
}

// --- Accounts ---

func (r *Repository) CreateAccount(ctx context.Context, a *database.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[a.ID]; exists {
		return database.ErrConflict
	}
	if r.identityTaken(a) {
		return database.ErrConflict
	}
	c := *a
	r.accounts[a.ID] = &c
	return nil
}

// identityTaken reports whether another account uses a's username or email.
func (r *Repository) identityTaken(a *database.Account) bool {
	for _, other := range r.accounts {
		if other.ID == a.ID {
			continue
		}
		if other.Username == a.Username || strings.EqualFold(other.Email, a.Email) {
			return true
		}
	}
	return false
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *Repository) GetAccountByLogin(ctx context.Context, login string) (*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.Username == login || strings.EqualFold(a.Email, login) {
			c := *a
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *Repository) UpdateAccount(ctx context.Context, a *database.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.accounts[a.ID]
	if !ok {
		return database.ErrNotFound
	}
	if r.identityTaken(a) {
		return database.ErrConflict
	}
	c := *a
	c.CreatedAt = old.CreatedAt
	r.accounts[a.ID] = &c
	return nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.accounts, id)

	for k := range r.allowed {
		if k.a == id || k.b == id {
			delete(r.allowed, k)
		}
	}
	for k := range r.follows {
		if k.a == id || k.b == id {
			delete(r.follows, k)
		}
	}
	for fid, f := range r.folders {
		if f.OwnerID == id {
			delete(r.folders, fid)
		}
	}
	for mid, m := range r.media {
		if m.OwnerID == id {
			r.deleteMediaLocked(mid)
		}
	}
	for _, m := range []map[pair]time.Time{r.views, r.likes, r.favorites} {
		for k := range m {
			if k.a == id {
				delete(m, k)
			}
		}
	}
	for did, d := range r.downloads {
		if d.AccountID == id {
			delete(r.downloads, did)
		}
	}
	for rid, rv := range r.reviews {
		if rv.AccountID == id {
			delete(r.reviews, rid)
		}
	}
	for nid, n := range r.notes {
		if n.RecipientID == id || (n.SenderID != nil && *n.SenderID == id) {
			delete(r.notes, nid)
		}
	}
	for rid, u := range r.requests {
		if u.AccountID == id {
			delete(r.requests, rid)
		}
	}
	for pid, p := range r.problems {
		if p.AccountID == id {
			delete(r.problems, pid)
		}
	}
	return nil
}

func (r *Repository) SearchAccounts(ctx context.Context, q string, exclude uuid.UUID, limit int) ([]*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.Account
	for _, a := range r.accounts {
		if a.ID == exclude {
			continue
		}
		if contains(a.Username, q) || contains(a.Bio, q) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return truncate(out, limit), nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*database.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) SetAllowedDownloaders(ctx context.Context, ownerID uuid.UUID, accountIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range accountIDs {
		if _, ok := r.accounts[id]; !ok {
			return database.ErrNotFound
		}
	}
	for k := range r.allowed {
		if k.a == ownerID {
			delete(r.allowed, k)
		}
	}
	for _, id := range accountIDs {
		r.allowed[pair{ownerID, id}] = struct{}{}
	}
	return nil
}

func (r *Repository) ListAllowedDownloaders(ctx context.Context, ownerID uuid.UUID) ([]*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.Account
	for k := range r.allowed {
		if k.a != ownerID {
			continue
		}
		if a, ok := r.accounts[k.b]; ok {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *Repository) IsAllowedDownloader(ctx context.Context, ownerID, accountID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.allowed[pair{ownerID, accountID}]
	return ok, nil
}

// --- Follows ---

func (r *Repository) GetFollow(ctx context.Context, followerID, followedID uuid.UUID) (*database.Follow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.follows[pair{followerID, followedID}]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (r *Repository) CreateFollow(ctx context.Context, f *database.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pair{f.FollowerID, f.FollowedID}
	if _, ok := r.follows[k]; ok {
		return database.ErrConflict
	}
	c := *f
	r.follows[k] = &c
	return nil
}

func (r *Repository) DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pair{followerID, followedID}
	if _, ok := r.follows[k]; !ok {
		return database.ErrNotFound
	}
	delete(r.follows, k)
	return nil
}

func (r *Repository) AcceptFollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.follows[pair{followerID, followedID}]
	if !ok || f.Accepted {
		return database.ErrNotFound
	}
	f.Accepted = true
	return nil
}

func (r *Repository) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.followingLocked(followerID, followedID), nil
}

func (r *Repository) followingLocked(followerID, followedID uuid.UUID) bool {
	f, ok := r.follows[pair{followerID, followedID}]
	return ok && f.Accepted
}

func (r *Repository) ListFollowers(ctx context.Context, followedID uuid.UUID, accepted bool) ([]*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var edges []*database.Follow
	for _, f := range r.follows {
		if f.FollowedID == followedID && f.Accepted == accepted {
			edges = append(edges, f)
		}
	}
	return r.edgeAccounts(edges, func(f *database.Follow) uuid.UUID { return f.FollowerID }), nil
}

func (r *Repository) ListFollowing(ctx context.Context, followerID uuid.UUID) ([]*database.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var edges []*database.Follow
	for _, f := range r.follows {
		if f.FollowerID == followerID && f.Accepted {
			edges = append(edges, f)
		}
	}
	return r.edgeAccounts(edges, func(f *database.Follow) uuid.UUID { return f.FollowedID }), nil
}

func (r *Repository) edgeAccounts(edges []*database.Follow, pick func(*database.Follow) uuid.UUID) []*database.Account {
	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt.After(edges[j].CreatedAt) })
	out := make([]*database.Account, 0, len(edges))
	for _, f := range edges {
		if a, ok := r.accounts[pick(f)]; ok {
			c := *a
			out = append(out, &c)
		}
	}
	return out
}

// --- Folders ---

func (r *Repository) CreateFolder(ctx context.Context, f *database.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[f.OwnerID]; !ok {
		return database.ErrNotFound
	}
	if f.ParentID != nil {
		if _, ok := r.folders[*f.ParentID]; !ok {
			return database.ErrNotFound
		}
	}
	if r.siblingNamed(f) != nil {
		return database.ErrConflict
	}
	c := *f
	r.folders[f.ID] = &c
	return nil
}

// siblingNamed returns another folder of f's owner under f's parent with
// f's name.
func (r *Repository) siblingNamed(f *database.Folder) *database.Folder {
	for _, other := range r.folders {
		if other.ID != f.ID && other.OwnerID == f.OwnerID &&
			sameParent(other.ParentID, f.ParentID) && other.Name == f.Name {
			return other
		}
	}
	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *Repository) GetFolder(ctx context.Context, id uuid.UUID) (*database.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.folders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r.folderCopy(f), nil
}

func (r *Repository) folderCopy(f *database.Folder) *database.Folder {
	c := *f
	if o, ok := r.accounts[f.OwnerID]; ok {
		c.OwnerPrivate = o.IsPrivate
	}
	return &c
}

func (r *Repository) FindFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (*database.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f := r.siblingNamed(&database.Folder{OwnerID: ownerID, ParentID: parentID, Name: name})
	if f == nil {
		return nil, database.ErrNotFound
	}
	return r.folderCopy(f), nil
}

func (r *Repository) UpdateFolder(ctx context.Context, f *database.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.folders[f.ID]
	if !ok {
		return database.ErrNotFound
	}
	if r.siblingNamed(f) != nil {
		return database.ErrConflict
	}
	c := *f
	c.OwnerID = old.OwnerID
	c.CreatedAt = old.CreatedAt
	r.folders[f.ID] = &c
	return nil
}

func (r *Repository) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.folders[id]; !ok {
		return database.ErrNotFound
	}
	r.deleteFolderLocked(id)
	return nil
}

// deleteFolderLocked removes a folder and its subfolders. Media items in
// them move to the owner's root.
func (r *Repository) deleteFolderLocked(id uuid.UUID) {
	delete(r.folders, id)
	for _, m := range r.media {
		if m.FolderID != nil && *m.FolderID == id {
			m.FolderID = nil
		}
	}
	for cid, c := range r.folders {
		if c.ParentID != nil && *c.ParentID == id {
			r.deleteFolderLocked(cid)
		}
	}
}

func (r *Repository) ListFolders(ctx context.Context, viewer access.Viewer, filter database.FolderFilter) ([]*database.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.Folder
	for _, f := range r.folders {
		if filter.OwnerID != nil && f.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.ParentID != nil {
			if f.ParentID == nil || *f.ParentID != *filter.ParentID {
				continue
			}
		} else if filter.RootOnly && f.ParentID != nil {
			continue
		}
		if filter.Query != "" && !contains(f.Name, filter.Query) {
			continue
		}
		c := r.folderCopy(f)
		if !r.visibleLocked(viewer, c.Access()) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return truncate(out, filter.Limit), nil
}

func (r *Repository) visibleLocked(viewer access.Viewer, c access.Content) bool {
	following := viewer.Authenticated && r.followingLocked(viewer.ID, c.OwnerID)
	return access.CanView(viewer, c, following)
}

// --- Media ---

func (r *Repository) CreateMedia(ctx context.Context, m *database.MediaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[m.OwnerID]; !ok {
		return database.ErrNotFound
	}
	if _, exists := r.media[m.ID]; exists {
		return database.ErrConflict
	}
	c := *m
	r.media[m.ID] = &c
	return nil
}

func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*database.MediaItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.media[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r.mediaCopy(m), nil
}

func (r *Repository) mediaCopy(m *database.MediaItem) *database.MediaItem {
	c := *m
	if o, ok := r.accounts[m.OwnerID]; ok {
		c.OwnerPrivate = o.IsPrivate
	}
	return &c
}

func (r *Repository) UpdateMedia(ctx context.Context, m *database.MediaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.media[m.ID]
	if !ok {
		return database.ErrNotFound
	}
	old.FolderID = m.FolderID
	old.Title = m.Title
	old.Description = m.Description
	old.IsPrivate = m.IsPrivate
	old.IsHidden = m.IsHidden
	old.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.media[id]; !ok {
		return database.ErrNotFound
	}
	r.deleteMediaLocked(id)
	return nil
}

func (r *Repository) deleteMediaLocked(id uuid.UUID) {
	delete(r.media, id)
	for _, m := range []map[pair]time.Time{r.views, r.likes, r.favorites} {
		for k := range m {
			if k.b == id {
				delete(m, k)
			}
		}
	}
	for did, d := range r.downloads {
		if d.MediaID == id {
			delete(r.downloads, did)
		}
	}
	for rid, rv := range r.reviews {
		if rv.MediaID == id {
			delete(r.reviews, rid)
		}
	}
	for _, f := range r.folders {
		if f.CoverMediaID != nil && *f.CoverMediaID == id {
			f.CoverMediaID = nil
		}
	}
}

func (r *Repository) ListMedia(ctx context.Context, viewer access.Viewer, filter database.MediaFilter) ([]*database.MediaItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.MediaItem
	for _, m := range r.media {
		if !r.mediaMatches(m, filter) {
			continue
		}
		c := r.mediaCopy(m)
		if !r.visibleLocked(viewer, c.Access()) {
			continue
		}
		out = append(out, c)
	}

	r.sortMedia(out, filter.Sort)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	return truncate(out, filter.Limit), nil
}

func (r *Repository) mediaMatches(m *database.MediaItem, filter database.MediaFilter) bool {
	if filter.OwnerID != nil && m.OwnerID != *filter.OwnerID {
		return false
	}
	if filter.FolderID != nil {
		if m.FolderID == nil || *m.FolderID != *filter.FolderID {
			return false
		}
	} else if filter.NoFolder && m.FolderID != nil {
		return false
	}
	if filter.Type != "" && m.MediaType != filter.Type {
		return false
	}
	if filter.Query != "" && !contains(m.Title, filter.Query) && !contains(m.OriginalName, filter.Query) {
		return false
	}
	if !filter.Since.IsZero() && m.CreatedAt.Before(filter.Since) {
		return false
	}
	if filter.HiddenOnly && !m.IsHidden {
		return false
	}
	if filter.OnlyAdmins {
		if o, ok := r.accounts[m.OwnerID]; !ok || !o.IsSuperuser {
			return false
		}
	}
	if filter.ExcludeID != nil && m.ID == *filter.ExcludeID {
		return false
	}
	return true
}

func (r *Repository) sortMedia(items []*database.MediaItem, order string) {
	byID := func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() }
	newest := func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return byID(i, j)
	}

	var less func(i, j int) bool
	switch order {
	case database.SortDateAsc:
		less = func(i, j int) bool {
			if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			}
			return byID(i, j)
		}
	case database.SortViews:
		less = func(i, j int) bool {
			if items[i].ViewsCount != items[j].ViewsCount {
				return items[i].ViewsCount > items[j].ViewsCount
			}
			return newest(i, j)
		}
	case database.SortNameAsc, database.SortNameDesc:
		desc := order == database.SortNameDesc
		less = func(i, j int) bool {
			if items[i].Title != items[j].Title {
				return (items[i].Title < items[j].Title) != desc
			}
			return byID(i, j)
		}
	case database.SortLikes:
		counts := make(map[uuid.UUID]int)
		for k := range r.likes {
			counts[k.b]++
		}
		less = func(i, j int) bool {
			if ci, cj := counts[items[i].ID], counts[items[j].ID]; ci != cj {
				return ci > cj
			}
			return newest(i, j)
		}
	default:
		less = newest
	}
	sort.SliceStable(items, less)
}

func (r *Repository) RecordView(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.media[mediaID]
	if !ok {
		return false, database.ErrNotFound
	}
	k := pair{accountID, mediaID}
	if _, seen := r.views[k]; seen {
		return false, nil
	}
	r.views[k] = time.Now()
	m.ViewsCount++
	return true, nil
}

func contains(s, q string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(q))
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
