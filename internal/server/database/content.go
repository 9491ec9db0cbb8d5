package database

import (
	"context"
	"fmt"
	"strings"

	"mediavault/internal/server/access"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Folders ---

const folderSelect = `
	SELECT f.id, f.owner_id, f.parent_id, f.name, f.cover_media_id,
	       f.is_private, f.is_hidden, f.created_at, f.updated_at, o.is_private
	FROM folders f JOIN accounts o ON o.id = f.owner_id`

func scanFolder(row rowScanner) (*Folder, error) {
	f := &Folder{}
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.ParentID,
		&f.Name,
		&f.CoverMediaID,
		&f.IsPrivate,
		&f.IsHidden,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.OwnerPrivate,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFolder inserts a folder. Returns ErrConflict when the owner
// already has a folder with that name under the same parent.
func (r *Repository) CreateFolder(ctx context.Context, f *Folder) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO folders (
			id, owner_id, parent_id, name, cover_media_id,
			is_private, is_hidden, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		f.ID,
		f.OwnerID,
		f.ParentID,
		f.Name,
		f.CoverMediaID,
		f.IsPrivate,
		f.IsHidden,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create folder")
	}
	return nil
}

// GetFolder retrieves a folder by ID.
func (r *Repository) GetFolder(ctx context.Context, id uuid.UUID) (*Folder, error) {
	f, err := scanFolder(r.db.Pool.QueryRow(ctx, folderSelect+" WHERE f.id = $1", id))
	if err != nil {
		return nil, mapError(err, "get folder")
	}
	return f, nil
}

// FindFolder looks up an owner's folder by name under parentID (nil for root).
func (r *Repository) FindFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (*Folder, error) {
	f, err := scanFolder(r.db.Pool.QueryRow(ctx,
		folderSelect+" WHERE f.owner_id = $1 AND f.parent_id IS NOT DISTINCT FROM $2 AND f.name = $3",
		ownerID, parentID, name,
	))
	if err != nil {
		return nil, mapError(err, "find folder")
	}
	return f, nil
}

// UpdateFolder overwrites the mutable fields of a folder.
func (r *Repository) UpdateFolder(ctx context.Context, f *Folder) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE folders SET
			parent_id = $2, name = $3, cover_media_id = $4,
			is_private = $5, is_hidden = $6, updated_at = $7
		WHERE id = $1
	`,
		f.ID,
		f.ParentID,
		f.Name,
		f.CoverMediaID,
		f.IsPrivate,
		f.IsHidden,
		f.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update folder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes a folder and its subfolders. Media inside them is
// kept and detached.
func (r *Repository) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM folders WHERE id = $1", id)
	if err != nil {
		return mapError(err, "delete folder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFolders returns folders visible to the viewer, ordered by name.
func (r *Repository) ListFolders(ctx context.Context, viewer access.Viewer, filter FolderFilter) ([]*Folder, error) {
	pred, args := access.Predicate{Viewer: viewer, ContentAlias: "f", OwnerAlias: "o"}.SQL(nil)
	where := []string{pred}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = append(where, fmt.Sprintf("f.owner_id = $%d", len(args)))
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		where = append(where, fmt.Sprintf("f.parent_id = $%d", len(args)))
	} else if filter.RootOnly {
		where = append(where, "f.parent_id IS NULL")
	}
	if filter.Query != "" {
		args = append(args, likePattern(filter.Query))
		where = append(where, fmt.Sprintf("f.name ILIKE $%d", len(args)))
	}

	query := folderSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY f.name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list folders")
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// --- Media ---

const mediaSelect = `
	SELECT m.id, m.owner_id, m.folder_id, m.title, m.description, m.storage_key,
	       m.original_name, m.media_type, m.size, m.views_count, m.downloads_count,
	       m.is_private, m.is_hidden, m.created_at, m.updated_at, o.is_private
	FROM media_items m JOIN accounts o ON o.id = m.owner_id`

func scanMedia(row rowScanner) (*MediaItem, error) {
	m := &MediaItem{}
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.FolderID,
		&m.Title,
		&m.Description,
		&m.StorageKey,
		&m.OriginalName,
		&m.MediaType,
		&m.Size,
		&m.ViewsCount,
		&m.DownloadsCount,
		&m.IsPrivate,
		&m.IsHidden,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.OwnerPrivate,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMedia inserts a media item.
func (r *Repository) CreateMedia(ctx context.Context, m *MediaItem) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO media_items (
			id, owner_id, folder_id, title, description, storage_key,
			original_name, media_type, size, views_count, downloads_count,
			is_private, is_hidden, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		m.ID,
		m.OwnerID,
		m.FolderID,
		m.Title,
		m.Description,
		m.StorageKey,
		m.OriginalName,
		m.MediaType,
		m.Size,
		m.ViewsCount,
		m.DownloadsCount,
		m.IsPrivate,
		m.IsHidden,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create media")
	}
	return nil
}

// GetMedia retrieves a media item by ID.
func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*MediaItem, error) {
	m, err := scanMedia(r.db.Pool.QueryRow(ctx, mediaSelect+" WHERE m.id = $1", id))
	if err != nil {
		return nil, mapError(err, "get media")
	}
	return m, nil
}

// UpdateMedia overwrites the editable fields of a media item. Counters
// are maintained by their own operations.
func (r *Repository) UpdateMedia(ctx context.Context, m *MediaItem) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE media_items SET
			folder_id = $2, title = $3, description = $4,
			is_private = $5, is_hidden = $6, updated_at = $7
		WHERE id = $1
	`,
		m.ID,
		m.FolderID,
		m.Title,
		m.Description,
		m.IsPrivate,
		m.IsHidden,
		m.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update media")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMedia removes a media item record.
func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM media_items WHERE id = $1", id)
	if err != nil {
		return mapError(err, "delete media")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMedia returns media items visible to the viewer.
func (r *Repository) ListMedia(ctx context.Context, viewer access.Viewer, filter MediaFilter) ([]*MediaItem, error) {
	pred, args := access.Predicate{Viewer: viewer, ContentAlias: "m", OwnerAlias: "o"}.SQL(nil)
	where := []string{pred}

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.OwnerID != nil {
		add("m.owner_id = $%d", *filter.OwnerID)
	}
	if filter.FolderID != nil {
		add("m.folder_id = $%d", *filter.FolderID)
	} else if filter.NoFolder {
		where = append(where, "m.folder_id IS NULL")
	}
	if filter.Type != "" {
		add("m.media_type = $%d", filter.Type)
	}
	if filter.Query != "" {
		add("(m.title ILIKE $%[1]d OR m.original_name ILIKE $%[1]d)", likePattern(filter.Query))
	}
	if !filter.Since.IsZero() {
		add("m.created_at >= $%d", filter.Since)
	}
	if filter.HiddenOnly {
		where = append(where, "m.is_hidden")
	}
	if filter.OnlyAdmins {
		where = append(where, "o.is_superuser")
	}
	if filter.ExcludeID != nil {
		add("m.id <> $%d", *filter.ExcludeID)
	}

	query := mediaSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY " + mediaOrder(filter.Sort)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list media")
	}
	return collectMedia(rows)
}

func mediaOrder(sort string) string {
	switch sort {
	case SortDateAsc:
		return "m.created_at ASC, m.id"
	case SortViews:
		return "m.views_count DESC, m.created_at DESC"
	case SortNameAsc:
		return "m.title ASC, m.id"
	case SortNameDesc:
		return "m.title DESC, m.id"
	case SortLikes:
		return "(SELECT COUNT(*) FROM likes l WHERE l.media_id = m.id) DESC, m.created_at DESC"
	}
	return "m.created_at DESC, m.id"
}

func collectMedia(rows pgx.Rows) ([]*MediaItem, error) {
	defer rows.Close()
	var items []*MediaItem
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// RecordView stores the first view of a media item by an account and
// bumps views_count. Returns false if the account had already viewed it.
func (r *Repository) RecordView(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO media_views (account_id, media_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, accountID, mediaID)
	if err != nil {
		return false, mapError(err, "record view")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		"UPDATE media_items SET views_count = views_count + 1 WHERE id = $1", mediaID); err != nil {
		return false, mapError(err, "increment view count")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit view: %w", err)
	}
	return true, nil
}
