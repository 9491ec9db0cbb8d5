package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaTitles(items []MediaSummary) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Title)
	}
	return out
}

func TestUploadMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader)
	_, plainV := f.user(t, "plain")

	t.Run("stores file and detects type", func(t *testing.T) {
		m := f.upload(t, ownerV, "Holiday.MP4")
		assert.Equal(t, access.MediaVideo, m.MediaType)
		assert.Equal(t, "Holiday.MP4", m.Title)
		assert.Equal(t, int64(len("content of Holiday.MP4")), m.Size)

		stored, err := f.repo.GetMedia(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID.String()+"/"+m.ID.String()+".mp4", stored.StorageKey)

		data, err := os.ReadFile(filepath.Join(f.store.Root(), filepath.FromSlash(stored.StorageKey)))
		require.NoError(t, err)
		assert.Equal(t, "content of Holiday.MP4", string(data))
	})

	t.Run("uses given title", func(t *testing.T) {
		m, err := f.content.UploadMedia(ctx, ownerV, UploadInput{
			Filename: "x.png",
			Title:    "  Sunset ",
			Body:     strings.NewReader("png"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Sunset", m.Title)
		assert.Equal(t, access.MediaImage, m.MediaType)
	})

	t.Run("requires uploader", func(t *testing.T) {
		_, err := f.content.UploadMedia(ctx, plainV, UploadInput{Filename: "a.jpg", Body: strings.NewReader("x")})
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = f.content.UploadMedia(ctx, access.Anonymous(), UploadInput{Filename: "a.jpg", Body: strings.NewReader("x")})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		big := strings.Repeat("x", 1<<20+1)
		_, err := f.content.UploadMedia(ctx, ownerV, UploadInput{Filename: "big.bin", Body: strings.NewReader(big)})
		assert.ErrorIs(t, err, ErrFileTooLarge)

		_, err = f.content.UploadMedia(ctx, ownerV, UploadInput{Filename: "big.bin", Size: 2 << 20, Body: strings.NewReader("x")})
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("rejects foreign folder", func(t *testing.T) {
		_, otherV := f.user(t, "other", asUploader)
		folder, err := f.content.CreateFolder(ctx, otherV, FolderInput{Name: "theirs"})
		require.NoError(t, err)

		_, err = f.content.UploadMedia(ctx, ownerV, UploadInput{
			Filename: "a.jpg",
			FolderID: &folder.ID,
			Body:     strings.NewReader("x"),
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestUploadMedia_RelativePathCreatesFolders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader)

	first, err := f.content.UploadMedia(ctx, ownerV, UploadInput{
		Filename:     "a.jpg",
		RelativePath: "trip/day1/a.jpg",
		Body:         strings.NewReader("a"),
	})
	require.NoError(t, err)
	second, err := f.content.UploadMedia(ctx, ownerV, UploadInput{
		Filename:     "b.jpg",
		RelativePath: "trip/day1/b.jpg",
		Body:         strings.NewReader("b"),
	})
	require.NoError(t, err)
	third, err := f.content.UploadMedia(ctx, ownerV, UploadInput{
		Filename:     "c.jpg",
		RelativePath: "trip\\c.jpg",
		Body:         strings.NewReader("c"),
	})
	require.NoError(t, err)

	require.NotNil(t, first.FolderID)
	assert.Equal(t, first.FolderID, second.FolderID, "existing folders are reused")
	assert.Equal(t, "a.jpg", first.Title)

	day1, err := f.repo.GetFolder(ctx, *first.FolderID)
	require.NoError(t, err)
	assert.Equal(t, "day1", day1.Name)
	require.NotNil(t, day1.ParentID)

	trip, err := f.repo.GetFolder(ctx, *day1.ParentID)
	require.NoError(t, err)
	assert.Equal(t, "trip", trip.Name)
	assert.Nil(t, trip.ParentID)
	assert.Equal(t, owner.ID, trip.OwnerID)
	assert.Equal(t, &trip.ID, third.FolderID)

	_, err = f.content.UploadMedia(ctx, ownerV, UploadInput{
		Filename:     "d.jpg",
		RelativePath: "trip/../d.jpg",
		Body:         strings.NewReader("d"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFolders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, otherV := f.user(t, "other", asUploader)

	root, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "Albums"})
	require.NoError(t, err)

	t.Run("name unique per parent", func(t *testing.T) {
		_, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "Albums"})
		assert.ErrorIs(t, err, ErrConflict)

		_, err = f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "Albums", ParentID: &root.ID})
		assert.NoError(t, err)

		_, err = f.content.CreateFolder(ctx, otherV, FolderInput{Name: "Albums"})
		assert.NoError(t, err)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "  ", "a/b", "..", strings.Repeat("n", 256)} {
			_, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: name})
			assert.ErrorIs(t, err, ErrInvalidInput, "name %q", name)
		}
	})

	t.Run("parent must be owned", func(t *testing.T) {
		_, err := f.content.CreateFolder(ctx, otherV, FolderInput{Name: "x", ParentID: &root.ID})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rename owner only", func(t *testing.T) {
		name := "Photos"
		_, err := f.content.UpdateFolder(ctx, otherV, root.ID, FolderUpdate{Name: &name})
		assert.ErrorIs(t, err, ErrForbidden)

		updated, err := f.content.UpdateFolder(ctx, ownerV, root.ID, FolderUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Photos", updated.Name)
	})
}

func TestFolderDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader)
	_, strangerV := f.user(t, "stranger")

	top, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "top"})
	require.NoError(t, err)
	mid, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "mid", ParentID: &top.ID})
	require.NoError(t, err)
	leaf, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "leaf", ParentID: &mid.ID})
	require.NoError(t, err)
	_, err = f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "secret", ParentID: &mid.ID, IsPrivate: true})
	require.NoError(t, err)

	f.upload(t, ownerV, "one.jpg", inFolder(mid.ID))
	f.upload(t, ownerV, "two.jpg", inFolder(mid.ID), privateUpload)

	d, err := f.content.FolderDetail(ctx, strangerV, mid.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, []string{d.Ancestors[0].Name})
	require.Len(t, d.Subfolders, 1)
	assert.Equal(t, leaf.ID, d.Subfolders[0].ID)
	assert.Equal(t, []string{"one.jpg"}, mediaTitles(d.Media))
	assert.False(t, d.IsOwner)
	assert.Equal(t, owner.ID, d.Owner.ID)

	d, err = f.content.FolderDetail(ctx, ownerV, leaf.ID)
	require.NoError(t, err)
	require.Len(t, d.Ancestors, 2)
	assert.Equal(t, "top", d.Ancestors[0].Name)
	assert.Equal(t, "mid", d.Ancestors[1].Name)

	d, err = f.content.FolderDetail(ctx, ownerV, mid.ID)
	require.NoError(t, err)
	assert.Len(t, d.Subfolders, 2)
	assert.Equal(t, []string{"one.jpg", "two.jpg"}, mediaTitles(d.Media))

	_, err = f.content.SetFolderVisibility(ctx, ownerV, mid.ID, ActionPrivate)
	require.NoError(t, err)
	_, err = f.content.FolderDetail(ctx, strangerV, mid.ID)
	requireDenial(t, err, access.ErrPrivate)

	_, err = f.content.FolderDetail(ctx, strangerV, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetFolderCover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, otherV := f.user(t, "other", asUploader)

	folder, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "album"})
	require.NoError(t, err)
	image := f.upload(t, ownerV, "cover.jpg", inFolder(folder.ID))
	video := f.upload(t, ownerV, "clip.mp4", inFolder(folder.ID))
	outside := f.upload(t, ownerV, "loose.jpg")

	_, err = f.content.SetFolderCover(ctx, ownerV, folder.ID, video.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.content.SetFolderCover(ctx, ownerV, folder.ID, outside.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.content.SetFolderCover(ctx, otherV, folder.ID, image.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.content.SetFolderCover(ctx, ownerV, folder.ID, image.ID)
	require.NoError(t, err)
	assert.Equal(t, &image.ID, updated.CoverMediaID)
}

func TestGetMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader)
	_, viewer := f.user(t, "viewer")

	folder, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "album"})
	require.NoError(t, err)
	item := f.upload(t, ownerV, "a.jpg", inFolder(folder.ID))
	sibling := f.upload(t, ownerV, "b.jpg", inFolder(folder.ID))
	f.upload(t, ownerV, "c.mp4")

	t.Run("anonymous views are not counted", func(t *testing.T) {
		d, err := f.content.GetMedia(ctx, access.Anonymous(), item.ID)
		require.NoError(t, err)
		assert.Zero(t, d.Media.ViewsCount)
	})

	t.Run("one view per account", func(t *testing.T) {
		d, err := f.content.GetMedia(ctx, viewer, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, d.Media.ViewsCount)

		d, err = f.content.GetMedia(ctx, viewer, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, d.Media.ViewsCount)
	})

	t.Run("related and folder items", func(t *testing.T) {
		d, err := f.content.GetMedia(ctx, viewer, item.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, d.Owner.ID)
		assert.Equal(t, []string{"b.jpg"}, mediaTitles(d.FolderItems))
		assert.Equal(t, []string{"b.jpg"}, mediaTitles(d.RelatedItems))
		assert.Equal(t, sibling.ID, d.FolderItems[0].ID)
	})

	t.Run("like state", func(t *testing.T) {
		_, err := f.social.ToggleLike(ctx, viewer, item.ID)
		require.NoError(t, err)

		d, err := f.content.GetMedia(ctx, viewer, item.ID)
		require.NoError(t, err)
		assert.True(t, d.IsLiked)
		assert.False(t, d.IsFavorited)
		assert.Equal(t, 1, d.LikesCount)
	})

	t.Run("private account hides content", func(t *testing.T) {
		owner.IsPrivate = true
		require.NoError(t, f.repo.UpdateAccount(ctx, owner))

		_, err := f.content.GetMedia(ctx, viewer, item.ID)
		requireDenial(t, err, access.ErrPrivate)

		d, err := f.content.GetMedia(ctx, ownerV, item.ID)
		require.NoError(t, err)
		assert.True(t, d.IsOwner)
	})
}

func TestUpdateAndVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, otherV := f.user(t, "other", asUploader)
	_, adminV := f.user(t, "root", asAdmin)

	folder, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "album"})
	require.NoError(t, err)
	foreign, err := f.content.CreateFolder(ctx, otherV, FolderInput{Name: "foreign"})
	require.NoError(t, err)
	item := f.upload(t, ownerV, "a.jpg")

	title, desc := "New title", "  described "
	updated, err := f.content.UpdateMedia(ctx, ownerV, item.ID, MediaUpdate{
		Title:       &title,
		Description: &desc,
		FolderID:    &folder.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "described", updated.Description)
	assert.Equal(t, &folder.ID, updated.FolderID)

	_, err = f.content.UpdateMedia(ctx, ownerV, item.ID, MediaUpdate{FolderID: &foreign.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err = f.content.UpdateMedia(ctx, ownerV, item.ID, MediaUpdate{ToRoot: true})
	require.NoError(t, err)
	assert.Nil(t, updated.FolderID)

	_, err = f.content.UpdateMedia(ctx, otherV, item.ID, MediaUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.content.UpdateMedia(ctx, adminV, item.ID, MediaUpdate{Title: &title})
	assert.NoError(t, err)

	for _, tc := range []struct {
		action          string
		private, hidden bool
	}{
		{ActionHide, false, true},
		{ActionPrivate, true, true},
		{ActionUnhide, true, false},
		{ActionPublic, false, false},
	} {
		m, err := f.content.SetMediaVisibility(ctx, ownerV, item.ID, tc.action)
		require.NoError(t, err, tc.action)
		assert.Equal(t, tc.private, m.IsPrivate, tc.action)
		assert.Equal(t, tc.hidden, m.IsHidden, tc.action)
	}

	_, err = f.content.SetMediaVisibility(ctx, ownerV, item.ID, "explode")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteMediaAndBulkDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, otherV := f.user(t, "other", asUploader)

	item := f.upload(t, ownerV, "a.jpg")
	stored, err := f.repo.GetMedia(ctx, item.ID)
	require.NoError(t, err)
	path := filepath.Join(f.store.Root(), filepath.FromSlash(stored.StorageKey))

	require.ErrorIs(t, f.content.DeleteMedia(ctx, otherV, item.ID), ErrForbidden)
	require.NoError(t, f.content.DeleteMedia(ctx, ownerV, item.ID))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "stored file should be removed")
	assert.ErrorIs(t, f.content.DeleteMedia(ctx, ownerV, item.ID), ErrNotFound)

	mine1 := f.upload(t, ownerV, "m1.jpg")
	mine2 := f.upload(t, ownerV, "m2.jpg")
	theirs := f.upload(t, otherV, "t1.jpg")
	myFolder, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "mine"})
	require.NoError(t, err)
	theirFolder, err := f.content.CreateFolder(ctx, otherV, FolderInput{Name: "theirs"})
	require.NoError(t, err)

	res, err := f.content.BulkDelete(ctx, ownerV, BulkDeleteInput{
		Media:   []uuid.UUID{mine1.ID, mine2.ID, theirs.ID, uuid.New()},
		Folders: []uuid.UUID{myFolder.ID, theirFolder.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, &BulkDeleteResult{Media: 2, Folders: 1}, res)

	_, err = f.repo.GetMedia(ctx, theirs.ID)
	assert.NoError(t, err)
	_, err = f.repo.GetFolder(ctx, theirFolder.ID)
	assert.NoError(t, err)
}

func TestDeleteFolderMovesMediaToRoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)

	folder, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "album"})
	require.NoError(t, err)
	child, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "child", ParentID: &folder.ID})
	require.NoError(t, err)
	item := f.upload(t, ownerV, "a.jpg", inFolder(child.ID))

	require.NoError(t, f.content.DeleteFolder(ctx, ownerV, folder.ID))

	_, err = f.repo.GetFolder(ctx, child.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	m, err := f.repo.GetMedia(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, m.FolderID)
}

func TestListMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, viewer := f.user(t, "viewer")

	f.now = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	f.upload(t, ownerV, "old.jpg")
	f.now = time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	f.upload(t, ownerV, "week.mp4")
	f.now = time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	f.upload(t, ownerV, "today.jpg")
	f.upload(t, ownerV, "hidden.jpg", privateUpload)

	tests := []struct {
		name  string
		query MediaQuery
		want  []string
	}{
		{"newest first", MediaQuery{}, []string{"today.jpg", "week.mp4", "old.jpg"}},
		{"oldest first", MediaQuery{Sort: database.SortDateAsc}, []string{"old.jpg", "week.mp4", "today.jpg"}},
		{"by type", MediaQuery{Type: access.MediaImage}, []string{"today.jpg", "old.jpg"}},
		{"today", MediaQuery{Date: "today"}, []string{"today.jpg"}},
		{"week", MediaQuery{Date: "week"}, []string{"today.jpg", "week.mp4"}},
		{"month", MediaQuery{Date: "month"}, []string{"today.jpg", "week.mp4"}},
		{"search", MediaQuery{Query: "WEEK"}, []string{"week.mp4"}},
		{"name descending", MediaQuery{Sort: database.SortNameDesc}, []string{"week.mp4", "today.jpg", "old.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.content.ListMedia(ctx, viewer, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mediaTitles(page.Items))
			assert.Nil(t, page.NextPage)
		})
	}

	t.Run("invalid filters", func(t *testing.T) {
		_, err := f.content.ListMedia(ctx, viewer, MediaQuery{Sort: "random"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.content.ListMedia(ctx, viewer, MediaQuery{Date: "year"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = f.content.ListMedia(ctx, viewer, MediaQuery{Type: "AUDIO"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestListMedia_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)

	for i := range pageSize + 5 {
		f.upload(t, ownerV, fmt.Sprintf("img%02d.jpg", i))
	}

	page, err := f.content.ListMedia(ctx, access.Anonymous(), MediaQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Items, pageSize)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 2, *page.NextPage)

	page, err = f.content.ListMedia(ctx, access.Anonymous(), MediaQuery{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Nil(t, page.NextPage)
	assert.Equal(t, "img04.jpg", page.Items[0].Title)
}

func TestFeedAndSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, adminV := f.user(t, "root", asAdmin)
	_, viewer := f.user(t, "ocean_fan")

	f.upload(t, ownerV, "ocean.jpg")
	popular := f.upload(t, ownerV, "ocean.mp4")
	f.upload(t, ownerV, "ocean.pdf")
	f.upload(t, adminV, "staff pick.png")
	f.upload(t, ownerV, "ocean secret.jpg", privateUpload)
	_, err := f.content.CreateFolder(ctx, ownerV, FolderInput{Name: "Ocean trips"})
	require.NoError(t, err)

	_, err = f.social.ToggleLike(ctx, viewer, popular.ID)
	require.NoError(t, err)

	feed, err := f.content.Feed(ctx, viewer)
	require.NoError(t, err)
	assert.Len(t, feed.Recent, 4)
	assert.Equal(t, "ocean.mp4", feed.Trending[0].Title)
	assert.Equal(t, []string{"staff pick.png"}, mediaTitles(feed.Featured))

	res, err := f.content.Search(ctx, viewer, "ocean")
	require.NoError(t, err)
	assert.Equal(t, []string{"ocean.jpg"}, mediaTitles(res.Images))
	assert.Equal(t, []string{"ocean.mp4"}, mediaTitles(res.Videos))
	assert.Equal(t, []string{"ocean.pdf"}, mediaTitles(res.Documents))
	require.Len(t, res.Folders, 1)
	assert.Equal(t, "Ocean trips", res.Folders[0].Name)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "ocean_fan", res.Users[0].Username)

	_, err = f.content.Search(ctx, viewer, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
