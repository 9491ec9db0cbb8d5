package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, r *Repository, username string, private bool) *database.Account {
	t.Helper()
	a := &database.Account{
		ID:             uuid.New(),
		Username:       username,
		Email:          username + "@example.com",
		IsPrivate:      private,
		DownloadPolicy: access.PolicyOpen,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, r.CreateAccount(context.Background(), a))
	return a
}

func newMedia(t *testing.T, r *Repository, owner *database.Account, title string, mutate func(*database.MediaItem)) *database.MediaItem {
	t.Helper()
	m := &database.MediaItem{
		ID:           uuid.New(),
		OwnerID:      owner.ID,
		Title:        title,
		StorageKey:   title,
		OriginalName: title + ".mp4",
		MediaType:    access.MediaVideo,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, r.CreateMedia(context.Background(), m))
	return m
}

func titles(items []*database.MediaItem) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.Title)
	}
	return out
}

func TestRepository_Accounts(t *testing.T) {
	ctx := context.Background()
	r := New()
	alice := newAccount(t, r, "alice", false)

	t.Run("duplicate username conflicts", func(t *testing.T) {
		dup := &database.Account{ID: uuid.New(), Username: "alice", Email: "other@example.com"}
		assert.ErrorIs(t, r.CreateAccount(ctx, dup), database.ErrConflict)
	})

	t.Run("duplicate email conflicts case-insensitively", func(t *testing.T) {
		dup := &database.Account{ID: uuid.New(), Username: "alice2", Email: "ALICE@example.com"}
		assert.ErrorIs(t, r.CreateAccount(ctx, dup), database.ErrConflict)
	})

	t.Run("login by email or username", func(t *testing.T) {
		a, err := r.GetAccountByLogin(ctx, "Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, a.ID)

		a, err = r.GetAccountByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, a.ID)
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		a, err := r.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		a.Username = "mallory"

		again, err := r.GetAccount(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", again.Username)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := r.GetAccount(ctx, uuid.New())
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestRepository_Follows(t *testing.T) {
	ctx := context.Background()
	r := New()
	a := newAccount(t, r, "a", false)
	b := newAccount(t, r, "b", true)

	require.NoError(t, r.CreateFollow(ctx, &database.Follow{FollowerID: a.ID, FollowedID: b.ID}))
	assert.ErrorIs(t, r.CreateFollow(ctx, &database.Follow{FollowerID: a.ID, FollowedID: b.ID}), database.ErrConflict)

	following, err := r.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, following, "pending edge is not a follow")

	pending, err := r.ListFollowers(ctx, b.ID, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Username)

	require.NoError(t, r.AcceptFollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, r.AcceptFollow(ctx, a.ID, b.ID), database.ErrNotFound, "already accepted")

	following, err = r.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)

	require.NoError(t, r.DeleteFollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, r.DeleteFollow(ctx, a.ID, b.ID), database.ErrNotFound)
}

func TestRepository_ListMediaVisibility(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)
	private := newAccount(t, r, "private", true)
	follower := newAccount(t, r, "follower", false)
	stranger := newAccount(t, r, "stranger", false)
	admin := newAccount(t, r, "admin", false)
	admin.IsSuperuser = true
	require.NoError(t, r.UpdateAccount(ctx, admin))

	newMedia(t, r, owner, "public", nil)
	newMedia(t, r, owner, "private-item", func(m *database.MediaItem) { m.IsPrivate = true })
	newMedia(t, r, owner, "hidden", func(m *database.MediaItem) { m.IsHidden = true })
	newMedia(t, r, private, "locked", nil)

	require.NoError(t, r.CreateFollow(ctx, &database.Follow{FollowerID: follower.ID, FollowedID: owner.ID, Accepted: true}))
	require.NoError(t, r.CreateFollow(ctx, &database.Follow{FollowerID: follower.ID, FollowedID: private.ID, Accepted: true}))

	list := func(v access.Viewer) []string {
		items, err := r.ListMedia(ctx, v, database.MediaFilter{Sort: database.SortNameAsc})
		require.NoError(t, err)
		return titles(items)
	}

	assert.Equal(t, []string{"public"}, list(access.Viewer{}))
	assert.Equal(t, []string{"public"}, list(stranger.Viewer()))
	assert.Equal(t, []string{"locked", "private-item", "public"}, list(follower.Viewer()))
	assert.Equal(t, []string{"hidden", "private-item", "public"}, list(owner.Viewer()))
	assert.Equal(t, []string{"hidden", "locked", "private-item", "public"}, list(admin.Viewer()))

	t.Run("listing agrees with CanView", func(t *testing.T) {
		for _, v := range []access.Viewer{{}, stranger.Viewer(), follower.Viewer(), owner.Viewer(), admin.Viewer()} {
			visible := make(map[uuid.UUID]bool)
			items, err := r.ListMedia(ctx, v, database.MediaFilter{})
			require.NoError(t, err)
			for _, m := range items {
				visible[m.ID] = true
			}
			for _, m := range r.media {
				c := r.mediaCopy(m)
				following, _ := r.IsFollowing(ctx, v.ID, m.OwnerID)
				assert.Equal(t, access.CanView(v, c.Access(), v.Authenticated && following), visible[m.ID], m.Title)
			}
		}
	})
}

func TestRepository_ListMediaFiltersAndSort(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := newMedia(t, r, owner, "Beach", func(m *database.MediaItem) {
		m.CreatedAt = base
		m.ViewsCount = 10
	})
	newMedia(t, r, owner, "alpine", func(m *database.MediaItem) {
		m.CreatedAt = base.Add(time.Hour)
		m.MediaType = access.MediaImage
		m.OriginalName = "alpine.jpg"
	})
	newMedia(t, r, owner, "city", func(m *database.MediaItem) {
		m.CreatedAt = base.Add(2 * time.Hour)
		m.ViewsCount = 3
	})
	require.NoError(t, r.CreateAccount(ctx, &database.Account{ID: uuid.New(), Username: "fan", Email: "fan@example.com"}))
	fan, err := r.GetAccountByUsername(ctx, "fan")
	require.NoError(t, err)
	_, err = r.ToggleLike(ctx, fan.ID, first.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter database.MediaFilter
		want   []string
	}{
		{"default newest first", database.MediaFilter{}, []string{"city", "alpine", "Beach"}},
		{"oldest first", database.MediaFilter{Sort: database.SortDateAsc}, []string{"Beach", "alpine", "city"}},
		{"most viewed", database.MediaFilter{Sort: database.SortViews}, []string{"Beach", "city", "alpine"}},
		{"most liked", database.MediaFilter{Sort: database.SortLikes}, []string{"Beach", "city", "alpine"}},
		{"by type", database.MediaFilter{Type: access.MediaImage}, []string{"alpine"}},
		{"query matches original name", database.MediaFilter{Query: "JPG"}, []string{"alpine"}},
		{"since", database.MediaFilter{Since: base.Add(90 * time.Minute)}, []string{"city"}},
		{"exclude", database.MediaFilter{ExcludeID: &first.ID}, []string{"city", "alpine"}},
		{"limit and offset", database.MediaFilter{Limit: 1, Offset: 1}, []string{"alpine"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := r.ListMedia(ctx, owner.Viewer(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(items))
		})
	}
}

func TestRepository_Folders(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)

	root := &database.Folder{ID: uuid.New(), OwnerID: owner.ID, Name: "trips"}
	require.NoError(t, r.CreateFolder(ctx, root))
	assert.ErrorIs(t, r.CreateFolder(ctx, &database.Folder{ID: uuid.New(), OwnerID: owner.ID, Name: "trips"}), database.ErrConflict)

	child := &database.Folder{ID: uuid.New(), OwnerID: owner.ID, ParentID: &root.ID, Name: "trips"}
	require.NoError(t, r.CreateFolder(ctx, child), "same name under another parent")

	found, err := r.FindFolder(ctx, owner.ID, &root.ID, "trips")
	require.NoError(t, err)
	assert.Equal(t, child.ID, found.ID)

	item := newMedia(t, r, owner, "clip", func(m *database.MediaItem) { m.FolderID = &child.ID })
	root.CoverMediaID = &item.ID
	require.NoError(t, r.UpdateFolder(ctx, root))

	require.NoError(t, r.DeleteFolder(ctx, root.ID))

	_, err = r.GetFolder(ctx, child.ID)
	assert.ErrorIs(t, err, database.ErrNotFound, "subfolders are removed")

	m, err := r.GetMedia(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, m.FolderID, "media moves to root")
}

func TestRepository_ChargeDownload(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)
	user := newAccount(t, r, "user", false)
	item := newMedia(t, r, owner, "clip", nil)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	charge := func(at time.Time) error {
		rec := &database.DownloadRecord{
			ID:        uuid.New(),
			AccountID: user.ID,
			MediaID:   item.ID,
			MediaType: access.MediaVideo,
			CreatedAt: at,
		}
		return r.ChargeDownload(ctx, rec, access.DayStart(at), func(n int) error {
			return access.CheckQuota(access.MediaVideo, n)
		})
	}

	for i := 0; i < access.DailyVideoLimit; i++ {
		require.NoError(t, charge(day.Add(time.Duration(i)*time.Hour)))
	}
	assert.ErrorIs(t, charge(day.Add(5*time.Hour)), access.ErrVideoLimit)
	require.NoError(t, charge(day.Add(24*time.Hour)), "next UTC day resets")

	m, err := r.GetMedia(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, access.DailyVideoLimit+1, m.DownloadsCount)

	counts, err := r.CountDownloads(ctx, user.ID, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[access.MediaVideo])

	pruned, err := r.PruneDownloads(ctx, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, access.DailyVideoLimit, pruned)
}

func TestRepository_ChargeDownloadConcurrent(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)
	user := newAccount(t, r, "user", false)
	item := newMedia(t, r, owner, "clip", nil)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &database.DownloadRecord{ID: uuid.New(), AccountID: user.ID, MediaID: item.ID, MediaType: access.MediaVideo, CreatedAt: now}
			err := r.ChargeDownload(ctx, rec, access.DayStart(now), func(n int) error {
				return access.CheckQuota(access.MediaVideo, n)
			})
			if err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			} else if !errors.Is(err, access.ErrVideoLimit) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, access.DailyVideoLimit, allowed)
}

func TestRepository_DeleteMediaCascades(t *testing.T) {
	ctx := context.Background()
	r := New()
	owner := newAccount(t, r, "owner", false)
	fan := newAccount(t, r, "fan", false)
	item := newMedia(t, r, owner, "clip", nil)

	liked, err := r.ToggleLike(ctx, fan.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	require.NoError(t, r.CreateReview(ctx, &database.Review{ID: uuid.New(), AccountID: fan.ID, MediaID: item.ID, Content: "nice"}))

	require.NoError(t, r.DeleteMedia(ctx, item.ID))

	n, err := r.CountLikes(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	reviews, err := r.ListReviews(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestRepository_Notifications(t *testing.T) {
	ctx := context.Background()
	r := New()
	a := newAccount(t, r, "a", false)
	b := newAccount(t, r, "b", false)

	for i, typ := range []database.NotificationType{database.NotifyFollow, database.NotifyLike} {
		require.NoError(t, r.CreateNotification(ctx, &database.Notification{
			ID:          uuid.New(),
			RecipientID: a.ID,
			SenderID:    &b.ID,
			Type:        typ,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := r.MarkNotificationsRead(ctx, a.ID, &b.ID, database.NotifyFollow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	unread, err := r.ListNotifications(ctx, a.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, database.NotifyLike, unread[0].Type)

	all, err := r.ListNotifications(ctx, a.ID, false, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
