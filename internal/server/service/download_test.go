package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"mediavault/internal/server/access"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_OpenPolicyVideoQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, uploaderV := f.user(t, "uploader", asUploader)
	_, viewer := f.user(t, "viewer")

	var videos []*MediaSummary
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"} {
		videos = append(videos, f.upload(t, uploaderV, name))
	}

	for _, v := range videos[:3] {
		res, err := f.downloads.AuthorizeDownload(ctx, viewer, v.ID)
		require.NoError(t, err)
		assert.Equal(t, "allowed", res.Status)
		assert.True(t, strings.HasPrefix(res.URL, "http://localhost:8080/media/"), res.URL)
	}

	_, err := f.downloads.AuthorizeDownload(ctx, viewer, videos[3].ID)
	requireDenial(t, err, access.ErrVideoLimit)

	m, err := f.repo.GetMedia(ctx, videos[3].ID)
	require.NoError(t, err)
	assert.Zero(t, m.DownloadsCount, "denied download must not be counted")

	quota, err := f.downloads.Quota(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, QuotaUsage{Used: 3, Limit: 3, Remaining: 0}, quota.Usage[access.MediaVideo])
	assert.Equal(t, QuotaUsage{Used: 0, Limit: 5, Remaining: 5}, quota.Usage[access.MediaImage])
}

func TestDownload_ImageQuotaIndependentOfVideo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, uploaderV := f.user(t, "uploader", asUploader)
	_, viewer := f.user(t, "viewer")

	video := f.upload(t, uploaderV, "clip.mp4")
	image := f.upload(t, uploaderV, "photo.jpg")
	doc := f.upload(t, uploaderV, "notes.pdf")

	for range 3 {
		_, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
		require.NoError(t, err)
	}
	for i := range 5 {
		_, err := f.downloads.AuthorizeDownload(ctx, viewer, image.ID)
		require.NoError(t, err, "image download %d", i+1)
	}

	_, err := f.downloads.AuthorizeDownload(ctx, viewer, image.ID)
	requireDenial(t, err, access.ErrImageLimit)

	for range 10 {
		_, err := f.downloads.AuthorizeDownload(ctx, viewer, doc.ID)
		require.NoError(t, err, "documents are not limited")
	}

	quota, err := f.downloads.Quota(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, 10, quota.Usage[access.MediaDocument].Used)
	assert.True(t, quota.Usage[access.MediaDocument].Unlimited)
}

func TestDownload_QuotaResetsAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, uploaderV := f.user(t, "uploader", asUploader)
	_, viewer := f.user(t, "viewer")
	video := f.upload(t, uploaderV, "clip.mp4")

	f.now = time.Date(2024, 5, 10, 23, 58, 0, 0, time.UTC)
	for range 3 {
		_, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
		require.NoError(t, err)
	}
	_, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
	requireDenial(t, err, access.ErrVideoLimit)

	f.now = time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	_, err = f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
	require.NoError(t, err)

	quota, err := f.downloads.Quota(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-11", quota.Day)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), quota.ResetAt)
	assert.Equal(t, 1, quota.Usage[access.MediaVideo].Used)
}

func TestDownload_QuotaUsesUTCDayForLocalTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, uploaderV := f.user(t, "uploader", asUploader)
	_, viewer := f.user(t, "viewer")
	video := f.upload(t, uploaderV, "clip.mp4")

	// 20:00 in UTC-5 on the 10th is 01:00 UTC on the 11th.
	zone := time.FixedZone("UTC-5", -5*60*60)
	f.now = time.Date(2024, 5, 10, 18, 0, 0, 0, zone)
	for range 3 {
		_, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
		require.NoError(t, err)
	}
	f.now = time.Date(2024, 5, 10, 20, 0, 0, 0, zone)
	_, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
	require.NoError(t, err)
}

func TestDownload_OwnerAndAdminAreNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader, withPolicy(access.PolicyRestricted))
	_, adminV := f.user(t, "root", asAdmin)
	video := f.upload(t, ownerV, "clip.mp4", privateUpload)

	for range 5 {
		_, err := f.downloads.AuthorizeDownload(ctx, ownerV, video.ID)
		require.NoError(t, err)
		_, err = f.downloads.AuthorizeDownload(ctx, adminV, video.ID)
		require.NoError(t, err)
	}

	for _, v := range []access.Viewer{ownerV, adminV} {
		quota, err := f.downloads.Quota(ctx, v)
		require.NoError(t, err)
		assert.Zero(t, quota.Usage[access.MediaVideo].Used)
	}
	m, err := f.repo.GetMedia(ctx, video.ID)
	require.NoError(t, err)
	assert.Zero(t, m.DownloadsCount)
}

func TestDownload_FollowersPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader, withPolicy(access.PolicyFollowers))
	follower, followerV := f.user(t, "follower")
	listed, listedV := f.user(t, "listed")
	image := f.upload(t, ownerV, "photo.png")

	f.follow(t, follower, owner)
	require.NoError(t, f.repo.SetAllowedDownloaders(ctx, owner.ID, []uuid.UUID{listed.ID}))

	_, err := f.downloads.AuthorizeDownload(ctx, followerV, image.ID)
	require.NoError(t, err)

	_, err = f.downloads.AuthorizeDownload(ctx, listedV, image.ID)
	requireDenial(t, err, access.ErrMustFollow)

	quota, err := f.downloads.Quota(ctx, listedV)
	require.NoError(t, err)
	assert.Zero(t, quota.Usage[access.MediaImage].Used)
}

func TestDownload_PendingFollowIsNotFollowing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader, asPrivate, withPolicy(access.PolicyFollowers))
	_, viewer := f.user(t, "viewer")
	image := f.upload(t, ownerV, "photo.png")

	state, err := f.social.ToggleFollow(ctx, viewer, owner.ID)
	require.NoError(t, err)
	require.Equal(t, FollowStateRequested, state)

	_, err = f.downloads.AuthorizeDownload(ctx, viewer, image.ID)
	requireDenial(t, err, access.ErrMustFollow)

	require.NoError(t, f.social.AcceptFollow(ctx, ownerV, viewer.ID))
	_, err = f.downloads.AuthorizeDownload(ctx, viewer, image.ID)
	require.NoError(t, err)
}

func TestDownload_RestrictedPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader, withPolicy(access.PolicyRestricted))
	follower, followerV := f.user(t, "follower")
	listed, listedV := f.user(t, "listed")
	_, otherUploaderV := f.user(t, "other", asUploader)
	video := f.upload(t, ownerV, "clip.mov")

	f.follow(t, follower, owner)
	require.NoError(t, f.repo.SetAllowedDownloaders(ctx, owner.ID, []uuid.UUID{listed.ID}))

	_, err := f.downloads.AuthorizeDownload(ctx, followerV, video.ID)
	requireDenial(t, err, access.ErrRestricted)

	_, err = f.downloads.AuthorizeDownload(ctx, listedV, video.ID)
	require.NoError(t, err)

	_, err = f.downloads.AuthorizeDownload(ctx, otherUploaderV, video.ID)
	require.NoError(t, err)

	// Allow-listed viewers are still charged.
	quota, err := f.downloads.Quota(ctx, listedV)
	require.NoError(t, err)
	assert.Equal(t, 1, quota.Usage[access.MediaVideo].Used)
}

func TestDownload_PrivateItemUnderOpenPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, strangerV := f.user(t, "stranger")
	private := f.upload(t, ownerV, "secret.jpg", privateUpload)

	res, err := f.downloads.AuthorizeDownload(ctx, strangerV, private.ID)
	require.NoError(t, err)
	assert.Equal(t, "allowed", res.Status)

	m, err := f.repo.GetMedia(ctx, private.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.DownloadsCount)

	_, err = f.downloads.AuthorizeDownload(ctx, access.Anonymous(), private.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.downloads.AuthorizeDownload(ctx, strangerV, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownload_PrivateOwnerFollowersPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader, asPrivate, withPolicy(access.PolicyFollowers))
	_, strangerV := f.user(t, "stranger")
	item := f.upload(t, ownerV, "clip.mp4")

	_, err := f.downloads.AuthorizeDownload(ctx, strangerV, item.ID)
	requireDenial(t, err, access.ErrMustFollow)
}

func TestDownload_PrivateOwnerRestrictedAllowList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader, asPrivate, withPolicy(access.PolicyRestricted))
	listed, listedV := f.user(t, "listed")
	_, strangerV := f.user(t, "stranger")
	item := f.upload(t, ownerV, "photo.jpg", privateUpload)
	require.NoError(t, f.repo.SetAllowedDownloaders(ctx, owner.ID, []uuid.UUID{listed.ID}))

	res, err := f.downloads.AuthorizeDownload(ctx, listedV, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "allowed", res.Status)

	_, err = f.downloads.AuthorizeDownload(ctx, strangerV, item.ID)
	requireDenial(t, err, access.ErrRestricted)
}

func TestDownload_HiddenItemFollowsPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, ownerV := f.user(t, "owner", asUploader, withPolicy(access.PolicyFollowers))
	follower, followerV := f.user(t, "follower")
	_, strangerV := f.user(t, "stranger")
	item := f.upload(t, ownerV, "clip.mp4")
	f.follow(t, follower, owner)

	_, err := f.content.SetMediaVisibility(ctx, ownerV, item.ID, ActionHide)
	require.NoError(t, err)

	_, err = f.downloads.AuthorizeDownload(ctx, strangerV, item.ID)
	requireDenial(t, err, access.ErrMustFollow)

	_, err = f.downloads.AuthorizeDownload(ctx, followerV, item.ID)
	require.NoError(t, err)

	_, err = f.downloads.AuthorizeDownload(ctx, ownerV, item.ID)
	require.NoError(t, err)

	m, err := f.repo.GetMedia(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.DownloadsCount, "owner download must not be counted")
}

func TestDownload_MissingObjectIsNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, ownerV := f.user(t, "owner", asUploader)
	_, viewer := f.user(t, "viewer")
	video := f.upload(t, ownerV, "clip.mp4")

	m, err := f.repo.GetMedia(ctx, video.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, m.StorageKey))

	res, err := f.downloads.AuthorizeDownload(ctx, viewer, video.ID)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NotErrorIs(t, err, ErrForbidden)

	m, err = f.repo.GetMedia(ctx, video.ID)
	require.NoError(t, err)
	assert.Zero(t, m.DownloadsCount)

	quota, err := f.downloads.Quota(ctx, viewer)
	require.NoError(t, err)
	assert.Equal(t, 0, quota.Usage[access.MediaVideo].Used)
}
