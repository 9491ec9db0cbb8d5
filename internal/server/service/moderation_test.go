package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, aliceV := f.user(t, "alice")
	bob, bobV := f.user(t, "bob")
	_, uploaderV := f.user(t, "up", asUploader)
	_, adminV := f.user(t, "root", asAdmin)

	require.NoError(t, f.moderation.RequestUploadAccess(ctx, aliceV, "I shoot videos"))
	err := f.moderation.RequestUploadAccess(ctx, aliceV, "again")
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, f.moderation.RequestUploadAccess(ctx, uploaderV, "more"), ErrInvalidInput)
	f.advance(1)
	require.NoError(t, f.moderation.RequestUploadAccess(ctx, bobV, ""))

	_, err = f.moderation.ListUploadRequests(ctx, aliceV)
	assert.ErrorIs(t, err, ErrForbidden)

	reqs, err := f.moderation.ListUploadRequests(ctx, adminV)
	require.NoError(t, err)
	require.Len(t, reqs.Pending, 2)
	assert.Empty(t, reqs.Processed)
	assert.Equal(t, "bob", reqs.Pending[0].Username)

	byUser := map[string]UploadRequest{}
	for _, r := range reqs.Pending {
		byUser[r.Username] = r
	}

	require.NoError(t, f.moderation.ProcessUploadRequest(ctx, adminV, byUser["alice"].ID, true))
	require.NoError(t, f.moderation.ProcessUploadRequest(ctx, adminV, byUser["bob"].ID, false))
	assert.ErrorIs(t, f.moderation.ProcessUploadRequest(ctx, adminV, byUser["bob"].ID, true), ErrConflict)

	a, err := f.repo.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, a.IsUploader)
	b, err := f.repo.GetAccount(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, b.IsUploader)

	reqs, err = f.moderation.ListUploadRequests(ctx, adminV)
	require.NoError(t, err)
	assert.Empty(t, reqs.Pending)
	assert.Len(t, reqs.Processed, 2)

	// A rejected user may ask again.
	require.NoError(t, f.moderation.RequestUploadAccess(ctx, bobV, "please"))
}

func TestProblemsAndDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, aliceV := f.user(t, "alice")
	_, uploaderV := f.user(t, "up", asUploader)
	_, adminV := f.user(t, "root", asAdmin)
	f.upload(t, uploaderV, "a.jpg")

	assert.ErrorIs(t, f.moderation.ReportProblem(ctx, aliceV, "  "), ErrInvalidInput)
	require.NoError(t, f.moderation.ReportProblem(ctx, aliceV, "broken video"))
	require.NoError(t, f.moderation.RequestUploadAccess(ctx, aliceV, ""))

	dash, err := f.moderation.Dashboard(ctx, adminV)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dash.Stats.Accounts)
	assert.Equal(t, int64(1), dash.Stats.MediaItems)
	assert.Equal(t, int64(1), dash.Stats.PendingRequests)
	assert.Equal(t, int64(1), dash.Stats.OpenProblems)
	require.Len(t, dash.OpenProblems, 1)

	problems, err := f.moderation.ListProblems(ctx, adminV)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "alice", problems[0].Username)

	require.NoError(t, f.moderation.ResolveProblem(ctx, adminV, problems[0].ID))
	require.NoError(t, f.moderation.ResolveProblem(ctx, adminV, problems[0].ID))

	problems, err = f.moderation.ListProblems(ctx, adminV)
	require.NoError(t, err)
	assert.Empty(t, problems)

	_, err = f.moderation.Dashboard(ctx, uploaderV)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminUsersAndMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, aliceV := f.user(t, "alice", asUploader, asPrivate)
	admin, adminV := f.user(t, "root", asAdmin)
	f.upload(t, aliceV, "secret.jpg", privateUpload)

	users, err := f.moderation.ListUsers(ctx, adminV)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	media, err := f.moderation.ListAllMedia(ctx, adminV)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret.jpg"}, mediaTitles(media))

	updated, err := f.moderation.AdminUpdateUser(ctx, adminV, alice.ID, AdminUserUpdate{
		IsUploader: ptr(false),
		IsPrivate:  ptr(false),
		Password:   ptr("new-password"),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsUploader)
	assert.False(t, updated.IsPrivate)

	_, err = f.accounts.Login(ctx, "alice", "new-password")
	assert.NoError(t, err)

	_, err = f.moderation.AdminUpdateUser(ctx, adminV, alice.ID, AdminUserUpdate{Password: ptr("short")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.moderation.AdminUpdateUser(ctx, adminV, admin.ID, AdminUserUpdate{IsSuperuser: ptr(false)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.moderation.AdminUpdateUser(ctx, aliceV, admin.ID, AdminUserUpdate{IsUploader: ptr(true)})
	assert.ErrorIs(t, err, ErrForbidden)
}
