package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mediavault/internal/server/access"
	"mediavault/internal/server/auth"
	"mediavault/internal/server/database"
	"mediavault/internal/server/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the persistence the account service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *database.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*database.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (*database.Account, error)
	UpdateAccount(ctx context.Context, a *database.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	SearchAccounts(ctx context.Context, q string, exclude uuid.UUID, limit int) ([]*database.Account, error)
	SetAllowedDownloaders(ctx context.Context, ownerID uuid.UUID, accountIDs []uuid.UUID) error
	ListAllowedDownloaders(ctx context.Context, ownerID uuid.UUID) ([]*database.Account, error)
	GetFollow(ctx context.Context, followerID, followedID uuid.UUID) (*database.Follow, error)
	ListFollowers(ctx context.Context, followedID uuid.UUID, accepted bool) ([]*database.Account, error)
	ListFollowing(ctx context.Context, followerID uuid.UUID) ([]*database.Account, error)
	ListFolders(ctx context.Context, viewer access.Viewer, filter database.FolderFilter) ([]*database.Folder, error)
	ListMedia(ctx context.Context, viewer access.Viewer, filter database.MediaFilter) ([]*database.MediaItem, error)
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]*database.Notification, error)
	HasPendingUploadRequest(ctx context.Context, accountID uuid.UUID) (bool, error)
}

const (
	ThemeLight = "LIGHT"
	ThemeDark  = "DARK"

	minPasswordLength = 8
	searchLimit       = 10
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,150}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Me is the private view of the caller's own account.
type Me struct {
	AccountSummary
	Email              string           `json:"email"`
	Theme              string           `json:"theme"`
	IsSuperuser        bool             `json:"is_superuser"`
	IsUploader         bool             `json:"is_uploader"`
	AllowedDownloaders []AccountSummary `json:"allowed_downloaders"`
}

// AuthResult is returned after register and login.
type AuthResult struct {
	Token   string `json:"token"`
	Account *Me    `json:"account"`
}

// RegisterInput holds the fields for a new account.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate holds optional profile changes. Nil fields are left as is.
// AllowedDownloaders replaces the allow-list wholesale.
type ProfileUpdate struct {
	Bio                *string                `json:"bio"`
	Theme              *string                `json:"theme"`
	DownloadPolicy     *access.DownloadPolicy `json:"download_policy"`
	AllowedDownloaders *[]uuid.UUID           `json:"allowed_downloaders"`
}

// Profile is an account page as seen by a viewer.
type Profile struct {
	Account         AccountSummary   `json:"account"`
	IsOwn           bool             `json:"is_own"`
	IsFollowing     bool             `json:"is_following"`
	FollowRequested bool             `json:"follow_requested"`
	ContentVisible  bool             `json:"content_visible"`
	Followers       []AccountSummary `json:"followers"`
	Following       []AccountSummary `json:"following"`
	Folders         []FolderSummary  `json:"folders"`
	DirectMedia     []MediaSummary   `json:"direct_media"`
	AllMedia        []MediaSummary   `json:"all_media"`
	HiddenMedia     []MediaSummary   `json:"hidden_media,omitempty"`

	// Owner only.
	PendingRequests      []AccountSummary `json:"pending_requests,omitempty"`
	Notifications        []Notification   `json:"notifications,omitempty"`
	PendingUploadRequest bool             `json:"pending_upload_request,omitempty"`
}

// AccountService handles registration, login and profiles.
type AccountService struct {
	repo   AccountStore
	store  storage.Store
	tokens *auth.Tokens
	now    clock
}

// NewAccountService creates a new account service.
func NewAccountService(repo AccountStore, store storage.Store, tokens *auth.Tokens) *AccountService {
	return &AccountService{repo: repo, store: store, tokens: tokens}
}

// Register creates an account and logs it in.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if !usernamePattern.MatchString(username) {
		return nil, invalid("username must be 3-150 letters, digits, '.', '_' or '-'")
	}
	if !emailPattern.MatchString(email) {
		return nil, invalid("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	a := &database.Account{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		PasswordHash:   string(hash),
		Theme:          ThemeLight,
		DownloadPolicy: access.PolicyOpen,
		CreatedAt:      s.now.now(),
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, conflict(err, "username or email taken")
	}

	slog.Info("account registered", "account_id", a.ID, "username", a.Username)
	return s.authResult(ctx, a)
}

// Login verifies credentials given as email or username.
func (s *AccountService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	a, err := s.repo.GetAccountByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.authResult(ctx, a)
}

func (s *AccountService) authResult(ctx context.Context, a *database.Account) (*AuthResult, error) {
	token, err := s.tokens.Issue(a.ID)
	if err != nil {
		return nil, err
	}
	me, err := s.me(ctx, a)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: me}, nil
}

// Authenticate resolves a bearer token to the current account.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*database.Account, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
		}
		return nil, err
	}
	return a, nil
}

// Me returns the caller's own account.
func (s *AccountService) Me(ctx context.Context, viewer access.Viewer) (*Me, error) {
	a, err := s.current(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return s.me(ctx, a)
}

func (s *AccountService) current(ctx context.Context, viewer access.Viewer) (*database.Account, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	a, err := s.repo.GetAccount(ctx, viewer.ID)
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a, nil
}

func (s *AccountService) me(ctx context.Context, a *database.Account) (*Me, error) {
	allowed, err := s.repo.ListAllowedDownloaders(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return &Me{
		AccountSummary:     summarizeAccount(a),
		Email:              a.Email,
		Theme:              a.Theme,
		IsSuperuser:        a.IsSuperuser,
		IsUploader:         a.IsUploader,
		AllowedDownloaders: summarizeAccounts(allowed),
	}, nil
}

// UpdateProfile applies profile changes to the caller's account.
func (s *AccountService) UpdateProfile(ctx context.Context, viewer access.Viewer, in ProfileUpdate) (*Me, error) {
	a, err := s.current(ctx, viewer)
	if err != nil {
		return nil, err
	}

	if in.Bio != nil {
		a.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Theme != nil {
		theme := strings.ToUpper(*in.Theme)
		if theme != ThemeLight && theme != ThemeDark {
			return nil, invalid("theme must be LIGHT or DARK")
		}
		a.Theme = theme
	}
	if in.DownloadPolicy != nil {
		if !in.DownloadPolicy.Valid() {
			return nil, invalid("download_policy must be OPEN, FOLLOWERS or RESTRICTED")
		}
		a.DownloadPolicy = *in.DownloadPolicy
	}

	if in.AllowedDownloaders != nil {
		ids := make([]uuid.UUID, 0, len(*in.AllowedDownloaders))
		seen := make(map[uuid.UUID]bool)
		for _, id := range *in.AllowedDownloaders {
			if id == a.ID {
				return nil, invalid("cannot allow-list yourself")
			}
			if seen[id] {
				continue
			}
			if _, err := s.repo.GetAccount(ctx, id); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return nil, invalid("unknown account %s", id)
				}
				return nil, err
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if err := s.repo.SetAllowedDownloaders(ctx, a.ID, ids); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return nil, conflict(err, "account")
	}

	slog.Info("profile updated", "account_id", a.ID, "download_policy", a.DownloadPolicy)
	return s.me(ctx, a)
}

// TogglePrivacy flips the caller's account privacy after verifying the
// current password. Returns the new state.
func (s *AccountService) TogglePrivacy(ctx context.Context, viewer access.Viewer, password string) (bool, error) {
	a, err := s.current(ctx, viewer)
	if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return false, fmt.Errorf("%w: incorrect password", ErrForbidden)
	}

	a.IsPrivate = !a.IsPrivate
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return false, err
	}

	slog.Info("account privacy changed", "account_id", a.ID, "is_private", a.IsPrivate)
	return a.IsPrivate, nil
}

// UpdateUsername renames the caller's account.
func (s *AccountService) UpdateUsername(ctx context.Context, viewer access.Viewer, username string) (*Me, error) {
	a, err := s.current(ctx, viewer)
	if err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username must be 3-150 letters, digits, '.', '_' or '-'")
	}
	if username == a.Username {
		return s.me(ctx, a)
	}

	a.Username = username
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return nil, conflict(err, "username taken")
	}
	return s.me(ctx, a)
}

// DeleteAccount removes the caller's account, its content and its stored
// objects.
func (s *AccountService) DeleteAccount(ctx context.Context, viewer access.Viewer) error {
	a, err := s.current(ctx, viewer)
	if err != nil {
		return err
	}

	items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{OwnerID: &a.ID})
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, a.ID); err != nil {
		return notFound(err, "account")
	}

	for _, m := range items {
		if err := s.store.Delete(ctx, m.StorageKey); err != nil {
			slog.Error("failed to delete file from storage", "media_id", m.ID, "error", err)
		}
	}

	slog.Info("account deleted", "account_id", a.ID, "media", len(items))
	return nil
}

// SearchUsers matches usernames and bios. Queries shorter than two
// characters return nothing.
func (s *AccountService) SearchUsers(ctx context.Context, viewer access.Viewer, q string) ([]AccountSummary, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return []AccountSummary{}, nil
	}
	accounts, err := s.repo.SearchAccounts(ctx, q, viewer.ID, searchLimit)
	if err != nil {
		return nil, err
	}
	return summarizeAccounts(accounts), nil
}

// Profile returns the account page for username as seen by viewer.
// Content lists are filtered by visibility and are empty when the
// profile itself is not visible.
func (s *AccountService) Profile(ctx context.Context, viewer access.Viewer, username string) (*Profile, error) {
	owner, err := s.repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err, "account")
	}

	p := &Profile{
		Account: summarizeAccount(owner),
		IsOwn:   viewer.Owns(owner.ID),
	}

	if viewer.Authenticated && !p.IsOwn {
		f, err := s.repo.GetFollow(ctx, viewer.ID, owner.ID)
		switch {
		case err == nil:
			p.IsFollowing = f.Accepted
			p.FollowRequested = !f.Accepted
		case !errors.Is(err, database.ErrNotFound):
			return nil, err
		}
	}

	followers, err := s.repo.ListFollowers(ctx, owner.ID, true)
	if err != nil {
		return nil, err
	}
	following, err := s.repo.ListFollowing(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	p.Followers = summarizeAccounts(followers)
	p.Following = summarizeAccounts(following)

	p.ContentVisible = access.CanView(viewer, access.Profile(owner.ID, owner.IsPrivate), p.IsFollowing)
	p.Folders, p.DirectMedia, p.AllMedia = []FolderSummary{}, []MediaSummary{}, []MediaSummary{}

	if p.ContentVisible {
		folders, err := s.repo.ListFolders(ctx, viewer, database.FolderFilter{OwnerID: &owner.ID, RootOnly: true})
		if err != nil {
			return nil, err
		}
		all, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{OwnerID: &owner.ID})
		if err != nil {
			return nil, err
		}

		var direct, shown, hidden []*database.MediaItem
		for _, m := range all {
			if m.IsHidden {
				hidden = append(hidden, m)
				continue
			}
			shown = append(shown, m)
			if m.FolderID == nil {
				direct = append(direct, m)
			}
		}
		var visibleFolders []*database.Folder
		for _, f := range folders {
			if !f.IsHidden {
				visibleFolders = append(visibleFolders, f)
			}
		}

		p.Folders = summarizeFolders(visibleFolders)
		p.DirectMedia = summarizeMediaList(direct)
		p.AllMedia = summarizeMediaList(shown)
		if viewer.Privileged(owner.ID) {
			p.HiddenMedia = summarizeMediaList(hidden)
		}
	}

	if p.IsOwn {
		pending, err := s.repo.ListFollowers(ctx, owner.ID, false)
		if err != nil {
			return nil, err
		}
		notes, err := s.repo.ListNotifications(ctx, owner.ID, true, notificationLimit)
		if err != nil {
			return nil, err
		}
		p.PendingRequests = summarizeAccounts(pending)
		p.Notifications = summarizeNotifications(notes)

		if !owner.IsUploader {
			p.PendingUploadRequest, err = s.repo.HasPendingUploadRequest(ctx, owner.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// EnsureAdmin creates or promotes the bootstrap superuser.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	a, err := s.repo.GetAccountByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		res, err := s.Register(ctx, RegisterInput{Username: username, Email: email, Password: password})
		if err != nil {
			return err
		}
		a, err = s.repo.GetAccount(ctx, res.Account.ID)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if a.IsSuperuser && a.IsUploader {
		return nil
	}
	a.IsSuperuser = true
	a.IsUploader = true
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return err
	}
	slog.Info("admin account ensured", "account_id", a.ID, "username", a.Username)
	return nil
}
