package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ModerationStore is the persistence the moderation service needs.
type ModerationStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error)
	UpdateAccount(ctx context.Context, a *database.Account) error
	ListAccounts(ctx context.Context) ([]*database.Account, error)
	ListMedia(ctx context.Context, viewer access.Viewer, filter database.MediaFilter) ([]*database.MediaItem, error)

	CreateUploadRequest(ctx context.Context, u *database.UploadRequest) error
	GetUploadRequest(ctx context.Context, id uuid.UUID) (*database.UploadRequest, error)
	UpdateUploadRequest(ctx context.Context, u *database.UploadRequest) error
	ListUploadRequests(ctx context.Context, processed bool, limit int) ([]*database.UploadRequest, error)
	HasPendingUploadRequest(ctx context.Context, accountID uuid.UUID) (bool, error)

	CreateProblem(ctx context.Context, p *database.ReportedProblem) error
	GetProblem(ctx context.Context, id uuid.UUID) (*database.ReportedProblem, error)
	UpdateProblem(ctx context.Context, p *database.ReportedProblem) error
	ListProblems(ctx context.Context, resolved bool, limit int) ([]*database.ReportedProblem, error)

	GetStats(ctx context.Context) (*database.Stats, error)
}

const (
	pendingLimit     = 100
	processedLimit   = 20
	maxMessageLength = 2000
	adminMediaLimit  = 200
)

// UploadRequest is an upload access request as shown to admins.
type UploadRequest struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	Username    string     `json:"username"`
	Message     string     `json:"message"`
	IsApproved  bool       `json:"is_approved"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func summarizeUploadRequests(reqs []*database.UploadRequest) []UploadRequest {
	out := make([]UploadRequest, 0, len(reqs))
	for _, u := range reqs {
		out = append(out, UploadRequest{
			ID:          u.ID,
			AccountID:   u.AccountID,
			Username:    u.Username,
			Message:     u.Message,
			IsApproved:  u.IsApproved,
			ProcessedAt: u.ProcessedAt,
			CreatedAt:   u.CreatedAt,
		})
	}
	return out
}

// Problem is a reported problem as shown to admins.
type Problem struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Username   string     `json:"username"`
	Message    string     `json:"message"`
	IsResolved bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func summarizeProblems(problems []*database.ReportedProblem) []Problem {
	out := make([]Problem, 0, len(problems))
	for _, p := range problems {
		out = append(out, Problem{
			ID:         p.ID,
			AccountID:  p.AccountID,
			Username:   p.Username,
			Message:    p.Message,
			IsResolved: p.IsResolved,
			ResolvedAt: p.ResolvedAt,
			CreatedAt:  p.CreatedAt,
		})
	}
	return out
}

// UploadRequests groups pending and recently processed requests.
type UploadRequests struct {
	Pending   []UploadRequest `json:"pending"`
	Processed []UploadRequest `json:"processed"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Stats           *database.Stats `json:"stats"`
	PendingRequests []UploadRequest `json:"pending_requests"`
	OpenProblems    []Problem       `json:"open_problems"`
}

// AdminAccount is an account as listed to admins.
type AdminAccount struct {
	AccountSummary
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	IsUploader  bool   `json:"is_uploader"`
}

// AdminUserUpdate holds optional changes an admin can make to an account.
type AdminUserUpdate struct {
	IsUploader  *bool   `json:"is_uploader"`
	IsSuperuser *bool   `json:"is_superuser"`
	IsPrivate   *bool   `json:"is_private"`
	Password    *string `json:"password"`
}

// ModerationService handles upload requests, problem reports and the
// admin surface.
type ModerationService struct {
	repo ModerationStore
	now  clock
}

// NewModerationService creates a new moderation service.
func NewModerationService(repo ModerationStore) *ModerationService {
	return &ModerationService{repo: repo}
}

func validMessage(msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if len(msg) > maxMessageLength {
		return "", invalid("message exceeds %d characters", maxMessageLength)
	}
	return msg, nil
}

// RequestUploadAccess files an upload access request for the viewer.
func (s *ModerationService) RequestUploadAccess(ctx context.Context, viewer access.Viewer, message string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	a, err := s.repo.GetAccount(ctx, viewer.ID)
	if err != nil {
		return notFound(err, "account")
	}
	if a.IsUploader || a.IsSuperuser {
		return invalid("account can already upload")
	}
	msg, err := validMessage(message)
	if err != nil {
		return err
	}

	pending, err := s.repo.HasPendingUploadRequest(ctx, a.ID)
	if err != nil {
		return err
	}
	if pending {
		return fmt.Errorf("%w: upload request already pending", ErrConflict)
	}

	u := &database.UploadRequest{
		ID:        uuid.New(),
		AccountID: a.ID,
		Message:   msg,
		CreatedAt: s.now.now(),
	}
	if err := s.repo.CreateUploadRequest(ctx, u); err != nil {
		return err
	}
	slog.Info("upload access requested", "request_id", u.ID, "account_id", a.ID)
	return nil
}

// ReportProblem stores a problem report from the viewer.
func (s *ModerationService) ReportProblem(ctx context.Context, viewer access.Viewer, message string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	msg, err := validMessage(message)
	if err != nil {
		return err
	}
	if msg == "" {
		return invalid("message must not be empty")
	}

	p := &database.ReportedProblem{
		ID:        uuid.New(),
		AccountID: viewer.ID,
		Message:   msg,
		CreatedAt: s.now.now(),
	}
	if err := s.repo.CreateProblem(ctx, p); err != nil {
		return err
	}
	slog.Info("problem reported", "problem_id", p.ID, "account_id", viewer.ID)
	return nil
}

// ListUploadRequests returns pending requests and the latest processed ones.
func (s *ModerationService) ListUploadRequests(ctx context.Context, viewer access.Viewer) (*UploadRequests, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	pending, err := s.repo.ListUploadRequests(ctx, false, pendingLimit)
	if err != nil {
		return nil, err
	}
	processed, err := s.repo.ListUploadRequests(ctx, true, processedLimit)
	if err != nil {
		return nil, err
	}
	return &UploadRequests{
		Pending:   summarizeUploadRequests(pending),
		Processed: summarizeUploadRequests(processed),
	}, nil
}

// ProcessUploadRequest approves or rejects a pending request. Approval
// grants uploader rights.
func (s *ModerationService) ProcessUploadRequest(ctx context.Context, viewer access.Viewer, id uuid.UUID, approve bool) error {
	if err := requireAdmin(viewer); err != nil {
		return err
	}
	u, err := s.repo.GetUploadRequest(ctx, id)
	if err != nil {
		return notFound(err, "upload request")
	}
	if u.ProcessedAt != nil {
		return fmt.Errorf("%w: upload request already processed", ErrConflict)
	}

	if approve {
		a, err := s.repo.GetAccount(ctx, u.AccountID)
		if err != nil {
			return notFound(err, "account")
		}
		a.IsUploader = true
		if err := s.repo.UpdateAccount(ctx, a); err != nil {
			return err
		}
	}

	u.IsApproved = approve
	u.ProcessedAt = ptr(s.now.now())
	if err := s.repo.UpdateUploadRequest(ctx, u); err != nil {
		return notFound(err, "upload request")
	}

	slog.Info("upload request processed",
		"request_id", u.ID,
		"account_id", u.AccountID,
		"approved", approve,
		"admin_id", viewer.ID,
	)
	return nil
}

// ListProblems returns unresolved problem reports.
func (s *ModerationService) ListProblems(ctx context.Context, viewer access.Viewer) ([]Problem, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	problems, err := s.repo.ListProblems(ctx, false, pendingLimit)
	if err != nil {
		return nil, err
	}
	return summarizeProblems(problems), nil
}

// ResolveProblem marks a problem report as resolved.
func (s *ModerationService) ResolveProblem(ctx context.Context, viewer access.Viewer, id uuid.UUID) error {
	if err := requireAdmin(viewer); err != nil {
		return err
	}
	p, err := s.repo.GetProblem(ctx, id)
	if err != nil {
		return notFound(err, "problem")
	}
	if p.IsResolved {
		return nil
	}
	p.IsResolved = true
	p.ResolvedAt = ptr(s.now.now())
	if err := s.repo.UpdateProblem(ctx, p); err != nil {
		return notFound(err, "problem")
	}
	slog.Info("problem resolved", "problem_id", p.ID, "admin_id", viewer.ID)
	return nil
}

// Dashboard returns statistics with pending work for admins.
func (s *ModerationService) Dashboard(ctx context.Context, viewer access.Viewer) (*Dashboard, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.ListUploadRequests(ctx, false, processedLimit)
	if err != nil {
		return nil, err
	}
	problems, err := s.repo.ListProblems(ctx, false, processedLimit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Stats:           stats,
		PendingRequests: summarizeUploadRequests(pending),
		OpenProblems:    summarizeProblems(problems),
	}, nil
}

func summarizeAdminAccount(a *database.Account) AdminAccount {
	return AdminAccount{
		AccountSummary: summarizeAccount(a),
		Email:          a.Email,
		IsSuperuser:    a.IsSuperuser,
		IsUploader:     a.IsUploader,
	}
}

// ListUsers returns every account.
func (s *ModerationService) ListUsers(ctx context.Context, viewer access.Viewer) ([]AdminAccount, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AdminAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, summarizeAdminAccount(a))
	}
	return out, nil
}

// ListAllMedia returns the newest media items of every account,
// including private and hidden ones.
func (s *ModerationService) ListAllMedia(ctx context.Context, viewer access.Viewer) ([]MediaSummary, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	items, err := s.repo.ListMedia(ctx, viewer, database.MediaFilter{Limit: adminMediaLimit})
	if err != nil {
		return nil, err
	}
	return summarizeMediaList(items), nil
}

// AdminUpdateUser changes account flags and optionally resets the password.
func (s *ModerationService) AdminUpdateUser(ctx context.Context, viewer access.Viewer, id uuid.UUID, in AdminUserUpdate) (*AdminAccount, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, notFound(err, "account")
	}

	if in.IsSuperuser != nil {
		if !*in.IsSuperuser && a.ID == viewer.ID {
			return nil, invalid("cannot revoke your own admin rights")
		}
		a.IsSuperuser = *in.IsSuperuser
	}
	if in.IsUploader != nil {
		a.IsUploader = *in.IsUploader
	}
	if in.IsPrivate != nil {
		a.IsPrivate = *in.IsPrivate
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, invalid("password must be at least %d characters", minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		a.PasswordHash = string(hash)
	}

	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return nil, conflict(err, "account")
	}

	slog.Info("account updated by admin",
		"account_id", a.ID,
		"admin_id", viewer.ID,
		"is_superuser", a.IsSuperuser,
		"is_uploader", a.IsUploader,
	)
	out := summarizeAdminAccount(a)
	return &out, nil
}
