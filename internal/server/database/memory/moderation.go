package memory

import (
	"context"
	"sort"

	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

// --- Upload requests ---

func (r *Repository) CreateUploadRequest(ctx context.Context, u *database.UploadRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[u.AccountID]; !ok {
		return database.ErrNotFound
	}
	c := *u
	r.requests[u.ID] = &c
	return nil
}

func (r *Repository) GetUploadRequest(ctx context.Context, id uuid.UUID) (*database.UploadRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.requests[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r.requestCopy(u), nil
}

func (r *Repository) requestCopy(u *database.UploadRequest) *database.UploadRequest {
	c := *u
	if a, ok := r.accounts[u.AccountID]; ok {
		c.Username = a.Username
	}
	return &c
}

func (r *Repository) UpdateUploadRequest(ctx context.Context, u *database.UploadRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.requests[u.ID]
	if !ok {
		return database.ErrNotFound
	}
	old.IsApproved = u.IsApproved
	old.ProcessedAt = u.ProcessedAt
	return nil
}

func (r *Repository) ListUploadRequests(ctx context.Context, processed bool, limit int) ([]*database.UploadRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.UploadRequest
	for _, u := range r.requests {
		if (u.ProcessedAt != nil) == processed {
			out = append(out, r.requestCopy(u))
		}
	}
	if processed {
		sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(*out[j].ProcessedAt) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return truncate(out, limit), nil
}

func (r *Repository) HasPendingUploadRequest(ctx context.Context, accountID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.requests {
		if u.AccountID == accountID && u.ProcessedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

// --- Reported problems ---

func (r *Repository) CreateProblem(ctx context.Context, p *database.ReportedProblem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[p.AccountID]; !ok {
		return database.ErrNotFound
	}
	c := *p
	r.problems[p.ID] = &c
	return nil
}

func (r *Repository) GetProblem(ctx context.Context, id uuid.UUID) (*database.ReportedProblem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.problems[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r.problemCopy(p), nil
}

func (r *Repository) problemCopy(p *database.ReportedProblem) *database.ReportedProblem {
	c := *p
	if a, ok := r.accounts[p.AccountID]; ok {
		c.Username = a.Username
	}
	return &c
}

func (r *Repository) UpdateProblem(ctx context.Context, p *database.ReportedProblem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.problems[p.ID]
	if !ok {
		return database.ErrNotFound
	}
	old.IsResolved = p.IsResolved
	old.ResolvedAt = p.ResolvedAt
	return nil
}

func (r *Repository) ListProblems(ctx context.Context, resolved bool, limit int) ([]*database.ReportedProblem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*database.ReportedProblem
	for _, p := range r.problems {
		if p.IsResolved == resolved {
			out = append(out, r.problemCopy(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *Repository) GetStats(ctx context.Context) (*database.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &database.Stats{Accounts: int64(len(r.accounts)), MediaItems: int64(len(r.media))}
	for _, a := range r.accounts {
		if a.IsUploader {
			s.Uploaders++
		}
	}
	for _, m := range r.media {
		s.TotalDownloads += int64(m.DownloadsCount)
		s.TotalViews += int64(m.ViewsCount)
	}
	for _, u := range r.requests {
		if u.ProcessedAt == nil {
			s.PendingRequests++
		}
	}
	for _, p := range r.problems {
		if !p.IsResolved {
			s.OpenProblems++
		}
	}
	return s, nil
}
