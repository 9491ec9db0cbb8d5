package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) PruneDownloads(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 1, f.err
}

func (f *fakePruner) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestRetentionService_Cutoff(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		days int
		want time.Time
	}{
		{"keeps a week", 7, now.Add(-7 * 24 * time.Hour)},
		{"zero days keeps today", 0, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRetentionService(&fakePruner{}, tt.days, time.Hour)
			rs.now = func() time.Time { return now }
			assert.Equal(t, tt.want, rs.cutoff())
		})
	}
}

func TestRetentionService_StartAndStop(t *testing.T) {
	repo := &fakePruner{err: errors.New("boom")}
	rs := NewRetentionService(repo, 30, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	rs.Start(ctx)

	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, time.Second, 10*time.Millisecond,
		"runs once immediately")

	cancel()
	rs.Wait()
}
