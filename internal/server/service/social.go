package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/database"

	"github.com/google/uuid"
)

// SocialStore is the persistence the social service needs.
type SocialStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*database.Account, error)
	GetFollow(ctx context.Context, followerID, followedID uuid.UUID) (*database.Follow, error)
	CreateFollow(ctx context.Context, f *database.Follow) error
	DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) error
	AcceptFollow(ctx context.Context, followerID, followedID uuid.UUID) error
	IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)

	GetMedia(ctx context.Context, id uuid.UUID) (*database.MediaItem, error)
	ToggleLike(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error)
	ToggleFavorite(ctx context.Context, accountID, mediaID uuid.UUID) (bool, error)
	CountLikes(ctx context.Context, mediaID uuid.UUID) (int, error)
	CreateReview(ctx context.Context, rv *database.Review) error
	ListReviews(ctx context.Context, mediaID uuid.UUID) ([]*database.Review, error)

	CreateNotification(ctx context.Context, n *database.Notification) error
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]*database.Notification, error)
	MarkNotificationsRead(ctx context.Context, recipientID uuid.UUID, senderID *uuid.UUID, typ database.NotificationType) (int64, error)
}

const (
	notificationLimit = 20
	maxReviewLength   = 2000
)

// Follow states returned by ToggleFollow.
const (
	FollowStateFollowing  = "following"
	FollowStateRequested  = "requested"
	FollowStateUnfollowed = "unfollowed"
)

// Notification is a message shown to its recipient.
type Notification struct {
	ID        uuid.UUID                 `json:"id"`
	SenderID  *uuid.UUID                `json:"sender_id,omitempty"`
	Type      database.NotificationType `json:"type"`
	Message   string                    `json:"message"`
	TargetURL string                    `json:"target_url"`
	IsRead    bool                      `json:"is_read"`
	CreatedAt time.Time                 `json:"created_at"`
}

func summarizeNotifications(notes []*database.Notification) []Notification {
	out := make([]Notification, 0, len(notes))
	for _, n := range notes {
		out = append(out, Notification{
			ID:        n.ID,
			SenderID:  n.SenderID,
			Type:      n.Type,
			Message:   n.Message,
			TargetURL: n.TargetURL,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// Review is a comment on a media item.
type Review struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Rating    *int      `json:"rating,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func summarizeReview(rv *database.Review) Review {
	return Review{
		ID:        rv.ID,
		AccountID: rv.AccountID,
		Username:  rv.Username,
		Rating:    rv.Rating,
		Content:   rv.Content,
		CreatedAt: rv.CreatedAt,
	}
}

// ReviewInput holds a new review.
type ReviewInput struct {
	Rating  *int   `json:"rating"`
	Content string `json:"content"`
}

// LikeResult is the state after a like or favorite toggle.
type LikeResult struct {
	Active     bool `json:"active"`
	LikesCount int  `json:"likes_count"`
}

// SocialService handles follows, likes, favorites, reviews and
// notifications.
type SocialService struct {
	repo SocialStore
	now  clock
}

// NewSocialService creates a new social service.
func NewSocialService(repo SocialStore) *SocialService {
	return &SocialService{repo: repo}
}

// notify stores a notification. Failures are logged and do not fail the
// triggering action.
func (s *SocialService) notify(ctx context.Context, recipient uuid.UUID, sender *database.Account, typ database.NotificationType, message, target string) {
	n := &database.Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		SenderID:    &sender.ID,
		Type:        typ,
		Message:     message,
		TargetURL:   target,
		CreatedAt:   s.now.now(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		slog.Error("failed to create notification",
			"recipient_id", recipient,
			"type", typ,
			"error", err,
		)
	}
}

func (s *SocialService) actor(ctx context.Context, viewer access.Viewer) (*database.Account, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	a, err := s.repo.GetAccount(ctx, viewer.ID)
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a, nil
}

func profileURL(username string) string { return "/profile/" + username }

func mediaURL(id uuid.UUID) string { return "/media/" + id.String() }

// ToggleFollow follows target, or undoes an existing follow or pending
// request. Following a private account creates a pending request.
func (s *SocialService) ToggleFollow(ctx context.Context, viewer access.Viewer, targetID uuid.UUID) (string, error) {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return "", err
	}
	if targetID == me.ID {
		return "", invalid("cannot follow yourself")
	}
	target, err := s.repo.GetAccount(ctx, targetID)
	if err != nil {
		return "", notFound(err, "account")
	}

	_, err = s.repo.GetFollow(ctx, me.ID, target.ID)
	switch {
	case err == nil:
		if err := s.repo.DeleteFollow(ctx, me.ID, target.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return "", err
		}
		slog.Info("unfollowed", "follower_id", me.ID, "followed_id", target.ID)
		return FollowStateUnfollowed, nil
	case !errors.Is(err, database.ErrNotFound):
		return "", err
	}

	f := &database.Follow{
		FollowerID: me.ID,
		FollowedID: target.ID,
		Accepted:   !target.IsPrivate,
		CreatedAt:  s.now.now(),
	}
	if err := s.repo.CreateFollow(ctx, f); err != nil {
		return "", conflict(err, "follow")
	}

	if !f.Accepted {
		s.notify(ctx, target.ID, me, database.NotifyFollowRequest,
			fmt.Sprintf("%s requested to follow you", me.Username), profileURL(me.Username))
		slog.Info("follow requested", "follower_id", me.ID, "followed_id", target.ID)
		return FollowStateRequested, nil
	}
	s.notify(ctx, target.ID, me, database.NotifyFollow,
		fmt.Sprintf("%s started following you", me.Username), profileURL(me.Username))
	slog.Info("followed", "follower_id", me.ID, "followed_id", target.ID)
	return FollowStateFollowing, nil
}

// AcceptFollow accepts a pending request from followerID to the viewer.
func (s *SocialService) AcceptFollow(ctx context.Context, viewer access.Viewer, followerID uuid.UUID) error {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return err
	}
	if err := s.repo.AcceptFollow(ctx, followerID, me.ID); err != nil {
		return notFound(err, "follow request")
	}
	if _, err := s.repo.MarkNotificationsRead(ctx, me.ID, &followerID, database.NotifyFollowRequest); err != nil {
		return err
	}
	s.notify(ctx, followerID, me, database.NotifyFollowAccept,
		fmt.Sprintf("%s accepted your follow request", me.Username), profileURL(me.Username))
	return nil
}

// RejectFollow discards a pending request from followerID to the viewer.
func (s *SocialService) RejectFollow(ctx context.Context, viewer access.Viewer, followerID uuid.UUID) error {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return err
	}
	f, err := s.repo.GetFollow(ctx, followerID, me.ID)
	if err != nil {
		return notFound(err, "follow request")
	}
	if f.Accepted {
		return fmt.Errorf("%w: follow request", ErrNotFound)
	}
	if err := s.repo.DeleteFollow(ctx, followerID, me.ID); err != nil {
		return notFound(err, "follow request")
	}
	_, err = s.repo.MarkNotificationsRead(ctx, me.ID, &followerID, database.NotifyFollowRequest)
	return err
}

// visibleMedia loads a media item and applies the visibility gate.
func (s *SocialService) visibleMedia(ctx context.Context, viewer access.Viewer, id uuid.UUID) (*database.MediaItem, error) {
	m, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, notFound(err, "media")
	}
	following := false
	if viewer.Authenticated && !viewer.Owns(m.OwnerID) {
		if following, err = s.repo.IsFollowing(ctx, viewer.ID, m.OwnerID); err != nil {
			return nil, err
		}
	}
	if !access.CanView(viewer, m.Access(), following) {
		return nil, deny(access.ErrPrivate)
	}
	return m, nil
}

// ToggleLike likes or unlikes a media item.
func (s *SocialService) ToggleLike(ctx context.Context, viewer access.Viewer, mediaID uuid.UUID) (*LikeResult, error) {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	m, err := s.visibleMedia(ctx, viewer, mediaID)
	if err != nil {
		return nil, err
	}

	liked, err := s.repo.ToggleLike(ctx, me.ID, m.ID)
	if err != nil {
		return nil, err
	}
	if liked && m.OwnerID != me.ID {
		s.notify(ctx, m.OwnerID, me, database.NotifyLike,
			fmt.Sprintf("%s liked %q", me.Username, m.Title), mediaURL(m.ID))
	}

	count, err := s.repo.CountLikes(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Active: liked, LikesCount: count}, nil
}

// ToggleFavorite adds or removes a media item from the viewer's favorites.
func (s *SocialService) ToggleFavorite(ctx context.Context, viewer access.Viewer, mediaID uuid.UUID) (*LikeResult, error) {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	m, err := s.visibleMedia(ctx, viewer, mediaID)
	if err != nil {
		return nil, err
	}

	fav, err := s.repo.ToggleFavorite(ctx, me.ID, m.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountLikes(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Active: fav, LikesCount: count}, nil
}

// ListReviews returns the reviews of a visible media item, newest first.
func (s *SocialService) ListReviews(ctx context.Context, viewer access.Viewer, mediaID uuid.UUID) ([]Review, error) {
	m, err := s.visibleMedia(ctx, viewer, mediaID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Review, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, summarizeReview(rv))
	}
	return out, nil
}

// CreateReview adds a review to a visible media item.
func (s *SocialService) CreateReview(ctx context.Context, viewer access.Viewer, mediaID uuid.UUID, in ReviewInput) (*Review, error) {
	me, err := s.actor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	m, err := s.visibleMedia(ctx, viewer, mediaID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalid("review must not be empty")
	}
	if len(content) > maxReviewLength {
		return nil, invalid("review exceeds %d characters", maxReviewLength)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, invalid("rating must be between 1 and 5")
	}

	now := s.now.now()
	rv := &database.Review{
		ID:        uuid.New(),
		AccountID: me.ID,
		MediaID:   m.ID,
		Rating:    in.Rating,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		Username:  me.Username,
	}
	if err := s.repo.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	if m.OwnerID != me.ID {
		s.notify(ctx, m.OwnerID, me, database.NotifyComment,
			fmt.Sprintf("%s commented on %q", me.Username, m.Title), mediaURL(m.ID))
	}

	out := summarizeReview(rv)
	return &out, nil
}

// Notifications returns the viewer's latest notifications.
func (s *SocialService) Notifications(ctx context.Context, viewer access.Viewer, unreadOnly bool) ([]Notification, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotifications(ctx, viewer.ID, unreadOnly, notificationLimit)
	if err != nil {
		return nil, err
	}
	return summarizeNotifications(notes), nil
}

// MarkAllRead marks every unread notification of the viewer as read.
func (s *SocialService) MarkAllRead(ctx context.Context, viewer access.Viewer) (int64, error) {
	if err := requireAuth(viewer); err != nil {
		return 0, err
	}
	return s.repo.MarkNotificationsRead(ctx, viewer.ID, nil, "")
}
