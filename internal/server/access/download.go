package access

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadPolicy controls who besides the owner may download an
// account's content.
type DownloadPolicy string

const (
	PolicyOpen       DownloadPolicy = "OPEN"
	PolicyFollowers  DownloadPolicy = "FOLLOWERS"
	PolicyRestricted DownloadPolicy = "RESTRICTED"
)

// Valid reports whether p is a known policy.
func (p DownloadPolicy) Valid() bool {
	switch p {
	case PolicyOpen, PolicyFollowers, PolicyRestricted:
		return true
	}
	return false
}

// MediaType classifies a media item. Only VIDEO and IMAGE carry a daily
// download quota.
type MediaType string

const (
	MediaVideo    MediaType = "VIDEO"
	MediaImage    MediaType = "IMAGE"
	MediaDocument MediaType = "DOCUMENT"
	MediaOther    MediaType = "OTHER"
)

var extensionTypes = map[string]MediaType{
	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage, ".gif": MediaImage,
	".webp": MediaImage, ".bmp": MediaImage, ".tiff": MediaImage,
	".mp4": MediaVideo, ".mov": MediaVideo, ".avi": MediaVideo, ".mkv": MediaVideo,
	".webm": MediaVideo, ".flv": MediaVideo, ".wmv": MediaVideo,
	".pdf": MediaDocument, ".doc": MediaDocument, ".docx": MediaDocument, ".txt": MediaDocument,
	".zip": MediaDocument, ".rar": MediaDocument, ".7z": MediaDocument, ".xls": MediaDocument,
	".xlsx": MediaDocument, ".ppt": MediaDocument, ".pptx": MediaDocument, ".csv": MediaDocument,
}

// DetectMediaType derives the media type from a file name's extension.
func DetectMediaType(filename string) MediaType {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return MediaOther
}

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	switch t {
	case MediaVideo, MediaImage, MediaDocument, MediaOther:
		return true
	}
	return false
}

// Denial is a refusal with a human-readable reason.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string {
	return d.Reason
}

var (
	ErrPrivate    = &Denial{Reason: "content is private"}
	ErrRestricted = &Denial{Reason: "restricted, no permission"}
	ErrMustFollow = &Denial{Reason: "must follow"}
	ErrVideoLimit = &Denial{Reason: "daily video limit reached"}
	ErrImageLimit = &Denial{Reason: "daily image limit reached"}
)

const (
	DailyVideoLimit = 3
	DailyImageLimit = 5
)

// Exempt reports whether the viewer downloads ownerID's content without
// policy or quota checks and without being charged.
func Exempt(v Viewer, ownerID uuid.UUID) bool {
	return v.Privileged(ownerID)
}

// CheckPolicy applies the uploader's download policy. The allow-list is
// only consulted under PolicyRestricted.
func CheckPolicy(v Viewer, policy DownloadPolicy, followAccepted, allowListed bool) error {
	switch policy {
	case PolicyRestricted:
		if v.IsUploader || v.IsSuperuser || allowListed {
			return nil
		}
		return ErrRestricted
	case PolicyFollowers:
		if followAccepted {
			return nil
		}
		return ErrMustFollow
	}
	return nil
}

// DailyLimit returns the per-day download limit for a media type and the
// denial used once it is reached. limited is false for unlimited types.
func DailyLimit(t MediaType) (limit int, denial *Denial, limited bool) {
	switch t {
	case MediaVideo:
		return DailyVideoLimit, ErrVideoLimit, true
	case MediaImage:
		return DailyImageLimit, ErrImageLimit, true
	}
	return 0, nil, false
}

// CheckQuota denies once today's count for the type has reached its limit.
func CheckQuota(t MediaType, todayCount int) error {
	limit, denial, limited := DailyLimit(t)
	if limited && todayCount >= limit {
		return denial
	}
	return nil
}

// DayStart returns midnight UTC of t's UTC calendar date. Quotas reset at
// this boundary for every viewer regardless of their local time zone.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
