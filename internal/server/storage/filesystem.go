package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")

	ErrInvalidSignature = errors.New("invalid link signature")
	ErrLinkExpired      = errors.New("link expired")
)

// Store defines the interface for media object backends.
type Store interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	URL(ctx context.Context, key, filename string) (string, error)
	Delete(ctx context.Context, key string) error
	EnsureDir(ctx context.Context) error
}

// FileSystemStore stores media objects on the local filesystem. Its links
// point at baseURL/media/ and carry an expiring HMAC signature that the
// server checks with Open before serving the file.
type FileSystemStore struct {
	basePath string
	baseURL  string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewFileSystemStore creates a new filesystem storage backend. Links stay
// valid for ttl.
func NewFileSystemStore(basePath, baseURL string, secret []byte, ttl time.Duration) *FileSystemStore {
	return &FileSystemStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Root returns the storage directory.
func (fs *FileSystemStore) Root() string {
	return fs.basePath
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir(ctx context.Context) error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data from a reader to the file for key, creating parent
// directories. Returns the number of bytes written.
func (fs *FileSystemStore) Save(ctx context.Context, key string, data io.Reader) (int64, error) {
	filePath, err := fs.filePath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// URL returns a signed, expiring link to a stored object. The filename is
// used for the attachment name when the link is served.
func (fs *FileSystemStore) URL(ctx context.Context, key, filename string) (string, error) {
	filePath, err := fs.filePath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object %s not found", key)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	expires := strconv.FormatInt(fs.now().Add(fs.ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("filename", filename)
	q.Set("sig", fs.sign(key, expires, filename))

	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fs.baseURL + "/media/" + strings.Join(segments, "/") + "?" + q.Encode(), nil
}

// Open verifies a link produced by URL and returns the local path of the
// object and its attachment filename.
func (fs *FileSystemStore) Open(key string, query url.Values) (filePath, filename string, err error) {
	filePath, err = fs.filePath(key)
	if err != nil {
		return "", "", err
	}

	expires, filename, sig := query.Get("expires"), query.Get("filename"), query.Get("sig")
	want, err := hex.DecodeString(sig)
	if err != nil || sig == "" {
		return "", "", ErrInvalidSignature
	}
	got, _ := hex.DecodeString(fs.sign(key, expires, filename))
	if !hmac.Equal(want, got) {
		return "", "", ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", "", ErrInvalidSignature
	}
	if fs.now().After(time.Unix(unix, 0)) {
		return "", "", ErrLinkExpired
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("object %s not found", key)
		}
		return "", "", fmt.Errorf("failed to stat file: %w", err)
	}
	if filename == "" {
		filename = path.Base(key)
	}
	return filePath, filename, nil
}

func (fs *FileSystemStore) sign(key, expires, filename string) string {
	mac := hmac.New(sha256.New, fs.secret)
	mac.Write([]byte(key + "\n" + expires + "\n" + filename))
	return hex.EncodeToString(mac.Sum(nil))
}

// Delete removes the stored object for key.
func (fs *FileSystemStore) Delete(ctx context.Context, key string) error {
	filePath, err := fs.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

func (fs *FileSystemStore) filePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(fs.basePath, filepath.FromSlash(key)), nil
}
