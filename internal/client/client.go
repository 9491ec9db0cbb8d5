package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Media is the server's summary of an uploaded item.
type Media struct {
	ID        string  `json:"id"`
	FolderID  *string `json:"folder_id,omitempty"`
	Title     string  `json:"title"`
	MediaType string  `json:"media_type"`
	Size      int64   `json:"size"`
	IsPrivate bool    `json:"is_private"`
}

// QuotaUsage is one media type's download usage for the day.
type QuotaUsage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// Quota is the caller's download usage for the current UTC day.
type Quota struct {
	Day     string                `json:"day"`
	ResetAt time.Time             `json:"reset_at"`
	Usage   map[string]QuotaUsage `json:"usage"`
}

// UploadOptions apply to every file of an upload.
type UploadOptions struct {
	FolderID  string
	IsPrivate bool
}

// Client talks to a media vault server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL. token may be empty for
// anonymous calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// Upload streams one file to the server as a multipart form.
func (c *Client) Upload(ctx context.Context, f *File, opts UploadOptions) (*Media, error) {
	src, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, src, f, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var m Media
	if err := c.do(req, http.StatusCreated, &m); err != nil {
		pr.Close()
		return nil, err
	}
	return &m, nil
}

func writeUpload(mw *multipart.Writer, src io.Reader, f *File, opts UploadOptions) error {
	fields := map[string]string{"relative_path": f.RelativePath()}
	if opts.FolderID != "" {
		fields["folder_id"] = opts.FolderID
	}
	if opts.IsPrivate {
		fields["is_private"] = "true"
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", f.name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// Download asks the server to authorize a download, then saves the file
// under destDir. It returns the path written.
func (c *Client) Download(ctx context.Context, mediaID, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return "", err
	}
	var grant struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
	if err := c.do(req, http.StatusOK, &grant); err != nil {
		return "", err
	}

	// The link is self-authorizing; no bearer token is sent with it.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, grant.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	dest := filepath.Join(destDir, attachmentName(resp, mediaID))
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return dest, out.Close()
}

// attachmentName picks a local file name for a download response.
func attachmentName(resp *http.Response, fallback string) string {
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
			return name
		}
	}
	if name := path.Base(resp.Request.URL.Path); name != "." && name != "/" {
		return name
	}
	return fallback
}

// Quota returns the caller's download usage for today.
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/downloads/quota", nil)
	if err != nil {
		return nil, err
	}
	var q Quota
	if err := c.do(req, http.StatusOK, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil {
		body.Error = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// FormatSize renders a byte count for humans.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
