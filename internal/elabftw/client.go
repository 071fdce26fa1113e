package elabftw

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrMissingLocation is returned when a create call succeeds but the server
// does not report the new resource's Location.
var ErrMissingLocation = errors.New("response has no Location header")

// ClientConfig holds the connection settings for an eLabFTW instance.
type ClientConfig struct {
	// HostURL is the API base URL including the version prefix
	// (e.g. "https://elab.example.org/api/v2").
	HostURL string
	// APIKey is the credential sent in the Authorization header.
	APIKey string
	// Insecure disables TLS certificate verification.
	Insecure bool
	// Timeout is the per-request timeout. Zero means 30 seconds.
	Timeout time.Duration
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Client talks to one eLabFTW instance.
type Client struct {
	http      *http.Client
	base      *url.URL
	apiKey    string
	userAgent string
}

// NewClient creates a Client. It performs no network calls.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HostURL == "" {
		return nil, fmt.Errorf("host URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.HostURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse host URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	hc := &http.Client{Timeout: timeout}
	if cfg.Insecure {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "rspace2elabftw/1.0"
	}

	return &Client{
		http:      hc,
		base:      base,
		apiKey:    cfg.APIKey,
		userAgent: ua,
	}, nil
}

// CreateEntity creates an experiment or template and returns its new ID,
// parsed from the Location header.
func (c *Client) CreateEntity(ctx context.Context, typ EntityType, req CreateEntityRequest) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(string(typ)), jsonBody(req))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", typ, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("create %s: %w", typ, apiError(resp))
	}
	id, err := locationID(resp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", typ, err)
	}
	return id, nil
}

// PatchEntity updates an existing entity, typically to set its body after
// all uploads are in place.
func (c *Client) PatchEntity(ctx context.Context, typ EntityType, id int, req PatchEntityRequest) error {
	resp, err := c.do(ctx, http.MethodPatch, c.endpoint(string(typ), strconv.Itoa(id)), jsonBody(req))
	if err != nil {
		return fmt.Errorf("patch %s/%d: %w", typ, id, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("patch %s/%d: %w", typ, id, apiError(resp))
	}
	return nil
}

// UploadFile attaches the file at srcPath to an entity and returns the new
// upload ID. comment becomes the attachment's description in eLabFTW.
func (c *Client) UploadFile(ctx context.Context, typ EntityType, id int, srcPath, comment string) (int, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
	}
	defer f.Close()
	return c.Upload(ctx, typ, id, filepath.Base(srcPath), comment, f)
}

// Upload attaches arbitrary content to an entity and returns the new upload
// ID, parsed from the Location header.
func (c *Client) Upload(ctx context.Context, typ EntityType, id int, filename, comment string, content io.Reader) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := createFilePart(mw, filename)
	if err != nil {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return 0, fmt.Errorf("upload to %s/%d: read content: %w", typ, id, err)
	}
	if comment != "" {
		if err := mw.WriteField("comment", comment); err != nil {
			return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
	}

	body := requestBody{reader: &buf, contentType: mw.FormDataContentType()}
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(string(typ), strconv.Itoa(id), "uploads"), body)
	if err != nil {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, apiError(resp))
	}
	uploadID, err := locationID(resp)
	if err != nil {
		return 0, fmt.Errorf("upload to %s/%d: %w", typ, id, err)
	}
	return uploadID, nil
}

// ReadUpload fetches the metadata of a stored upload, including its
// server-side long name.
func (c *Client) ReadUpload(ctx context.Context, typ EntityType, id, uploadID int) (*Upload, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(string(typ), strconv.Itoa(id), "uploads", strconv.Itoa(uploadID)), requestBody{})
	if err != nil {
		return nil, fmt.Errorf("read upload %d of %s/%d: %w", uploadID, typ, id, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("read upload %d of %s/%d: %w", uploadID, typ, id, apiError(resp))
	}

	var up Upload
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return nil, fmt.Errorf("read upload %d of %s/%d: decode response: %w", uploadID, typ, id, err)
	}
	return &up, nil
}

// CurrentUser returns the account the API key belongs to. Used to verify
// connectivity and credentials.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("users", "me"), requestBody{})
	if err != nil {
		return nil, fmt.Errorf("read current user: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("read current user: %w", apiError(resp))
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("read current user: decode response: %w", err)
	}
	return &u, nil
}

// requestBody pairs a request payload with its content type. A zero value
// means no body.
type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(v any) requestBody {
	raw, err := json.Marshal(v)
	if err != nil {
		// All request types marshal cleanly; a failure here is a programming
		// error surfaced on the next read.
		return requestBody{reader: errReader{err}, contentType: "application/json"}
	}
	return requestBody{reader: bytes.NewReader(raw), contentType: "application/json"}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{u.Path}, segments...)...)
	return u.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body requestBody) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body.reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// createFilePart adds the file form part with a content type guessed from
// the file extension.
func createFilePart(mw *multipart.Writer, filename string) (io.Writer, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	return mw.CreatePart(header)
}

// locationID parses the numeric resource ID from the Location header's last
// path segment.
func locationID(resp *http.Response) (int, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return 0, ErrMissingLocation
	}
	id, err := strconv.Atoi(path.Base(loc))
	if err != nil {
		return 0, fmt.Errorf("parse Location %q: %w", loc, err)
	}
	return id, nil
}

// apiError builds an APIError from a non-2xx response, picking up the
// server's JSON error message when present.
func apiError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Description != "" {
			apiErr.Message = payload.Description
		} else {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
