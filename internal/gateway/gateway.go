package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"pagecal/internal/logging"
	"pagecal/internal/metrics"
	"pagecal/internal/model"
	"pagecal/internal/statusutil"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

type Options struct {
	// BaseURL is the API origin, e.g. http://localhost:8000. Paths are /api/...
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Transport is the base round tripper (defaults to http.DefaultTransport).
	Transport http.RoundTripper
	Logger    *slog.Logger
	// Now is used for metrics cache busting.
	Now func() time.Time
}

// Client is the remote data gateway. It issues one request per call with no
// client-side timeout or retry. Only the user list is cached.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	usersMu     sync.Mutex
	users       []model.User
	usersLoaded bool
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url: unsupported scheme %q", u.Scheme)
	}

	var rt http.RoundTripper = metrics.Transport(opts.Transport)
	if tok := strings.TrimSpace(opts.Token); tok != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}),
			Base:   rt,
		}
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Transport: rt},
		logger: opts.Logger,
		now:    opts.Now,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	if l := logging.FromContext(ctx); l != nil {
		return l
	}
	return c.logger
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log := c.loggerFor(ctx).With("method", method, "path", path, "request_id", reqID)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("api request failed", "err", err)
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("api response read failed", "status", resp.StatusCode, "err", err)
		return &TransportError{Op: method + " " + path, Err: err}
	}
	log.Debug("api request", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: parseDetail(b)}
		log.Warn("api request rejected", "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, nil, body, contentType, out)
}

func pagePath(id int64) string {
	return "/api/pages/" + strconv.FormatInt(id, 10)
}

// ListPages returns the calendar feed, optionally limited to pages starting in [start, end].
func (c *Client) ListPages(ctx context.Context, start, end *time.Time) ([]model.Page, error) {
	q := url.Values{}
	if start != nil {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if end != nil {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}
	var pages []model.Page
	if err := c.do(metrics.WithRoute(ctx, "/api/pages"), http.MethodGet, "/api/pages", q, nil, "", &pages); err != nil {
		return nil, err
	}
	for i := range pages {
		statusutil.NormalizePage(&pages[i])
	}
	if pages == nil {
		pages = []model.Page{}
	}
	return pages, nil
}

func (c *Client) GetPage(ctx context.Context, id int64) (model.Page, error) {
	var p model.Page
	if err := c.doJSON(metrics.WithRoute(ctx, "/api/pages/{id}"), http.MethodGet, pagePath(id), nil, &p); err != nil {
		return model.Page{}, err
	}
	statusutil.NormalizePage(&p)
	return p, nil
}

func (c *Client) CreatePage(ctx context.Context, in model.PagePayload) (model.Page, error) {
	var p model.Page
	if err := c.doJSON(metrics.WithRoute(ctx, "/api/pages"), http.MethodPost, "/api/pages", in, &p); err != nil {
		return model.Page{}, err
	}
	statusutil.NormalizePage(&p)
	return p, nil
}

// UpdatePage replaces the page with the full payload.
func (c *Client) UpdatePage(ctx context.Context, id int64, in model.PagePayload) (model.Page, error) {
	var p model.Page
	if err := c.doJSON(metrics.WithRoute(ctx, "/api/pages/{id}"), http.MethodPut, pagePath(id), in, &p); err != nil {
		return model.Page{}, err
	}
	statusutil.NormalizePage(&p)
	return p, nil
}

func (c *Client) DeletePage(ctx context.Context, id int64) error {
	return c.doJSON(metrics.WithRoute(ctx, "/api/pages/{id}"), http.MethodDelete, pagePath(id), nil, nil)
}

// SetStatus refreshes the page and re-sends it with only the status changed.
func (c *Client) SetStatus(ctx context.Context, id int64, status model.Status) (model.Page, error) {
	cur, err := c.GetPage(ctx, id)
	if err != nil {
		return model.Page{}, err
	}
	payload := cur.Payload()
	payload.Status = status
	return c.UpdatePage(ctx, id, payload)
}

// Users returns the user directory, fetching it once per client.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	c.usersMu.Lock()
	if c.usersLoaded {
		out := append([]model.User(nil), c.users...)
		c.usersMu.Unlock()
		return out, nil
	}
	c.usersMu.Unlock()

	var users []model.User
	if err := c.doJSON(metrics.WithRoute(ctx, "/api/users"), http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if r, ok := statusutil.NormalizeRole(string(users[i].Role)); ok {
			users[i].Role = r
		}
	}

	c.usersMu.Lock()
	c.users = users
	c.usersLoaded = true
	c.usersMu.Unlock()
	return append([]model.User(nil), users...), nil
}

func (c *Client) InvalidateUsers() {
	c.usersMu.Lock()
	c.users = nil
	c.usersLoaded = false
	c.usersMu.Unlock()
}

// Metrics fetches the role-scoped dashboard aggregates.
func (c *Client) Metrics(ctx context.Context) (model.Metrics, error) {
	q := url.Values{}
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	var m model.Metrics
	if err := c.do(metrics.WithRoute(ctx, "/api/metrics"), http.MethodGet, "/api/metrics", q, nil, "", &m); err != nil {
		return model.Metrics{}, err
	}
	if r, ok := statusutil.NormalizeRole(string(m.Role)); ok {
		m.Role = r
	}
	return m, nil
}

// Upload sends a file as multipart form field "file" and returns its public URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (model.Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return model.Upload{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return model.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Upload{}, err
	}
	var out model.Upload
	if err := c.do(metrics.WithRoute(ctx, "/api/upload"), http.MethodPost, "/api/upload", nil, &buf, mw.FormDataContentType(), &out); err != nil {
		return model.Upload{}, err
	}
	if strings.TrimSpace(out.URL) == "" {
		return model.Upload{}, errors.New("upload: response has no url")
	}
	return out, nil
}

// ResolveURL turns a server-relative upload URL into an absolute one.
func (c *Client) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.base + "/" + strings.TrimLeft(ref, "/")
}
