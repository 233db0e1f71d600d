package notifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	pushEvent = "notification:new"

	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// ErrUnexpectedStatus is returned for any non-2xx API response.
var ErrUnexpectedStatus = errors.New("unexpected status")

type push struct {
	Event        string       `json:"event"`
	Notification Notification `json:"notification"`
}

// Client keeps a Projection current from the push channel and a periodic
// poll of the notification API.
type Client struct {
	baseURL      *url.URL
	token        string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	projection   *Projection
	pollInterval time.Duration
	timeout      time.Duration
	onChange     func(Snapshot)
	now          func() time.Time
}

type option func(*Client)

// New creates a client for the API at baseURL authenticating with token.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func New(baseURL, token string, opts ...option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", u.Scheme)
	}

	c := &Client{
		baseURL:      u,
		token:        token,
		httpClient:   http.DefaultClient,
		dialer:       websocket.DefaultDialer,
		projection:   NewProjection(DefaultWindow),
		pollInterval: defaultPollInterval,
		timeout:      defaultRequestTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithHTTPClient(hc *http.Client) option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithDialer(d *websocket.Dialer) option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithPollInterval sets how often the unread count is resynced.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPollInterval(d time.Duration) option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithWindow sets how many notifications the projection keeps.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithWindow(n int) option {
	return func(c *Client) {
		c.projection = NewProjection(n)
	}
}

// WithOnChange registers a callback run after every projection update. It
// is called from the client's goroutines and must not block.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOnChange(fn func(Snapshot)) option {
	return func(c *Client) {
		c.onChange = fn
	}
}

// Projection exposes the local state.
func (c *Client) Projection() *Projection {
	return c.projection
}

// Run polls and listens for pushes until ctx is done. A broken push
// connection is redialed with backoff while polling keeps the state
// converging.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.pollLoop(ctx)
		return nil
	})

	g.Go(func() error {
		c.pushLoop(ctx)
		return nil
	})

	return g.Wait()
}

func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Notification poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) pushLoop(ctx context.Context) {
	backoff := retry.WithCappedDuration(maxReconnectDelay, retry.NewExponential(500*time.Millisecond))

	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("Push connection lost", "error", err)

		// a reconnect may have missed frames
		if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Resync after disconnect failed", "error", err)
		}

		return retry.RetryableError(err)
	})
}

// listen reads frames from one connection until it breaks or ctx is done.
func (c *Client) listen(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial push channel: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var frame push
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("failed to read push frame: %w", err)
		}

		if frame.Event != pushEvent {
			continue
		}

		c.projection.ApplyPush(frame.Notification)
		c.changed()
	}
}

// Sync fetches the newest page and replaces the unread count with the
// server's.
func (c *Client) Sync(ctx context.Context) error {
	q := url.Values{"limit": {strconv.Itoa(c.projection.window)}}

	var page Page
	if err := c.do(ctx, http.MethodGet, "/api/notifications?"+q.Encode(), &page); err != nil {
		return err
	}

	c.projection.ApplyPage(page)
	c.changed()

	return nil
}

// MarkRead marks one notification read on the server and locally.
func (c *Client) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodPost, "/api/notifications/"+id.String()+"/read", nil); err != nil {
		return err
	}

	c.projection.MarkRead(id, c.now())
	c.changed()

	return nil
}

// MarkAllRead marks everything read on the server and locally.
func (c *Client) MarkAllRead(ctx context.Context) error {
	var resp struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/notifications/read-all", &resp); err != nil {
		return err
	}

	c.projection.MarkAllRead(c.now())
	c.projection.SetUnreadCount(resp.UnreadCount)
	c.changed()

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w %d from %s %s: %s", ErrUnexpectedStatus, resp.StatusCode, method, path, body)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) wsURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	return u.String()
}

func (c *Client) changed() {
	if c.onChange != nil {
		c.onChange(c.projection.Snapshot())
	}
}
