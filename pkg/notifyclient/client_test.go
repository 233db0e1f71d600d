package notifyclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testToken = "token-1"

// fakeServer serves the notification API and a push channel the test can
// write frames into.
type fakeServer struct {
	t *testing.T

	mu     sync.Mutex
	page   Page
	read   []string
	conns  chan *websocket.Conn
	polled chan struct{}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()

	f := &fakeServer{
		t:      t,
		page:   Page{Items: []Notification{}},
		conns:  make(chan *websocket.Conn, 4),
		polled: make(chan struct{}, 16),
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
	})

	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.mu.Lock()
		page := f.page
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(page)
		select {
		case f.polled <- struct{}{}:
		default:
		}
	})

	mux.HandleFunc("POST /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.mu.Lock()
		f.read = append(f.read, r.PathValue("id"))
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{"id": r.PathValue("id"), "read": true})
	})

	mux.HandleFunc("POST /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"updated": 2, "unreadCount": 0})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeServer) setPage(p Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = p
}

func TestClient_Sync(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		page    Page
		wantErr error
	}{
		{
			name:  "replaces count and merges items",
			token: testToken,
			page:  Page{Items: []Notification{fakeNotification(1)}, UnreadCount: 7},
		},
		{
			name:    "unauthorized",
			token:   "wrong",
			wantErr: ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeServer(t)
			f.setPage(tt.page)

			c, err := New(srv.URL, tt.token)
			require.NoError(t, err)

			err = c.Sync(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			snap := c.Projection().Snapshot()
			assert.Equal(t, tt.page.UnreadCount, snap.UnreadCount)
			assert.Len(t, snap.Items, len(tt.page.Items))
		})
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", testToken)
	require.Error(t, err)
}

func TestClient_MarkRead(t *testing.T) {
	f, srv := newFakeServer(t)
	n := fakeNotification(1)
	f.setPage(Page{Items: []Notification{n}, UnreadCount: 1})

	c, err := New(srv.URL, testToken)
	require.NoError(t, err)
	require.NoError(t, c.Sync(context.Background()))

	require.NoError(t, c.MarkRead(context.Background(), n.ID))
	require.NoError(t, c.MarkRead(context.Background(), n.ID))

	snap := c.Projection().Snapshot()
	assert.Zero(t, snap.UnreadCount)
	assert.True(t, snap.Items[0].Read)

	f.mu.Lock()
	assert.Equal(t, []string{n.ID.String(), n.ID.String()}, f.read)
	f.mu.Unlock()

	require.NoError(t, c.MarkAllRead(context.Background()))
	assert.Zero(t, c.Projection().Snapshot().UnreadCount)
}

func TestClient_RunReceivesPushesAndPolls(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	f, srv := newFakeServer(t)
	hc := &http.Client{Transport: &http.Transport{}}

	changes := make(chan Snapshot, 16)
	c, err := New(srv.URL, testToken,
		WithPollInterval(time.Hour),
		WithHTTPClient(hc),
		WithDialer(&websocket.Dialer{HandshakeTimeout: 5 * time.Second}),
		WithOnChange(func(s Snapshot) {
			select {
			case changes <- s:
			default:
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// initial poll
	select {
	case <-f.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("client never polled")
	}

	var conn *websocket.Conn
	select {
	case conn = <-f.conns:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}

	n := fakeNotification(1)
	require.NoError(t, conn.WriteJSON(push{Event: "something:else", Notification: fakeNotification(2)}))
	require.NoError(t, conn.WriteJSON(push{Event: pushEvent, Notification: n}))

	require.Eventually(t, func() bool {
		snap := c.Projection().Snapshot()
		return snap.UnreadCount == 1 && len(snap.Items) == 1 && snap.Items[0].ID == n.ID
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, changes)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}

	_ = conn.Close()
	hc.CloseIdleConnections()
	srv.Close()
	goleak.VerifyNone(t, ignore)
}

func TestClient_ResyncsAfterDisconnect(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	f, srv := newFakeServer(t)
	hc := &http.Client{Transport: &http.Transport{}}

	c, err := New(srv.URL, testToken, WithPollInterval(time.Hour), WithHTTPClient(hc))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-f.polled
	first := <-f.conns

	// a notification written while the push channel was down
	missed := Notification{ID: uuid.New(), Title: "missed", CreatedAt: base}
	f.setPage(Page{Items: []Notification{missed}, UnreadCount: 1})
	require.NoError(t, first.Close())

	select {
	case <-f.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("no resync after disconnect")
	}

	require.Eventually(t, func() bool {
		return c.Projection().Snapshot().UnreadCount == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// a reconnection may have raced the cancel
	select {
	case conn := <-f.conns:
		_ = conn.Close()
	default:
	}

	hc.CloseIdleConnections()
	srv.Close()
	goleak.VerifyNone(t, ignore)
}
