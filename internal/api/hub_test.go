package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/model"
)

type recordingConn struct {
	mu       sync.Mutex
	frames   [][]byte
	types    []int
	failNext bool
	closed   bool
}

func (c *recordingConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return errors.New("broken pipe")
	}
	c.types = append(c.types, messageType)
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type staticSource struct{}

func (staticSource) Snapshot(_ context.Context, id model.PlayerID) engine.Snapshot {
	return engine.Snapshot{PlayerID: id, PointsAvailable: 3}
}

func TestHub_SubscribeSendsInitialSnapshot(t *testing.T) {
	h := NewHub(staticSource{}, 0, 0)
	conn := &recordingConn{}

	_, err := h.subscribe(context.Background(), "p1", conn)
	require.NoError(t, err)
	require.Equal(t, 1, conn.count())
	assert.Equal(t, websocket.TextMessage, conn.types[0])

	var msg feedMessage
	require.NoError(t, json.Unmarshal(conn.frames[0], &msg))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, model.PlayerID("p1"), msg.Snapshot.PlayerID)
	assert.Equal(t, int32(3), msg.Snapshot.PointsAvailable)
	assert.Equal(t, 1, h.SubscriberCount())
}

func TestHub_PushOnlyToPlayer(t *testing.T) {
	h := NewHub(staticSource{}, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := &recordingConn{}, &recordingConn{}
	_, err := h.subscribe(ctx, "a", a)
	require.NoError(t, err)
	_, err = h.subscribe(ctx, "b", b)
	require.NoError(t, err)

	go h.Run(ctx)
	h.Notify("a")
	h.Notify("nobody")

	require.Eventually(t, func() bool { return a.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, b.count())
}

func TestHub_DropsBrokenSubscriber(t *testing.T) {
	h := NewHub(staticSource{}, 0, 0)
	conn := &recordingConn{}
	_, err := h.subscribe(context.Background(), "p1", conn)
	require.NoError(t, err)

	conn.mu.Lock()
	conn.failNext = true
	conn.mu.Unlock()

	h.push(context.Background(), "p1")
	assert.Equal(t, 0, h.SubscriberCount())
	assert.True(t, conn.closed)
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	h := NewHub(staticSource{}, 0, 0)
	done := make(chan struct{})
	go func() {
		for range notifyBuffer * 2 {
			h.Notify("p1")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no consumer")
	}
}

func TestHub_RunClosesOnCancel(t *testing.T) {
	h := NewHub(staticSource{}, 0, 0)
	conn := &recordingConn{}
	_, err := h.subscribe(context.Background(), "p1", conn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))
	assert.True(t, conn.closed)
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestFeed_WebsocketReceivesChanges(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.Hub().Run(ctx)

	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?player=p1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		resp.Body.Close()
	})

	read := func() feedMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg feedMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	}

	initial := read()
	assert.Equal(t, int32(0), initial.Snapshot.PointsAvailable)

	w := f.do(t, http.MethodPost, "/api/admin/players/p1/points", gin.H{"points": 7}, testToken)
	require.Equal(t, http.StatusOK, w.Code)

	update := read()
	assert.Equal(t, int32(7), update.Snapshot.PointsAvailable)
}

func TestFeed_MissingPlayer(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/ws", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
