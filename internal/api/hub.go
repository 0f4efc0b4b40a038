package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/survivalskills/internal/engine"
	"github.com/udisondev/survivalskills/internal/model"
)

const (
	defaultWriteWait    = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	notifyBuffer        = 1024
)

// SnapshotSource renders a player's projection.
type SnapshotSource interface {
	Snapshot(ctx context.Context, id model.PlayerID) engine.Snapshot
}

// subscriberConn is the slice of *websocket.Conn the hub writes to.
type subscriberConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	mu   sync.Mutex
	conn subscriberConn
}

// write sends one frame under the subscriber lock with a fresh deadline.
func (s *subscriber) write(messageType int, data []byte, wait time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wait))
	return s.conn.WriteMessage(messageType, data)
}

// feedMessage is one frame of the display feed.
type feedMessage struct {
	Type       string          `json:"type"`
	Snapshot   engine.Snapshot `json:"snapshot"`
	ServerTime int64           `json:"serverTime"`
}

// Hub pushes snapshots to websocket subscribers whenever the engine reports a
// change. It implements engine.Notifier; Notify never blocks.
type Hub struct {
	source    SnapshotSource
	writeWait time.Duration
	pingEvery time.Duration

	mu          sync.Mutex
	subscribers map[model.PlayerID]map[*subscriber]struct{}

	changes chan model.PlayerID
}

// NewHub creates a Hub. Zero durations fall back to defaults.
func NewHub(source SnapshotSource, writeWait, pingEvery time.Duration) *Hub {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	if pingEvery <= 0 {
		pingEvery = defaultPingInterval
	}
	return &Hub{
		source:      source,
		writeWait:   writeWait,
		pingEvery:   pingEvery,
		subscribers: make(map[model.PlayerID]map[*subscriber]struct{}),
		changes:     make(chan model.PlayerID, notifyBuffer),
	}
}

// Notify queues a push for the player. Drops the event when the queue is full.
func (h *Hub) Notify(id model.PlayerID) {
	select {
	case h.changes <- id:
	default:
		slog.Debug("feed queue full, change dropped", "player", id)
	}
}

// subscribe registers conn for the player's feed and sends the current snapshot.
// Registration comes first so no change between the two is lost.
func (h *Hub) subscribe(ctx context.Context, id model.PlayerID, conn subscriberConn) (*subscriber, error) {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	set, ok := h.subscribers[id]
	if !ok {
		set = make(map[*subscriber]struct{}, 1)
		h.subscribers[id] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	data, err := h.marshal(ctx, id)
	if err == nil {
		err = sub.write(websocket.TextMessage, data, h.writeWait)
	}
	if err != nil {
		h.unsubscribe(id, sub)
		return nil, err
	}
	return sub, nil
}

// unsubscribe removes sub and closes its connection.
func (h *Hub) unsubscribe(id model.PlayerID, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subscribers[id]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, id)
		}
	}
	h.mu.Unlock()
	sub.conn.Close()
}

// SubscriberCount returns the number of live connections.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int
	for _, set := range h.subscribers {
		n += len(set)
	}
	return n
}

// Run delivers queued changes and pings subscribers until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case id := <-h.changes:
			h.push(ctx, id)
		case <-ticker.C:
			h.ping()
		case <-ctx.Done():
			h.closeAll()
			return nil
		}
	}
}

// push sends the player's snapshot to all of their subscribers.
func (h *Hub) push(ctx context.Context, id model.PlayerID) {
	subs := h.subscribersOf(id)
	if len(subs) == 0 {
		return
	}

	data, err := h.marshal(ctx, id)
	if err != nil {
		slog.Error("marshal feed snapshot", "player", id, "error", err)
		return
	}

	for _, sub := range subs {
		if err := sub.write(websocket.TextMessage, data, h.writeWait); err != nil {
			slog.Debug("feed write failed, dropping subscriber", "player", id, "error", err)
			h.unsubscribe(id, sub)
		}
	}
}

func (h *Hub) ping() {
	h.mu.Lock()
	all := make(map[*subscriber]model.PlayerID)
	for id, set := range h.subscribers {
		for sub := range set {
			all[sub] = id
		}
	}
	h.mu.Unlock()

	for sub, id := range all {
		if err := sub.write(websocket.PingMessage, nil, h.writeWait); err != nil {
			h.unsubscribe(id, sub)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[model.PlayerID]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), h.writeWait)
			sub.conn.Close()
		}
	}
}

func (h *Hub) subscribersOf(id model.PlayerID) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subscribers[id]
	out := make([]*subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) marshal(ctx context.Context, id model.PlayerID) ([]byte, error) {
	return json.Marshal(feedMessage{
		Type:       "snapshot",
		Snapshot:   h.source.Snapshot(ctx, id),
		ServerTime: time.Now().UnixMilli(),
	})
}
