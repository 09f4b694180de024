package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/mesh"
	"github.com/talgya/hexterrain/internal/meshio"
)

const (
	maxStreamClients = 16
	streamQueue      = 256
	maxSSEConns      = 4
	catchUpEvents    = 50
)

// streamMessage is one queued websocket write.
type streamMessage struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

// streamClient is one websocket connection.
type streamClient struct {
	id  string
	out chan streamMessage

	mu     sync.Mutex
	chunks map[int]bool // nil watches every chunk
}

func (c *streamClient) watches(chunkID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks == nil || c.chunks[chunkID]
}

func (c *streamClient) watch(ids []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		c.chunks = nil
		return
	}
	c.chunks = make(map[int]bool, len(ids))
	for _, id := range ids {
		c.chunks[id] = true
	}
}

// streamControl is what clients may send: {"type":"watch","chunks":[0,1]}.
// An empty chunk list watches everything again.
type streamControl struct {
	Type   string `json:"type"`
	Chunks []int  `json:"chunks"`
}

// Hub pushes rebuilt chunk meshes and world events to websocket clients.
// Meshes travel as binary frames (see meshio.EncodeFrame), events as JSON
// text messages.
type Hub struct {
	world    *engine.World
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*streamClient

	dropped atomic.Uint64
}

// NewHub creates a hub for w. Install it with w.SetMeshSink.
func NewHub(w *engine.World) *Hub {
	return &Hub{
		world: w,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*streamClient),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded for lagging clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ApplyMesh queues a rebuilt chunk layer for every client watching it.
// Runs inside the tick, so it never blocks.
func (h *Hub) ApplyMesh(chunkID int, layer mesh.Layer, m *mesh.Mesh) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	frame, err := meshio.EncodeFrame(chunkID, layer, m)
	if err != nil {
		slog.Error("mesh frame encode failed", "chunk", chunkID, "layer", layer, "error", err)
		return
	}
	msg := streamMessage{kind: websocket.BinaryMessage, data: frame}
	for id, c := range h.clients {
		if !c.watches(chunkID) {
			continue
		}
		select {
		case c.out <- msg:
		default:
			h.dropped.Add(1)
			slog.Debug("stream client lagging, frame dropped", "client", id, "chunk", chunkID)
		}
	}
}

func (h *Hub) register() (*streamClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamClients {
		return nil, false
	}
	c := &streamClient{id: uuid.NewString(), out: make(chan streamMessage, streamQueue)}
	h.clients[c.id] = c
	return c, true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection, sends a hello and every current chunk
// mesh, then streams updates until the client goes away.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	client, ok := h.register()
	if !ok {
		http.Error(rw, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer h.unregister(client)

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, events := h.world.Subscribe()
	defer h.world.Unsubscribe(subID)

	status := h.world.Status()
	hello := map[string]any{"type": "hello", "id": client.id, "tick": status.Tick, "chunks": status.Chunks}
	if err := writeWS(conn, websocket.TextMessage, mustJSON(hello)); err != nil {
		return
	}
	if err := h.catchUp(conn, status.Chunks); err != nil {
		return
	}
	slog.Info("stream client connected", "client", client.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine. Closing the connection unblocks the reader.
	go func() {
		defer conn.Close()
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-client.out:
				if err := writeWS(conn, m.kind, m.data); err != nil {
					cancel()
					return
				}
			case e, ok := <-events:
				if !ok {
					cancel()
					return
				}
				if err := writeWS(conn, websocket.TextMessage, mustJSON(map[string]any{"type": "event", "event": e})); err != nil {
					cancel()
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ctl streamControl
		if err := json.Unmarshal(msg, &ctl); err != nil || ctl.Type != "watch" {
			continue
		}
		client.watch(ctl.Chunks)
		slog.Debug("stream client watching", "client", client.id, "chunks", ctl.Chunks)
	}
	cancel()
	slog.Info("stream client disconnected", "client", client.id)
}

// catchUp writes the current mesh of every non-empty chunk layer.
func (h *Hub) catchUp(conn *websocket.Conn, chunks int) error {
	for id := 0; id < chunks; id++ {
		for _, layer := range mesh.Layers {
			m, ok := h.world.ChunkMesh(id, layer)
			if !ok || m.Empty() {
				continue
			}
			frame, err := meshio.EncodeFrame(id, layer, &m)
			if err != nil {
				return err
			}
			if err := writeWS(conn, websocket.BinaryMessage, frame); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeWS(conn *websocket.Conn, kind int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(kind, data)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// handleEventStream provides an SSE endpoint for real-time event streaming.
// Limits concurrent connections.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if current := s.sseConns.Add(1); current > maxSSEConns {
		s.sseConns.Add(-1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer s.sseConns.Add(-1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.World.Subscribe()
	defer s.World.Unsubscribe(subID)

	// Send recent events as catch-up.
	for _, e := range s.World.Events(catchUpEvents) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	// Stream loop with heartbeat.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}
