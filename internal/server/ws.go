package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// clientBuffer is how many poses may queue for one client before new
	// ones are dropped for it.
	clientBuffer = 8
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type poseClient struct {
	send    chan []byte
	dropped int
}

// PoseHub fans rendered poses out to WebSocket clients. Broadcast never
// blocks: each client has a small queue and misses poses when it falls
// behind, which is harmless since every pose is a full snapshot.
type PoseHub struct {
	log     zerolog.Logger
	mu      sync.Mutex
	clients map[*poseClient]struct{}
	latest  []byte
}

// NewPoseHub creates an empty hub.
func NewPoseHub(log zerolog.Logger) *PoseHub {
	return &PoseHub{
		log:     log.With().Str("component", "posehub").Logger(),
		clients: make(map[*poseClient]struct{}),
	}
}

// Broadcast queues pose for every connected client.
func (h *PoseHub) Broadcast(pose *avatar.Pose) {
	msg, err := json.Marshal(pose)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to encode pose")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			c.dropped++
		}
	}
}

// Clients returns the number of connected clients.
func (h *PoseHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *PoseHub) add() *poseClient {
	c := &poseClient{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	// A new client sees the current pose without waiting for a change.
	if h.latest != nil {
		c.send <- h.latest
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *PoseHub) remove(c *poseClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	return c.dropped
}

// ServeHTTP upgrades the request and streams poses until the client goes
// away.
func (h *PoseHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := h.add()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("pose client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain reads so close frames and pings are handled.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		dropped := h.remove(client)
		h.log.Debug().Str("remote", r.RemoteAddr).Int("dropped", dropped).Msg("pose client disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-client.send:
			if err := writePose(conn, msg); err != nil {
				h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("pose write failed")
				return
			}
		}
	}
}

// poseWriter is the part of a websocket connection writePose needs.
type poseWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

func writePose(conn poseWriter, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}
