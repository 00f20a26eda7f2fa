package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"stroke-risk/internal/metrics"
	"stroke-risk/internal/risk"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// BandStats is the aggregate feed pushed to live viewers. Counts cover the
// lifetime of the process only.
type BandStats struct {
	Total     int       `json:"total"`
	Low       int       `json:"low"`
	Medium    int       `json:"medium"`
	High      int       `json:"high"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Hub counts assessments per band and streams the counts to websocket viewers.
type Hub struct {
	upgrader  websocket.Upgrader
	viewers   metrics.MetricsGauge
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	statsMu sync.Mutex
	stats   BandStats

	broadcastChannel chan BandStats
	stopChannel      chan struct{}
	stopOnce         sync.Once
}

func NewHub(viewers metrics.MetricsGauge) *Hub {
	return &Hub{
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		viewers:          viewers,
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan BandStats, 100),
		stopChannel:      make(chan struct{}),
	}
}

// Record counts one assessment and queues a broadcast. It never blocks;
// if viewers fall behind the update is dropped and the next one carries it.
func (h *Hub) Record(band risk.Band) {
	h.statsMu.Lock()
	h.stats.Total++
	switch band {
	case risk.BandHigh:
		h.stats.High++
	case risk.BandMedium:
		h.stats.Medium++
	default:
		h.stats.Low++
	}
	h.stats.UpdatedAt = time.Now()
	snapshot := h.stats
	h.statsMu.Unlock()

	select {
	case h.broadcastChannel <- snapshot:
	default:
	}
}

func (h *Hub) Stats() BandStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

// Run delivers queued snapshots until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case stats := <-h.broadcastChannel:
			h.broadcast(stats)
		case <-h.stopChannel:
			return
		}
	}
}

// Stop ends Run and closes every viewer connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChannel)

		h.clientsMu.Lock()
		for client := range h.clients {
			client.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.clientsMu.Unlock()
		h.setViewers(0)
	})
}

func (h *Hub) broadcast(stats BandStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal band stats for broadcast")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Dropping live viewer")
			client.Close()
			delete(h.clients, client)
		}
	}
	h.setViewers(len(h.clients))
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// The current snapshot is written under the client lock so it cannot
	// interleave with a broadcast.
	h.clientsMu.Lock()
	h.clients[conn] = true
	h.setViewers(len(h.clients))
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err = conn.WriteJSON(h.Stats())
	h.clientsMu.Unlock()
	if err != nil {
		h.drop(conn)
		return
	}

	log.Debug().Str("remote", r.RemoteAddr).Msg("Live viewer connected")

	// Viewers never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.setViewers(len(h.clients))
}

func (h *Hub) setViewers(n int) {
	if h.viewers != nil {
		h.viewers.Set(float64(n))
	}
}
