package server

import (
	"sync"

	"github.com/pedrabranca/geoquest/internal/game"
	"github.com/pedrabranca/geoquest/internal/storage"
)

// hub tracks live sessions by id.
type hub struct {
	mu       sync.RWMutex
	sessions map[string]*conn
}

type conn struct {
	session *game.Session
	client  *client

	player string
	record storage.PlayerRecord
}

func newHub() *hub {
	return &hub{sessions: make(map[string]*conn)}
}

func (h *hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[c.session.ID()] = c
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeAll stops every client's write loop, which sends a close frame.
func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions {
		c.client.close()
	}
}
