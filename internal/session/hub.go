package session

import (
	"log/slog"
	"sync"
)

// orgRoom groups the live sessions of one organization.
type orgRoom struct {
	clients   map[string]*Client // clientID -> client
	templates map[string]string  // clientID -> open template id
}

func newOrgRoom() *orgRoom {
	return &orgRoom{
		clients:   make(map[string]*Client),
		templates: make(map[string]string),
	}
}

// Hub tracks connected editing sessions so that a save in one session can
// be announced to other sessions of the same organization that have the
// same template open.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*orgRoom // orgID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*orgRoom),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stop:
			h.closeAll()
			return
		}
	}
}

// Register adds client. Sessions registered after Stop are cancelled
// immediately.
func (h *Hub) Register(client *Client) {
	h.wg.Add(1)
	select {
	case h.register <- client:
	case <-h.stop:
		client.cancel()
	}
}

// Unregister removes client once its session has finished.
func (h *Hub) Unregister(client *Client) {
	defer h.wg.Done()
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Stop cancels every session and waits for them, including pending saves,
// to finish. Stop the HTTP server first so no new sessions arrive.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.wg.Wait()
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room.clients)
	}
	return n
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.OrgID]
	if !ok {
		room = newOrgRoom()
		h.rooms[client.OrgID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	slog.Info("session joined", "client", client.ClientID, "org", client.OrgID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.OrgID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	delete(room.templates, client.ClientID)
	if len(room.clients) == 0 {
		delete(h.rooms, client.OrgID)
	}
	h.mu.Unlock()

	slog.Info("session left", "client", client.ClientID, "org", client.OrgID)
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var clients []*Client
	for _, room := range h.rooms {
		for _, c := range room.clients {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.cancel()
	}
}

// templateOpened records which template a client is editing and, on save,
// tells the other clients that have it open.
func (h *Hub) templateOpened(client *Client, templateID string, saved bool) {
	h.mu.Lock()
	room, ok := h.rooms[client.OrgID]
	if !ok {
		h.mu.Unlock()
		return
	}
	room.templates[client.ClientID] = templateID

	var others []*Client
	if saved && templateID != "" {
		for id, open := range room.templates {
			if id != client.ClientID && open == templateID {
				others = append(others, room.clients[id])
			}
		}
	}
	h.mu.Unlock()

	for _, c := range others {
		c.session.notifyChanged(templateID, client.ClientID)
	}
}
