package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"property-insight-be/internal/dto"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/pkg/poller"
)

const (
	MessageSessionUpdate = "session_update"

	CommandRefresh         = "refresh"
	CommandAnalysisStarted = "analysis_started"
)

// watcher is the single poller shared by every client of one session.
type watcher struct {
	sessionID string
	poller    *poller.Poller
	cancel    context.CancelFunc
	clients   map[*Client]struct{}
}

type Hub struct {
	// Watched sessions: SessionID -> watcher
	watchers map[string]*watcher

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	fetcher    poller.Fetcher
	pollerOpts []poller.Option

	ctx    context.Context
	ready  chan struct{}
	logger logger.ILogger
}

func NewHub(fetcher poller.Fetcher, log logger.ILogger, opts ...poller.Option) *Hub {
	return &Hub{
		watchers:   make(map[string]*watcher),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		fetcher:    fetcher,
		pollerOpts: opts,
		ready:      make(chan struct{}),
		logger:     log,
	}
}

// Run owns registration until ctx is cancelled, then stops every watcher.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	close(h.ready)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, w := range h.watchers {
				w.cancel()
				delete(h.watchers, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done():
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done():
	}
}

func (h *Hub) done() <-chan struct{} {
	<-h.ready
	return h.ctx.Done()
}

// WatchedSessions returns the number of sessions being polled.
func (h *Hub) WatchedSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.watchers[c.SessionID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		w = &watcher{
			sessionID: c.SessionID,
			poller:    poller.New(c.SessionID, h.fetcher, h.pollerOpts...),
			cancel:    cancel,
			clients:   make(map[*Client]struct{}),
		}
		h.watchers[c.SessionID] = w

		updates, unsubscribe := w.poller.Subscribe()
		go func() {
			if err := w.poller.Run(ctx); err != nil && ctx.Err() == nil {
				h.logger.Warn("SessionHub", "Poller stopped", map[string]interface{}{"session_id": w.sessionID, "error": err.Error()})
			}
		}()
		go h.forward(w, updates, unsubscribe)

		h.logger.Info("SessionHub", "Watching session", map[string]interface{}{"session_id": c.SessionID})
	}

	w.clients[c] = struct{}{}
	c.watcher = w
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := c.watcher
	if w == nil {
		return
	}
	if _, ok := w.clients[c]; !ok {
		return
	}
	delete(w.clients, c)
	close(c.Send)

	if len(w.clients) == 0 {
		w.cancel()
		if h.watchers[w.sessionID] == w {
			delete(h.watchers, w.sessionID)
		}
		h.logger.Info("SessionHub", "Last client left, watcher stopped", map[string]interface{}{"session_id": w.sessionID})
	}
}

// forward fans a watcher's updates out to its clients. A client whose buffer
// is full misses that update and gets the next one.
func (h *Hub) forward(w *watcher, updates <-chan poller.Update, unsubscribe func()) {
	defer unsubscribe()

	for u := range updates {
		data, err := json.Marshal(encodeUpdate(u))
		if err != nil {
			h.logger.Error("SessionHub", "Failed to encode update", map[string]interface{}{"session_id": w.sessionID, "error": err.Error()})
			continue
		}

		h.mu.RLock()
		for client := range w.clients {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn("SessionHub", "Client Send buffer full, dropping update", map[string]interface{}{"session_id": w.sessionID})
			}
		}
		h.mu.RUnlock()
	}

	// Finished or cancelled; a later client starts a fresh watcher.
	h.mu.Lock()
	if h.watchers[w.sessionID] == w {
		delete(h.watchers, w.sessionID)
	}
	h.mu.Unlock()
}

// command applies a client message to the client's watcher.
func (h *Hub) command(c *Client, cmd dto.SessionStreamCommand) {
	h.mu.RLock()
	w := c.watcher
	h.mu.RUnlock()
	if w == nil {
		return
	}

	switch cmd.Type {
	case CommandRefresh:
		w.poller.Refresh()
	case CommandAnalysisStarted:
		w.poller.MarkAnalysisStarted()
		w.poller.Refresh()
	default:
		h.logger.Debug("SessionHub", "Unknown client command", map[string]interface{}{"session_id": c.SessionID, "type": cmd.Type})
	}
}

func encodeUpdate(u poller.Update) dto.SessionUpdateMessage {
	payload := dto.SessionUpdatePayload{
		SessionId:  u.SessionID,
		View:       string(u.View),
		IntervalMs: u.Interval.Milliseconds(),
		Done:       u.Done,
	}
	if u.Err != nil {
		payload.Error = u.Err.Error()
	}
	if u.Session != nil {
		payload.Session = u.Session.Raw()
	}
	return dto.SessionUpdateMessage{Type: MessageSessionUpdate, Data: payload}
}
