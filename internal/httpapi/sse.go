package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringSize bounds the replay buffer for Last-Event-ID reconnects. A
	// door fleet is chatty only while moving, so a small ring suffices.
	ringSize = 256

	// keepaliveEvery spaces the comment lines that hold idle
	// connections open through proxies.
	keepaliveEvery = 15 * time.Second
)

// streamEvent is one bus message as seen by SSE consumers. Topic is the
// bus subject relative to the configured prefix, e.g. "status.garage".
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// eventHub fans bus traffic out to connected SSE clients and keeps a
// ring of recent events for reconnect replay.
type eventHub struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	nextID  atomic.Uint64

	ringMu  sync.RWMutex
	ring    [ringSize]streamEvent
	ringPos int
	ringLen int
}

// streamClient is one connected consumer. An empty filter list means
// every topic.
type streamClient struct {
	filters []string
	ch      chan *streamEvent
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*streamClient]struct{})}
}

// broadcast records the event and delivers it to matching clients. Slow
// clients lose events rather than stalling the pump.
func (h *eventHub) broadcast(topic string, data []byte) {
	evt := &streamEvent{ID: h.nextID.Add(1), Topic: topic, Data: data}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % ringSize
	if h.ringLen < ringSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

func (h *eventHub) subscribe(filters []string) *streamClient {
	c := &streamClient{filters: filters, ch: make(chan *streamEvent, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *eventHub) unsubscribe(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns ring entries with ID > lastID, oldest first.
func (h *eventHub) eventsSince(lastID uint64) []*streamEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()
	if h.ringLen == 0 {
		return nil
	}
	start := h.ringPos - h.ringLen
	if start < 0 {
		start += ringSize
	}
	var out []*streamEvent
	for i := range h.ringLen {
		if evt := h.ring[(start+i)%ringSize]; evt.ID > lastID {
			out = append(out, &evt)
		}
	}
	return out
}

func (c *streamClient) matches(topic string) bool {
	if len(c.filters) == 0 {
		return true
	}
	for _, f := range c.filters {
		if topicMatch(f, topic) {
			return true
		}
	}
	return false
}

// topicMatch walks dot-separated tokens with the bus wildcard rules:
// "*" matches one token, a trailing ">" matches the rest.
func topicMatch(pattern, topic string) bool {
	for pattern != "" {
		if pattern == ">" {
			return topic != ""
		}
		p, prest, _ := strings.Cut(pattern, ".")
		tok, trest, ok := strings.Cut(topic, ".")
		if tok == "" {
			return false
		}
		if p != "*" && p != tok {
			return false
		}
		if !ok {
			trest = ""
		}
		pattern, topic = prest, trest
	}
	return topic == ""
}

// handleEventStream serves GET /v1/events/stream. Query parameter
// topics is a comma-separated filter list; Last-Event-ID replays what
// the ring still holds.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var filters []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, f := range strings.Split(q, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filters = append(filters, f)
			}
		}
	}

	client := s.hub.subscribe(filters)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastRaw := r.Header.Get("Last-Event-ID"); lastRaw != "" {
		if lastID, err := strconv.ParseUint(lastRaw, 10, 64); err == nil {
			for _, evt := range s.hub.eventsSince(lastID) {
				if client.matches(evt.Topic) {
					writeStreamEvent(w, evt)
				}
			}
			flusher.Flush()
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(keepaliveEvery)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt *streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
