// Package realtime fans project events out to connected websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/yukikurage/taskflow-api/internal/events"
)

// Publisher delivers an event to a project's subscribers. It reports
// whether the event was handed to the transport and never fails loudly.
type Publisher interface {
	Publish(ctx context.Context, projectID uint64, eventType string, payload any) bool
}

// Hub is the in-process registry of clients per broadcast group.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:    log,
		groups: make(map[string]map[*Client]struct{}),
	}
}

// Join adds c to group.
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// Leave removes c from group. Leaving twice is a no-op.
func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Size reports how many clients are in group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Broadcast queues frame on every client in group and returns how many
// accepted it. A client whose buffer is full is disconnected.
func (h *Hub) Broadcast(group string, frame []byte) int {
	var delivered int
	var slow []*Client

	h.mu.RLock()
	for c := range h.groups[group] {
		if c.enqueue(frame) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket client", "group", group, "client_id", c.ID())
		h.Leave(group, c)
		c.Close()
	}
	return delivered
}

// Publish encodes the frame once and broadcasts it locally.
func (h *Hub) Publish(_ context.Context, projectID uint64, eventType string, payload any) bool {
	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		h.log.Warn("failed to encode event", "event_type", eventType, "error", err)
		return false
	}
	h.Broadcast(events.ProjectGroup(projectID), frame)
	return true
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	groups := h.groups
	h.groups = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, members := range groups {
		for c := range members {
			c.Close()
		}
	}
}

// EncodeFrame builds the socket message {"type": ..., "data": ...}.
func EncodeFrame(eventType string, payload any) ([]byte, error) {
	return json.Marshal(events.Frame{Type: eventType, Data: payload})
}
