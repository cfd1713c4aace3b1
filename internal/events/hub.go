package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/registry"
	"github.com/specialistvlad/wfengine/internal/snapshot"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// Emitter sends an event to one client.
type Emitter interface {
	Emit(event string, args ...any) error
}

// SubscribeRequest is the payload of EventSubscribe.
type SubscribeRequest struct {
	ProjectID  string    `json:"projectId"`
	WorkflowID nodeid.ID `json:"workflowId"`
}

// UnsubscribeRequest is the payload of EventUnsubscribe.
type UnsubscribeRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

// Subscribed is the payload of EventSubscribed.
type Subscribed struct {
	SubscriptionID string    `json:"subscriptionId"`
	ProjectID      string    `json:"projectId"`
	WorkflowID     nodeid.ID `json:"workflowId"`
	SnapshotID     string    `json:"snapshotId"`
	Workflow       any       `json:"workflow"`
}

// Failure is the payload of EventSubscribeError.
type Failure struct {
	Kind    wferr.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Hub tracks the subscriptions of connected clients.
type Hub struct {
	reg    *registry.Registry
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]map[string]*registry.Project
}

// NewHub returns a hub serving the projects of reg.
func NewHub(reg *registry.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		reg:     reg,
		logger:  logger,
		clients: make(map[string]map[string]*registry.Project),
	}
}

// Subscribe handles EventSubscribe from client.
func (h *Hub) Subscribe(ctx context.Context, client string, out Emitter, payload any) {
	var req SubscribeRequest
	if err := decode(payload, &req); err != nil {
		h.fail(out, err)
		return
	}
	if req.WorkflowID == "" {
		req.WorkflowID = nodeid.Root
	}
	p, err := h.reg.Get(req.ProjectID)
	if err != nil {
		h.fail(out, err)
		return
	}
	tree, snapshotID, err := p.State(ctx, req.WorkflowID)
	if err != nil {
		h.fail(out, err)
		return
	}
	logger := h.logger.With("client", client, "project", p.ID, "container", req.WorkflowID)
	subID, err := p.Subscribe(ctx, req.WorkflowID, func(_ context.Context, ev snapshot.Event) error {
		msg, err := patch.Tree(ev)
		if err != nil {
			return err
		}
		return out.Emit(EventPatch, msg)
	})
	if err != nil {
		h.fail(out, err)
		return
	}

	h.mu.Lock()
	subs, ok := h.clients[client]
	if !ok {
		subs = make(map[string]*registry.Project)
		h.clients[client] = subs
	}
	subs[subID] = p
	h.mu.Unlock()
	logger.Debug("Client subscribed.", "subscription", subID)

	h.emit(out, EventSubscribed, Subscribed{
		SubscriptionID: subID,
		ProjectID:      p.ID,
		WorkflowID:     req.WorkflowID,
		SnapshotID:     snapshotID,
		Workflow:       tree,
	})
}

// Unsubscribe handles EventUnsubscribe from client.
func (h *Hub) Unsubscribe(client string, out Emitter, payload any) {
	var req UnsubscribeRequest
	if err := decode(payload, &req); err != nil {
		h.fail(out, err)
		return
	}
	h.mu.Lock()
	p, ok := h.clients[client][req.SubscriptionID]
	delete(h.clients[client], req.SubscriptionID)
	h.mu.Unlock()
	if !ok {
		h.fail(out, wferr.NotFound("events.Unsubscribe", "No subscription %s", req.SubscriptionID))
		return
	}
	p.Unsubscribe(req.SubscriptionID)
	h.emit(out, EventUnsubscribed, req)
}

// Drop ends every subscription of a disconnected client.
func (h *Hub) Drop(client string) {
	h.mu.Lock()
	subs := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	for id, p := range subs {
		p.Unsubscribe(id)
	}
	if len(subs) > 0 {
		h.logger.Debug("Client subscriptions dropped.", "client", client, "count", len(subs))
	}
}

// Subscriptions returns the number of live subscriptions of client.
func (h *Hub) Subscriptions(client string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[client])
}

func (h *Hub) fail(out Emitter, err error) {
	h.logger.Debug("Subscription request failed.", "error", err)
	h.emit(out, EventSubscribeError, Failure{Kind: wferr.KindOf(err), Message: wferr.Message(err)})
}

func (h *Hub) emit(out Emitter, event string, v any) {
	msg, err := patch.Tree(v)
	if err == nil {
		err = out.Emit(event, msg)
	}
	if err != nil {
		h.logger.Warn("Failed to emit event.", "event", event, "error", err)
	}
}

// decode converts a socket.io payload, already decoded into generic JSON
// values, into v.
func decode(payload any, v any) error {
	raw, err := json.Marshal(payload)
	if err == nil {
		err = json.Unmarshal(raw, v)
	}
	if err != nil {
		return wferr.Wrap(wferr.KindInvalidInput, "events.decode", err, "Malformed request")
	}
	return nil
}
