package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/specialistvlad/wfengine/internal/events"
	"github.com/specialistvlad/wfengine/internal/patch"
	"github.com/specialistvlad/wfengine/internal/snapshot"
)

// Stream keeps a local copy of a workflow in step with the events of one
// subscription.
type Stream struct {
	out    io.Writer
	logger *slog.Logger

	mu           sync.Mutex
	tree         any
	snapshotID   string
	subscription string
	inSync       bool
}

// NewStream returns a stream printing patch events to out.
func NewStream(out io.Writer, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{out: out, logger: logger}
}

// Handle processes one event received from the server.
func (s *Stream) Handle(event string, payload any) error {
	switch event {
	case events.EventSubscribed:
		var msg events.Subscribed
		if err := convert(payload, &msg); err != nil {
			return err
		}
		s.mu.Lock()
		s.tree, s.snapshotID, s.subscription, s.inSync = msg.Workflow, msg.SnapshotID, msg.SubscriptionID, true
		s.mu.Unlock()
		s.logger.Info("👀 Watching workflow.", "project", msg.ProjectID, "workflow", msg.WorkflowID, "snapshotID", msg.SnapshotID)
		return nil

	case events.EventPatch:
		var ev snapshot.Event
		if err := convert(payload, &ev); err != nil {
			return err
		}
		s.apply(ev)
		line, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, string(line))
		return err

	case events.EventSubscribeError:
		var f events.Failure
		if err := convert(payload, &f); err != nil {
			return err
		}
		return fmt.Errorf("subscription failed (%s): %s", f.Kind, f.Message)
	}
	return nil
}

func (s *Stream) apply(ev snapshot.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inSync || ev.PreviousSnapshotID != s.snapshotID {
		s.logger.Warn("Patch does not follow the local snapshot.", "local", s.snapshotID, "previous", ev.PreviousSnapshotID)
		s.inSync = false
		s.snapshotID = ev.SnapshotID
		return
	}
	tree, err := patch.Apply(s.tree, ev.Patch)
	if err != nil {
		s.logger.Warn("Failed to apply patch.", "snapshotID", ev.SnapshotID, "error", err)
		s.inSync = false
		s.snapshotID = ev.SnapshotID
		return
	}
	s.tree, s.snapshotID = tree, ev.SnapshotID
}

// Workflow returns the local copy of the workflow and its snapshot id. ok is
// false once a patch could not be applied.
func (s *Stream) Workflow() (tree any, snapshotID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree, s.snapshotID, s.inSync
}

func convert(payload any, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("malformed event: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed event: %w", err)
	}
	return nil
}
