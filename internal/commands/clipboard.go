package commands

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

const clipboardVersion = 1

// pasteOffset shifts content pasted without a target position so that it
// does not cover its source.
var pasteOffset = workflow.Position{X: 80, Y: 80}

// clipboard is the payload exchanged through the system clipboard.
type clipboard struct {
	Version  int                `json:"version"`
	ID       string             `json:"id"`
	Fragment *workflow.Fragment `json:"fragment"`
}

func (s *session) extract(op string, nodes []nodeid.ID, annotations []workflow.AnnotationID) (string, error) {
	parts := workflow.Parts{Nodes: nodes, Annotations: annotations}
	if parts.Empty() {
		return "", wferr.NotAllowed(op, "No nodes or workflow annotations selected")
	}
	f, err := s.g.Extract(s.container, parts)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(clipboard{Version: clipboardVersion, ID: uuid.NewString(), Fragment: f})
	if err != nil {
		return "", wferr.Wrap(wferr.KindInternal, op, err, "Failed to serialize clipboard content")
	}
	return string(raw), nil
}

func (s *session) copy(c *Copy) (Result, bool, error) {
	content, err := s.extract("commands.Copy", c.NodeIDs, c.AnnotationIDs)
	if err != nil {
		return nil, false, err
	}
	return &CopyResult{Outcome: Outcome{Kind: ResultCopy}, Content: content}, false, nil
}

func (s *session) cut(c *Cut) (Result, bool, error) {
	content, err := s.extract("commands.Cut", c.NodeIDs, c.AnnotationIDs)
	if err != nil {
		return nil, false, err
	}
	if _, changed, err := s.delete(&Delete{NodeIDs: c.NodeIDs, AnnotationIDs: c.AnnotationIDs}); err != nil {
		return nil, false, err
	} else if !changed {
		return nil, false, wferr.NotAllowed("commands.Cut", "Nothing was cut")
	}
	return &CopyResult{Outcome: Outcome{Kind: ResultCopy}, Content: content}, true, nil
}

func (s *session) paste(c *Paste) (Result, bool, error) {
	const op = "commands.Paste"
	if strings.TrimSpace(c.Content) == "" {
		return nil, false, wferr.NotFound(op, "No content to paste")
	}
	var cb clipboard
	if err := json.Unmarshal([]byte(c.Content), &cb); err != nil {
		return nil, false, wferr.Wrap(wferr.KindInvalidInput, op, err, "Clipboard content could not be read")
	}
	if cb.Version != clipboardVersion || cb.Fragment == nil {
		return nil, false, wferr.InvalidInput(op, "Unsupported clipboard content version %d", cb.Version)
	}
	if err := cb.Fragment.Validate(); err != nil {
		return nil, false, err
	}
	delta := pasteOffset
	if c.Position != nil {
		delta = c.Position.Sub(cb.Fragment.Corner())
	}

	s.begin()
	in, err := s.g.Instantiate(s.container, cb.Fragment, delta)
	if err != nil {
		return nil, false, err
	}
	return &PasteResult{
		Outcome:       Outcome{Kind: ResultPaste},
		NodeIDs:       in.Nodes,
		AnnotationIDs: in.Annotations,
	}, true, nil
}
