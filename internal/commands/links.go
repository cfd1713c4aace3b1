package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// repoContext bounds a template lookup by the engine's timeout.
func (s *session) repoContext() (context.Context, context.CancelFunc) {
	if s.e.timeout > 0 {
		return context.WithTimeout(s.ctx, s.e.timeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *session) component(op string, id nodeid.ID) (*workflow.Node, error) {
	n, err := s.child(op, id)
	if err != nil {
		return nil, err
	}
	if n.Kind != workflow.KindComponent {
		return nil, wferr.NotAllowed(op, "Not a component: %s.", id)
	}
	return n, nil
}

func (s *session) shareComponent(c *ShareComponent) (Result, bool, error) {
	const op = "commands.ShareComponent"
	n, err := s.component(op, c.NodeID)
	if err != nil {
		return nil, false, err
	}
	f, err := s.g.Extract(s.container, workflow.Parts{Nodes: []nodeid.ID{n.ID}})
	if err != nil {
		return nil, false, err
	}
	f.Nodes[0].Container.Link = nil

	space := c.DestinationSpace
	if space == "" {
		space = DefaultSpace
	}
	name := n.Container.Name
	ctx, cancel := s.repoContext()
	defer cancel()

	taken, err := s.e.templates.Exists(ctx, space, name)
	if err != nil {
		return nil, false, err
	}
	if taken {
		switch c.CollisionHandling {
		case CollisionOverwrite:
		case CollisionAutorename:
			if name, err = freeName(ctx, s.e.templates, space, name); err != nil {
				return nil, false, err
			}
		default:
			return &ShareComponentResult{Outcome: Outcome{Kind: ResultShareComponent}, IsNameCollision: true}, false, nil
		}
	}
	t, err := s.e.templates.Put(ctx, space, name, f)
	if err != nil {
		return nil, false, err
	}
	s.e.logger.Info("📦 Component shared.", "node", n.ID, "template", t.URI(LinkAbsolute), "version", t.Version)

	res := &ShareComponentResult{Outcome: Outcome{Kind: ResultShareComponent}, URI: t.URI(LinkAbsolute)}
	if c.LinkType == "" || c.LinkType == LinkNone {
		return res, false, nil
	}
	res.URI = t.URI(c.LinkType)
	s.begin()
	changed, err := s.g.SetLink(n.ID, &workflow.TemplateLink{URI: res.URI, Version: t.Version})
	return res, changed, err
}

func (s *session) updateLinkInformation(c *UpdateComponentLinkInformation) (Result, bool, error) {
	const op = "commands.UpdateComponentLinkInformation"
	n, err := s.component(op, c.NodeID)
	if err != nil {
		return nil, false, err
	}
	cur := n.Container.Link
	if cur == nil {
		return nil, false, wferr.NotAllowed(op, "Component not linked: %s.", n.ID)
	}
	var link *workflow.TemplateLink
	if c.LinkVariant != LinkNone {
		ctx, cancel := s.repoContext()
		defer cancel()
		t, err := s.e.templates.Get(ctx, cur.URI)
		if err != nil {
			return nil, false, err
		}
		link = &workflow.TemplateLink{URI: t.URI(c.LinkVariant), Version: cur.Version}
	}
	s.begin()
	changed, err := s.g.SetLink(n.ID, link)
	return &Outcome{}, changed, err
}

func (s *session) updateLinkedComponents(c *UpdateLinkedComponents) (Result, bool, error) {
	const op = "commands.UpdateLinkedComponents"
	if len(c.NodeIDs) == 0 {
		return nil, false, wferr.InvalidInput(op, "No component IDs passed for %s", s.container)
	}
	var unlinked []string
	for _, id := range c.NodeIDs {
		n, err := s.child(op, id)
		if err != nil || n.Kind != workflow.KindComponent || n.Container.Link == nil {
			unlinked = append(unlinked, id.String())
		}
	}
	if len(unlinked) > 0 {
		return nil, false, wferr.InvalidInput(op, "Not all of the nodes %s are linked components.", strings.Join(unlinked, ", "))
	}

	ctx, cancel := s.repoContext()
	defer cancel()
	type update struct {
		id nodeid.ID
		t  *Template
	}
	var (
		updates []update
		details []string
	)
	for _, id := range c.NodeIDs {
		n, _ := s.g.Node(id)
		t, err := s.e.templates.Get(ctx, n.Container.Link.URI)
		switch {
		case err != nil:
			details = append(details, fmt.Sprintf("%s: %s", id, wferr.Message(err)))
		case t.Version == n.Container.Link.Version:
		case !s.gate.CanReplace(id):
			details = append(details, fmt.Sprintf("%s: Execution is in progress.", id))
		default:
			updates = append(updates, update{id: id, t: t})
		}
	}
	res := &UpdateLinkedComponentsResult{Outcome: Outcome{Kind: ResultUpdateLinkedComponents}}
	switch {
	case len(details) > 0:
		res.Status, res.Details = StatusError, details
		return res, false, nil
	case len(updates) == 0:
		res.Status = StatusUnchanged
		return res, false, nil
	}

	var ids []nodeid.ID
	for _, u := range updates {
		ids = append(ids, u.id)
	}
	if err := s.reset(ids...); err != nil {
		return nil, false, err
	}
	s.begin(ids...)
	for _, u := range updates {
		_, err := s.g.ReplaceContent(u.id, u.t.Fragment)
		if err == nil {
			_, err = s.g.SetLink(u.id, &workflow.TemplateLink{URI: s.linkURI(u.id), Version: u.t.Version})
		}
		if err != nil {
			s.e.machine.Forget(s.g.Restore(s.before))
			s.before = nil
			res.Status, res.Details = StatusError, []string{fmt.Sprintf("%s: %s", u.id, wferr.Message(err))}
			return res, false, nil
		}
	}
	res.Status = StatusSuccess
	return res, true, nil
}

func (s *session) linkURI(id nodeid.ID) string {
	n, _ := s.g.Node(id)
	return n.Container.Link.URI
}
