package workflow

import (
	"slices"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// InsertNode places an unplaced node as the next child of container and
// returns its new id. Containers get an empty level.
func (g *Graph) InsertNode(container nodeid.ID, n *Node) (nodeid.ID, error) {
	l, err := g.Level(container)
	if err != nil {
		return "", err
	}
	id := container.Child(l.NextNode)
	l.NextNode++
	n.ID = id
	g.nodes[id] = n
	if n.IsContainer() {
		g.levels[id] = newLevel(id)
	}
	return id, nil
}

// RemoveNode deletes a node, its incident connections and, for containers,
// everything nested inside. It returns the ids of all removed nodes.
func (g *Graph) RemoveNode(id nodeid.ID) ([]nodeid.ID, error) {
	if _, err := g.Node(id); err != nil {
		return nil, err
	}
	if l, ok := g.levels[id.Parent()]; ok {
		for cid, c := range l.Connections {
			if c.Source == id || c.Dest == id {
				delete(l.Connections, cid)
			}
		}
	}
	return g.dropSubtree(id), nil
}

// dropSubtree forgets id and everything below it without touching the
// connections of the enclosing level.
func (g *Graph) dropSubtree(id nodeid.ID) []nodeid.ID {
	removed := append([]nodeid.ID{id}, g.Descendants(id)...)
	for _, rid := range removed {
		delete(g.nodes, rid)
		delete(g.levels, rid)
	}
	return removed
}

// rebaseSubtree moves the node at from, with all nested nodes and levels,
// to the id to. Connections in the enclosing level are left alone.
func (g *Graph) rebaseSubtree(from, to nodeid.ID) {
	if from == to {
		return
	}
	var nodes []*Node
	var levels []*Level
	for id, n := range g.nodes {
		if id.Within(from) {
			nodes = append(nodes, n)
			delete(g.nodes, id)
		}
	}
	for id, l := range g.levels {
		if id.Within(from) {
			levels = append(levels, l)
			delete(g.levels, id)
		}
	}
	for _, n := range nodes {
		n.ID = n.ID.Rebase(from, to)
		g.nodes[n.ID] = n
	}
	for _, l := range levels {
		l.rebase(from, to)
		g.levels[l.ID] = l
	}
}

// SetLabel replaces the node annotation text.
func (g *Graph) SetLabel(id nodeid.ID, label string) (bool, error) {
	n, err := g.Node(id)
	if err != nil {
		return false, err
	}
	if n.Label == label {
		return false, nil
	}
	n.Label = label
	return true, nil
}

// SetName renames a metanode or component. Blank names are rejected.
func (g *Graph) SetName(id nodeid.ID, name string) (bool, error) {
	n, err := g.Node(id)
	if err != nil {
		return false, err
	}
	if !n.IsContainer() {
		return false, wferr.NotAllowed("workflow.SetName", "Node %s is neither a metanode nor a component", id)
	}
	if strings.TrimSpace(name) == "" {
		return false, wferr.InvalidInput("workflow.SetName", "Illegal new name: %q", name)
	}
	if n.Container.Name == name {
		return false, nil
	}
	n.Container.Name = name
	return true, nil
}

// SetProjectMetadata replaces the metadata of the project level.
func (g *Graph) SetProjectMetadata(md Metadata) bool {
	root := g.levels[nodeid.Root]
	if root.Project != nil && metadataEqual(*root.Project, md) {
		return false
	}
	md = md.clone()
	root.Project = &md
	return true
}

// SetComponentMetadata replaces the metadata of a component.
func (g *Graph) SetComponentMetadata(id nodeid.ID, md ComponentMetadata) (bool, error) {
	n, err := g.component(id, "workflow.SetComponentMetadata")
	if err != nil {
		return false, err
	}
	if n.Container.Metadata != nil && n.Container.Metadata.Type == md.Type &&
		n.Container.Metadata.Icon == md.Icon && metadataEqual(n.Container.Metadata.Metadata, md.Metadata) {
		return false, nil
	}
	md = md.clone()
	n.Container.Metadata = &md
	return true, nil
}

// SetLink points a component at a template, or unlinks it when link is nil.
func (g *Graph) SetLink(id nodeid.ID, link *TemplateLink) (bool, error) {
	n, err := g.component(id, "workflow.SetLink")
	if err != nil {
		return false, err
	}
	cur := n.Container.Link
	if (cur == nil && link == nil) || (cur != nil && link != nil && *cur == *link) {
		return false, nil
	}
	if link == nil {
		n.Container.Link = nil
		return true, nil
	}
	l := *link
	n.Container.Link = &l
	return true, nil
}

// SetPortBar sets the bounds of a metanode's in or out port bar.
func (g *Graph) SetPortBar(container nodeid.ID, side Side, b Bounds) (bool, error) {
	n := g.ContainerNode(container)
	if n == nil || n.Kind != KindMetanode {
		return false, wferr.NotAllowed("workflow.SetPortBar", "Workflow %s is not a metanode", container)
	}
	l := g.levels[container]
	bar := &l.InBar
	if side == SideOut {
		bar = &l.OutBar
	}
	if *bar != nil && **bar == b {
		return false, nil
	}
	*bar = &b
	return true, nil
}

func (g *Graph) component(id nodeid.ID, op string) (*Node, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	if n.Kind != KindComponent {
		return nil, wferr.NotAllowed(op, "Node %s is not a component", id)
	}
	return n, nil
}

func metadataEqual(a, b Metadata) bool {
	return a.Description == b.Description && slices.Equal(a.Tags, b.Tags) && slices.Equal(a.Links, b.Links)
}
