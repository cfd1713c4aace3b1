package workflow

import (
	"maps"
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// ConnectionKind classifies a connection relative to its container.
type ConnectionKind string

const (
	ConnStandard    ConnectionKind = "standard"
	ConnBoundaryIn  ConnectionKind = "boundaryIn"
	ConnBoundaryOut ConnectionKind = "boundaryOut"
	ConnThrough     ConnectionKind = "through"
)

// Connection links an output port to an input port within one level.
type Connection struct {
	Source     nodeid.ID  `json:"sourceNode"`
	SourcePort int        `json:"sourcePort"`
	Dest       nodeid.ID  `json:"destNode"`
	DestPort   int        `json:"destPort"`
	Bendpoints []Position `json:"bendpoints,omitempty"`
}

// ID returns the connection's identifier.
func (c *Connection) ID() ConnectionID {
	return ConnectionID{Dest: c.Dest, Port: c.DestPort}
}

// Kind classifies c relative to the level it lives in.
func (c *Connection) Kind(level nodeid.ID) ConnectionKind {
	switch {
	case c.Source == level && c.Dest == level:
		return ConnThrough
	case c.Source == level:
		return ConnBoundaryIn
	case c.Dest == level:
		return ConnBoundaryOut
	default:
		return ConnStandard
	}
}

// Clone returns a deep copy of c.
func (c *Connection) Clone() *Connection {
	cc := *c
	cc.Bendpoints = slices.Clone(c.Bendpoints)
	return &cc
}

func (c *Connection) rebase(from, to nodeid.ID) {
	c.Source = c.Source.Rebase(from, to)
	c.Dest = c.Dest.Rebase(from, to)
}

// Annotation is a styled text region on the canvas.
type Annotation struct {
	ID          AnnotationID `json:"id"`
	Bounds      Bounds       `json:"bounds"`
	Text        string       `json:"text"`
	ContentType string       `json:"contentType,omitempty"`
	BorderColor string       `json:"borderColor,omitempty"`
	BorderWidth int          `json:"borderWidth,omitempty"`
}

// Clone returns a copy of a.
func (a *Annotation) Clone() *Annotation {
	ac := *a
	return &ac
}

// Level is the content of one container: the nested graph's connections and
// annotations plus the counters that allocate child ids. Annotations are kept
// in z-order, index 0 at the back.
type Level struct {
	ID             nodeid.ID                    `json:"id"`
	Connections    map[ConnectionID]*Connection `json:"connections"`
	Annotations    []*Annotation                `json:"annotations"`
	NextNode       int                          `json:"nextNode"`
	NextAnnotation int                          `json:"nextAnnotation"`
	InBar          *Bounds                      `json:"inBar,omitempty"`
	OutBar         *Bounds                      `json:"outBar,omitempty"`
	Project        *Metadata                    `json:"project,omitempty"`
}

func newLevel(id nodeid.ID) *Level {
	return &Level{
		ID:          id,
		Connections: make(map[ConnectionID]*Connection),
		NextNode:    1,
	}
}

// Clone returns a deep copy of l.
func (l *Level) Clone() *Level {
	lc := *l
	lc.Connections = make(map[ConnectionID]*Connection, len(l.Connections))
	for k, c := range l.Connections {
		lc.Connections[k] = c.Clone()
	}
	lc.Annotations = make([]*Annotation, len(l.Annotations))
	for i, a := range l.Annotations {
		lc.Annotations[i] = a.Clone()
	}
	if l.InBar != nil {
		b := *l.InBar
		lc.InBar = &b
	}
	if l.OutBar != nil {
		b := *l.OutBar
		lc.OutBar = &b
	}
	if l.Project != nil {
		md := l.Project.clone()
		lc.Project = &md
	}
	return &lc
}

// rebase moves the level and everything it references from one id prefix
// to another.
func (l *Level) rebase(from, to nodeid.ID) {
	l.ID = l.ID.Rebase(from, to)
	conns := make(map[ConnectionID]*Connection, len(l.Connections))
	for _, c := range l.Connections {
		c.rebase(from, to)
		conns[c.ID()] = c
	}
	l.Connections = conns
	for _, a := range l.Annotations {
		a.ID.Container = a.ID.Container.Rebase(from, to)
	}
}

// sortedConnections returns the level's connections ordered by id.
func (l *Level) sortedConnections() []*Connection {
	keys := slices.SortedFunc(maps.Keys(l.Connections), compareConnectionIDs)
	out := make([]*Connection, len(keys))
	for i, k := range keys {
		out[i] = l.Connections[k]
	}
	return out
}

func (l *Level) annotationIndex(id AnnotationID) int {
	return slices.IndexFunc(l.Annotations, func(a *Annotation) bool { return a.ID == id })
}

func compareConnectionIDs(a, b ConnectionID) int {
	if c := nodeid.Compare(a.Dest, b.Dest); c != 0 {
		return c
	}
	return a.Port - b.Port
}
