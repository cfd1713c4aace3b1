// internal/nodeid/id.go
package nodeid

import (
	"slices"
	"strconv"
	"strings"
)

// ID is the canonical, comparable identifier of a node. The zero value is
// not valid; use Root for the project workflow.
type ID string

// Root identifies the top-level project workflow.
const Root ID = "root"

const sep = ":"

// FromPath builds an ID from its integer path. An empty path is Root.
func FromPath(path ...int) ID {
	if len(path) == 0 {
		return Root
	}
	var sb strings.Builder
	sb.WriteString(string(Root))
	for _, p := range path {
		sb.WriteString(sep)
		sb.WriteString(strconv.Itoa(p))
	}
	return ID(sb.String())
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// IsRoot reports whether id addresses the project workflow.
func (id ID) IsRoot() bool {
	return id == Root
}

// Path returns the integer path of id. Root yields an empty path.
func (id ID) Path() []int {
	parts := strings.Split(string(id), sep)
	path := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			// IDs are only constructed through FromPath, Child or Parse.
			panic("nodeid: malformed id " + string(id))
		}
		path = append(path, n)
	}
	return path
}

// Depth is the number of path segments; Root has depth zero.
func (id ID) Depth() int {
	return strings.Count(string(id), sep)
}

// Child returns the id of the index-th child of id.
func (id ID) Child(index int) ID {
	return ID(string(id) + sep + strconv.Itoa(index))
}

// Parent returns the id of the enclosing container. The parent of Root is Root.
func (id ID) Parent() ID {
	i := strings.LastIndex(string(id), sep)
	if i < 0 {
		return Root
	}
	return id[:i]
}

// Index returns the last path segment, or -1 for Root.
func (id ID) Index() int {
	path := id.Path()
	if len(path) == 0 {
		return -1
	}
	return path[len(path)-1]
}

// IsAncestorOf reports whether other lies strictly below id.
func (id ID) IsAncestorOf(other ID) bool {
	return strings.HasPrefix(string(other), string(id)+sep)
}

// Within reports whether id equals ancestor or lies below it.
func (id ID) Within(ancestor ID) bool {
	return id == ancestor || ancestor.IsAncestorOf(id)
}

// Rebase replaces the prefix from with to. IDs outside from are returned
// unchanged.
func (id ID) Rebase(from, to ID) ID {
	if id == from {
		return to
	}
	if !from.IsAncestorOf(id) {
		return id
	}
	return to + id[len(from):]
}

// Compare orders ids by their integer paths, parents before children.
func Compare(a, b ID) int {
	return slices.Compare(a.Path(), b.Path())
}

// Sort orders ids in place using Compare.
func Sort(ids []ID) {
	slices.SortFunc(ids, Compare)
}
