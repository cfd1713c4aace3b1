package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/wfengine/internal/nodeid"
)

// ConnectionID names a connection by its destination, which is unique
// because a destination port holds at most one connection. Text form
// `root:4_1`.
type ConnectionID struct {
	Dest nodeid.ID
	Port int
}

// String implements fmt.Stringer.
func (c ConnectionID) String() string {
	return fmt.Sprintf("%s_%d", c.Dest, c.Port)
}

// MarshalText implements encoding.TextMarshaler.
func (c ConnectionID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConnectionID) UnmarshalText(text []byte) error {
	parsed, err := ParseConnectionID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConnectionID parses the `<node>_<port>` form.
func ParseConnectionID(raw string) (ConnectionID, error) {
	id, n, err := splitSuffix(raw)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("invalid connection id %q: %w", raw, err)
	}
	return ConnectionID{Dest: id, Port: n}, nil
}

// AnnotationID names a workflow annotation within its container. Text form
// `root:4_0`.
type AnnotationID struct {
	Container nodeid.ID
	Index     int
}

// String implements fmt.Stringer.
func (a AnnotationID) String() string {
	return fmt.Sprintf("%s_%d", a.Container, a.Index)
}

// MarshalText implements encoding.TextMarshaler.
func (a AnnotationID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AnnotationID) UnmarshalText(text []byte) error {
	parsed, err := ParseAnnotationID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAnnotationID parses the `<container>_<n>` form.
func ParseAnnotationID(raw string) (AnnotationID, error) {
	id, n, err := splitSuffix(raw)
	if err != nil {
		return AnnotationID{}, fmt.Errorf("invalid annotation id %q: %w", raw, err)
	}
	return AnnotationID{Container: id, Index: n}, nil
}

func splitSuffix(raw string) (nodeid.ID, int, error) {
	i := strings.LastIndex(raw, "_")
	if i < 0 {
		return "", 0, fmt.Errorf("missing '_' separator")
	}
	id, err := nodeid.Parse(raw[:i])
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.Atoi(raw[i+1:])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid index %q", raw[i+1:])
	}
	return id, n, nil
}
