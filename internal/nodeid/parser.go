// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// idRegex matches the canonical form, e.g. `root` or `root:3:12`.
var idRegex = regexp.MustCompile(`^root(?::(\d+))*$`)

// Parse creates an ID from its canonical string representation.
func Parse(rawID string) (ID, error) {
	if rawID == "" {
		return "", fmt.Errorf("identifier cannot be empty")
	}
	if !idRegex.MatchString(rawID) {
		return "", fmt.Errorf("invalid node identifier: %q", rawID)
	}

	// Normalize segments like `007` so equal paths compare equal.
	parts := strings.Split(rawID, sep)
	path := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("invalid path segment %q: %w", p, err)
		}
		path = append(path, n)
	}
	return FromPath(path...), nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(rawID string) ID {
	id, err := Parse(rawID)
	if err != nil {
		panic(err)
	}
	return id
}

// UnmarshalText validates the identifier when decoding JSON strings and map keys.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
