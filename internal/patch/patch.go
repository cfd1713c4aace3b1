// Package patch computes and applies patches between generic JSON trees.
//
// A tree is what encoding/json produces when decoding into an any:
// map[string]any, []any, string, float64, bool and nil. Paths are JSON
// pointers (RFC 6901).
package patch

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/go-openapi/jsonpointer"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// OpKind is the operation of a patch entry.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Op is one patch entry. Value is unset for removals.
type Op struct {
	Op    OpKind `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Patch is an ordered list of operations. Each operation applies to the
// result of the previous one.
type Patch []Op

// Tree converts v to a generic JSON tree by round-tripping it through
// encoding/json.
func Tree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, wferr.Wrap(wferr.KindInternal, "patch.Tree", err, "Cannot encode %T", v)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, wferr.Wrap(wferr.KindInternal, "patch.Tree", err, "Cannot decode %T", v)
	}
	return tree, nil
}

// Diff returns the patch turning from into to. Object members are visited
// in key order. A member or element that only exists in to is added whole,
// with a single operation at its own path. Values in the patch share
// structure with to.
func Diff(from, to any) Patch {
	var p Patch
	diff("", from, to, &p)
	return p
}

func diff(path string, from, to any, p *Patch) {
	switch a := from.(type) {
	case map[string]any:
		b, ok := to.(map[string]any)
		if !ok {
			*p = append(*p, Op{Op: OpReplace, Path: path, Value: to})
			return
		}
		keys := slices.Sorted(maps.Keys(a))
		for k := range b {
			if _, ok := a[k]; !ok {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			av, inA := a[k]
			bv, inB := b[k]
			child := path + "/" + jsonpointer.Escape(k)
			switch {
			case !inB:
				*p = append(*p, Op{Op: OpRemove, Path: child})
			case !inA:
				*p = append(*p, Op{Op: OpAdd, Path: child, Value: bv})
			default:
				diff(child, av, bv, p)
			}
		}
	case []any:
		b, ok := to.([]any)
		if !ok {
			*p = append(*p, Op{Op: OpReplace, Path: path, Value: to})
			return
		}
		common := min(len(a), len(b))
		for i := range common {
			diff(path+"/"+strconv.Itoa(i), a[i], b[i], p)
		}
		for i := common; i < len(b); i++ {
			*p = append(*p, Op{Op: OpAdd, Path: path + "/" + strconv.Itoa(i), Value: b[i]})
		}
		// Every removal shifts the tail, so all of them target the first
		// surplus index.
		for i := common; i < len(a); i++ {
			*p = append(*p, Op{Op: OpRemove, Path: path + "/" + strconv.Itoa(common)})
		}
	default:
		if !reflect.DeepEqual(from, to) {
			*p = append(*p, Op{Op: OpReplace, Path: path, Value: to})
		}
	}
}

// Apply returns doc with p applied. doc itself is left untouched.
func Apply(doc any, p Patch) (any, error) {
	out := clone(doc)
	for i, op := range p {
		var err error
		if out, err = applyOp(out, op); err != nil {
			return nil, wferr.Wrap(wferr.KindInvalidInput, "patch.Apply", err, "Cannot apply operation %d (%s %s)", i, op.Op, op.Path)
		}
	}
	return out, nil
}

func applyOp(doc any, op Op) (any, error) {
	ptr, err := jsonpointer.New(op.Path)
	if err != nil {
		return nil, err
	}
	tokens := ptr.DecodedTokens()
	if len(tokens) == 0 {
		if op.Op == OpRemove {
			return nil, nil
		}
		return clone(op.Value), nil
	}
	updated, err := applyAt(doc, tokens, op)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyAt applies op below node and returns the possibly new node, since
// inserting into or removing from a list yields a new slice.
func applyAt(node any, tokens []string, op Op) (any, error) {
	token := tokens[0]
	if len(tokens) > 1 {
		child, _, err := jsonpointer.GetForToken(node, token)
		if err != nil {
			return nil, err
		}
		updated, err := applyAt(child, tokens[1:], op)
		if err != nil {
			return nil, err
		}
		return jsonpointer.SetForToken(node, token, updated)
	}

	switch n := node.(type) {
	case map[string]any:
		_, exists := n[token]
		switch op.Op {
		case OpAdd:
			n[token] = clone(op.Value)
		case OpReplace:
			if !exists {
				return nil, fmt.Errorf("no member %q to replace", token)
			}
			n[token] = clone(op.Value)
		case OpRemove:
			if !exists {
				return nil, fmt.Errorf("no member %q to remove", token)
			}
			delete(n, token)
		default:
			return nil, fmt.Errorf("unknown operation %q", op.Op)
		}
		return n, nil
	case []any:
		idx := len(n)
		if token != "-" {
			var err error
			if idx, err = strconv.Atoi(token); err != nil {
				return nil, fmt.Errorf("bad list index %q", token)
			}
		}
		limit := len(n)
		if op.Op == OpAdd {
			limit++
		}
		if idx < 0 || idx >= limit {
			return nil, fmt.Errorf("list index %d out of range", idx)
		}
		switch op.Op {
		case OpAdd:
			return slices.Insert(n, idx, clone(op.Value)), nil
		case OpReplace:
			n[idx] = clone(op.Value)
			return n, nil
		case OpRemove:
			return slices.Delete(n, idx, idx+1), nil
		default:
			return nil, fmt.Errorf("unknown operation %q", op.Op)
		}
	default:
		return nil, fmt.Errorf("cannot address %q inside a %T", token, node)
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = clone(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = clone(e)
		}
		return c
	default:
		return v
	}
}
