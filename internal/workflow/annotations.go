package workflow

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

// ReorderAction moves annotations in z-order.
type ReorderAction string

const (
	BringForward ReorderAction = "bringForward"
	BringToFront ReorderAction = "bringToFront"
	SendBackward ReorderAction = "sendBackward"
	SendToBack   ReorderAction = "sendToBack"
)

// AddAnnotation appends a on top of the container's annotations and assigns
// it a fresh id.
func (g *Graph) AddAnnotation(container nodeid.ID, a *Annotation) (AnnotationID, error) {
	l, err := g.Level(container)
	if err != nil {
		return AnnotationID{}, err
	}
	a.ID = AnnotationID{Container: container, Index: l.NextAnnotation}
	l.NextAnnotation++
	l.Annotations = append(l.Annotations, a)
	return a.ID, nil
}

// RemoveAnnotation deletes an annotation.
func (g *Graph) RemoveAnnotation(id AnnotationID) error {
	l, ok := g.levels[id.Container]
	i := -1
	if ok {
		i = l.annotationIndex(id)
	}
	if i < 0 {
		return wferr.NotFound("workflow.RemoveAnnotation", "Workflow annotation not found: %s", id)
	}
	l.Annotations = slices.Delete(l.Annotations, i, i+1)
	return nil
}

// AnnotationUpdate carries the optional fields of an annotation edit.
type AnnotationUpdate struct {
	Text        *string
	Bounds      *Bounds
	ContentType *string
	BorderColor *string
	BorderWidth *int
}

// UpdateAnnotation applies u and reports whether anything changed.
func (g *Graph) UpdateAnnotation(id AnnotationID, u AnnotationUpdate) (bool, error) {
	a, err := g.Annotation(id)
	if err != nil {
		return false, err
	}
	before := *a
	if u.Text != nil {
		a.Text = *u.Text
	}
	if u.Bounds != nil {
		a.Bounds = *u.Bounds
	}
	if u.ContentType != nil {
		a.ContentType = *u.ContentType
	}
	if u.BorderColor != nil {
		a.BorderColor = *u.BorderColor
	}
	if u.BorderWidth != nil {
		a.BorderWidth = *u.BorderWidth
	}
	return *a != before, nil
}

// ReorderAnnotations moves the selected annotations as a unit. Their
// relative order is preserved. Single step actions move each selected
// annotation past one unselected neighbour.
func (g *Graph) ReorderAnnotations(container nodeid.ID, ids []AnnotationID, action ReorderAction) (bool, error) {
	l, err := g.Level(container)
	if err != nil {
		return false, err
	}
	selected := make(map[AnnotationID]bool, len(ids))
	var missing []AnnotationID
	for _, id := range ids {
		if l.annotationIndex(id) < 0 {
			missing = append(missing, id)
			continue
		}
		selected[id] = true
	}
	if len(missing) > 0 {
		return false, wferr.NotFound("workflow.ReorderAnnotations", "Workflow annotations not found: %s", joinIDs(missing))
	}
	list := slices.Clone(l.Annotations)
	isSel := func(a *Annotation) bool { return selected[a.ID] }
	switch action {
	case BringToFront:
		list = append(slices.DeleteFunc(slices.Clone(list), isSel), filter(list, isSel)...)
	case SendToBack:
		list = append(filter(list, isSel), slices.DeleteFunc(slices.Clone(list), isSel)...)
	case BringForward:
		for i := len(list) - 2; i >= 0; i-- {
			if isSel(list[i]) && !isSel(list[i+1]) {
				list[i], list[i+1] = list[i+1], list[i]
			}
		}
	case SendBackward:
		for i := 1; i < len(list); i++ {
			if isSel(list[i]) && !isSel(list[i-1]) {
				list[i], list[i-1] = list[i-1], list[i]
			}
		}
	default:
		return false, wferr.InvalidInput("workflow.ReorderAnnotations", "Unknown reorder action '%s'", action)
	}
	if slices.Equal(list, l.Annotations) {
		return false, nil
	}
	l.Annotations = list
	return true, nil
}

func filter(list []*Annotation, keep func(*Annotation) bool) []*Annotation {
	var out []*Annotation
	for _, a := range list {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func joinIDs[T fmt.Stringer](ids []T) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += id.String()
	}
	return s
}
