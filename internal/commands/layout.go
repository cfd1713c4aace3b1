package commands

import (
	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

func (s *session) translate(c *Translate) (Result, bool, error) {
	parts := workflow.Parts{
		Nodes:       c.NodeIDs,
		Annotations: c.AnnotationIDs,
		Bendpoints:  c.ConnectionBendpoints,
		InBar:       c.MetanodeInPortsBar,
		OutBar:      c.MetanodeOutPortsBar,
	}
	if err := s.g.CheckParts(s.container, parts); err != nil {
		return nil, false, err
	}
	if c.Translation.IsZero() {
		return &Outcome{}, false, nil
	}
	s.begin()
	changed, err := s.g.Translate(s.container, parts, c.Translation)
	return &Outcome{}, changed, err
}

func (s *session) alignNodes(c *AlignNodes) (Result, bool, error) {
	if err := s.g.CheckParts(s.container, workflow.Parts{Nodes: c.NodeIDs}); err != nil {
		return nil, false, err
	}
	s.begin()
	changed, err := s.g.Align(s.container, c.NodeIDs, c.Direction)
	return &Outcome{}, changed, err
}

func (s *session) addAnnotation(c *AddWorkflowAnnotation) (Result, bool, error) {
	s.begin()
	id, err := s.g.AddAnnotation(s.container, &workflow.Annotation{
		Bounds:      c.Bounds,
		Text:        c.Text,
		BorderColor: c.BorderColor,
	})
	if err != nil {
		return nil, false, err
	}
	return &AddAnnotationResult{Outcome: Outcome{Kind: ResultAddAnnotation}, NewAnnotationID: id}, true, nil
}

func (s *session) updateAnnotation(c *UpdateWorkflowAnnotation) (Result, bool, error) {
	if c.AnnotationID.Container != s.container {
		return nil, false, wferr.NotFound("commands.UpdateWorkflowAnnotation",
			"Workflow annotation %s is not part of workflow %s", c.AnnotationID, s.container)
	}
	if _, err := s.g.Annotation(c.AnnotationID); err != nil {
		return nil, false, err
	}
	s.begin()
	changed, err := s.g.UpdateAnnotation(c.AnnotationID, workflow.AnnotationUpdate{
		Text:        c.Text,
		Bounds:      c.Bounds,
		ContentType: c.ContentType,
		BorderColor: c.BorderColor,
		BorderWidth: c.BorderWidth,
	})
	return &Outcome{}, changed, err
}

func (s *session) reorderAnnotations(c *ReorderWorkflowAnnotations) (Result, bool, error) {
	if err := s.g.CheckParts(s.container, workflow.Parts{Annotations: c.AnnotationIDs}); err != nil {
		return nil, false, err
	}
	s.begin()
	changed, err := s.g.ReorderAnnotations(s.container, c.AnnotationIDs, c.Action)
	return &Outcome{}, changed, err
}
