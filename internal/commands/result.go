package commands

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// ResultKind discriminates command results on the wire.
type ResultKind string

const (
	ResultNone                   ResultKind = ""
	ResultAddNode                ResultKind = "add_node_result"
	ResultConnect                ResultKind = "connect_result"
	ResultCollapse               ResultKind = "collapse_result"
	ResultConvert                ResultKind = "convert_result"
	ResultExpand                 ResultKind = "expand_result"
	ResultCopy                   ResultKind = "copy_result"
	ResultPaste                  ResultKind = "paste_result"
	ResultAddPort                ResultKind = "add_port_result"
	ResultAddAnnotation          ResultKind = "add_annotation_result"
	ResultShareComponent         ResultKind = "share_component_result"
	ResultUpdateLinkedComponents ResultKind = "update_linked_components_result"
)

// Outcome is part of every result. Commands without a payload return a bare
// *Outcome.
type Outcome struct {
	Kind       ResultKind `json:"kind,omitempty"`
	SnapshotID string     `json:"snapshotId"`
}

func (o *Outcome) outcome() *Outcome { return o }

// Result is the closed set of command results.
type Result interface {
	outcome() *Outcome
}

// SnapshotID returns the snapshot the result was committed as.
func SnapshotID(r Result) string {
	return r.outcome().SnapshotID
}

// KindOf returns the kind of a result.
func KindOf(r Result) ResultKind {
	return r.outcome().Kind
}

// AddNodeResult names the node created by AddNode, InsertNode or
// ReplaceNode.
type AddNodeResult struct {
	Outcome
	NewNodeID nodeid.ID `json:"newNodeId"`
}

// ConnectResult names the connection created by Connect.
type ConnectResult struct {
	Outcome
	NewConnectionID workflow.ConnectionID `json:"newConnectionId"`
}

// CollapseResult names the container a selection was collapsed into.
type CollapseResult struct {
	Outcome
	NewNodeID nodeid.ID `json:"newNodeId"`
}

// ConvertResult names a metanode that was turned into a component.
type ConvertResult struct {
	Outcome
	ConvertedNodeID nodeid.ID `json:"convertedNodeId"`
}

// ExpandResult lists the elements an expand promoted into the container.
type ExpandResult struct {
	Outcome
	ExpandedNodeIDs       []nodeid.ID             `json:"expandedNodeIds"`
	ExpandedAnnotationIDs []workflow.AnnotationID `json:"expandedAnnotationIds"`
}

// CopyResult carries a clipboard payload.
type CopyResult struct {
	Outcome
	Content string `json:"content"`
}

// PasteResult lists the pasted elements.
type PasteResult struct {
	Outcome
	NodeIDs       []nodeid.ID             `json:"nodeIds"`
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds"`
}

// AddPortResult is the index of the added port.
type AddPortResult struct {
	Outcome
	NewPortIdx int `json:"newPortIdx"`
}

// AddAnnotationResult names the created annotation.
type AddAnnotationResult struct {
	Outcome
	NewAnnotationID workflow.AnnotationID `json:"newAnnotationId"`
}

// ShareComponentResult reports where a component was shared.
type ShareComponentResult struct {
	Outcome
	URI             string `json:"uri,omitempty"`
	IsNameCollision bool   `json:"isNameCollision"`
}

// UpdateStatus is the aggregate outcome of UpdateLinkedComponents.
type UpdateStatus string

const (
	StatusSuccess   UpdateStatus = "success"
	StatusUnchanged UpdateStatus = "unchanged"
	StatusError     UpdateStatus = "error"
)

// UpdateLinkedComponentsResult reports the outcome of refreshing linked
// components. Details are only given on error.
type UpdateLinkedComponentsResult struct {
	Outcome
	Status  UpdateStatus `json:"status"`
	Details []string     `json:"details,omitempty"`
}
