package commands

import (
	"github.com/specialistvlad/wfengine/internal/nodeid"
	"github.com/specialistvlad/wfengine/internal/workflow"
)

// Kind names a command on the wire.
type Kind string

const (
	KindAddNode                        Kind = "add_node"
	KindInsertNode                     Kind = "insert_node"
	KindReplaceNode                    Kind = "replace_node"
	KindDelete                         Kind = "delete"
	KindConnect                        Kind = "connect"
	KindAutoConnect                    Kind = "auto_connect"
	KindCollapse                       Kind = "collapse"
	KindExpand                         Kind = "expand"
	KindTranslate                      Kind = "translate"
	KindAddPort                        Kind = "add_port"
	KindRemovePort                     Kind = "remove_port"
	KindCopy                           Kind = "copy"
	KindCut                            Kind = "cut"
	KindPaste                          Kind = "paste"
	KindAlignNodes                     Kind = "align_nodes"
	KindAddBendpoint                   Kind = "add_bendpoint"
	KindRemoveBendpoint                Kind = "remove_bendpoint"
	KindReorderWorkflowAnnotations     Kind = "reorder_workflow_annotations"
	KindAddWorkflowAnnotation          Kind = "add_workflow_annotation"
	KindUpdateWorkflowAnnotation       Kind = "update_workflow_annotation"
	KindUpdateComponentOrMetanodeName  Kind = "update_component_or_metanode_name"
	KindUpdateNodeLabel                Kind = "update_node_label"
	KindUpdateProjectMetadata          Kind = "update_project_metadata"
	KindUpdateComponentMetadata        Kind = "update_component_metadata"
	KindUpdateComponentLinkInformation Kind = "update_component_link_information"
	KindShareComponent                 Kind = "share_component"
	KindUpdateLinkedComponents         Kind = "update_linked_components"
	KindTransformMetanodePortsBar      Kind = "transform_metanode_ports_bar"
)

// Command is a structural change to one container. The set of commands is
// closed: only the pointer types declared in this package implement it.
type Command interface {
	Kind() Kind
	isCommand()
}

// AddNode places a new native node built from a catalog factory. When
// SourceNodeID is set the new node is connected to that node's output.
type AddNode struct {
	Position      workflow.Position `json:"position"`
	FactoryKey    string            `json:"factoryKey" validate:"required"`
	Settings      string            `json:"settings,omitempty"`
	SourceNodeID  *nodeid.ID        `json:"sourceNodeId,omitempty"`
	SourcePortIdx *int              `json:"sourcePortIdx,omitempty" validate:"omitempty,min=0"`
}

// InsertNode splices a node into an existing connection. Exactly one of
// FactoryKey and NodeID names the node to insert.
type InsertNode struct {
	ConnectionID workflow.ConnectionID `json:"connectionId"`
	Position     workflow.Position     `json:"position"`
	FactoryKey   string                `json:"factoryKey,omitempty"`
	Settings     string                `json:"settings,omitempty"`
	NodeID       *nodeid.ID            `json:"nodeId,omitempty"`
}

// ReplaceNode swaps a node for a new one from the catalog or for an
// existing node of the same container. Connections are carried over where
// the ports allow it.
type ReplaceNode struct {
	TargetNodeID      nodeid.ID  `json:"targetNodeId" validate:"required"`
	FactoryKey        string     `json:"factoryKey,omitempty"`
	Settings          string     `json:"settings,omitempty"`
	ReplacementNodeID *nodeid.ID `json:"replacementNodeId,omitempty"`
}

// Delete removes nodes, connections and annotations as one unit.
type Delete struct {
	NodeIDs       []nodeid.ID             `json:"nodeIds,omitempty"`
	ConnectionIDs []workflow.ConnectionID `json:"connectionIds,omitempty"`
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds,omitempty"`
}

// Connect adds a connection, replacing any connection at the destination
// port.
type Connect struct {
	SourceNodeID       nodeid.ID `json:"sourceNodeId" validate:"required"`
	SourcePortIdx      int       `json:"sourcePortIdx" validate:"min=0"`
	DestinationNodeID  nodeid.ID `json:"destinationNodeId" validate:"required"`
	DestinationPortIdx int       `json:"destinationPortIdx" validate:"min=0"`
}

// AutoConnect chains the selected nodes in order.
type AutoConnect struct {
	NodeIDs                     []nodeid.ID `json:"nodeIds"`
	WorkflowInPortsBarSelected  bool        `json:"workflowInPortsBarSelected,omitempty"`
	WorkflowOutPortsBarSelected bool        `json:"workflowOutPortsBarSelected,omitempty"`
	FlowVariablePortsOnly       bool        `json:"flowVariablePortsOnly,omitempty"`
}

// Collapse moves a selection into a new metanode or component.
type Collapse struct {
	NodeIDs       []nodeid.ID             `json:"nodeIds,omitempty"`
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds,omitempty"`
	ContainerType workflow.Kind           `json:"containerType" validate:"required,oneof=metanode component"`
	AllowReset    bool                    `json:"allowReset,omitempty"`
}

// Expand dissolves a metanode or component into its parent.
type Expand struct {
	NodeID     nodeid.ID `json:"nodeId" validate:"required"`
	AllowReset bool      `json:"allowReset,omitempty"`
}

// Translate moves the named parts by a delta.
type Translate struct {
	NodeIDs              []nodeid.ID                     `json:"nodeIds,omitempty"`
	AnnotationIDs        []workflow.AnnotationID         `json:"annotationIds,omitempty"`
	ConnectionBendpoints map[workflow.ConnectionID][]int `json:"connectionBendpoints,omitempty"`
	MetanodeInPortsBar   bool                            `json:"metanodeInPortsBar,omitempty"`
	MetanodeOutPortsBar  bool                            `json:"metanodeOutPortsBar,omitempty"`
	Translation          workflow.Position               `json:"translation"`
}

// AddPort adds a port to an extendable group of a native or to a container.
type AddPort struct {
	NodeID     nodeid.ID         `json:"nodeId" validate:"required"`
	Side       workflow.Side     `json:"side" validate:"required,oneof=in out"`
	PortGroup  string            `json:"portGroup,omitempty"`
	PortTypeID workflow.PortType `json:"portTypeId" validate:"required,oneof=table model image flowvariable object"`
}

// RemovePort removes a dynamic port.
type RemovePort struct {
	NodeID    nodeid.ID     `json:"nodeId" validate:"required"`
	Side      workflow.Side `json:"side" validate:"required,oneof=in out"`
	PortIndex int           `json:"portIndex" validate:"min=0"`
}

// Copy serializes a selection into a clipboard payload.
type Copy struct {
	NodeIDs       []nodeid.ID             `json:"nodeIds,omitempty"`
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds,omitempty"`
}

// Cut copies a selection and deletes it.
type Cut struct {
	NodeIDs       []nodeid.ID             `json:"nodeIds,omitempty"`
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds,omitempty"`
}

// Paste instantiates a clipboard payload. With a position the pasted parts
// are moved so that their top left corner lands on it.
type Paste struct {
	Content  string             `json:"content"`
	Position *workflow.Position `json:"position,omitempty"`
}

// AlignNodes lines nodes up with the first of them.
type AlignNodes struct {
	NodeIDs   []nodeid.ID             `json:"nodeIds" validate:"min=1"`
	Direction workflow.AlignDirection `json:"direction" validate:"required,oneof=horizontal vertical"`
}

// AddBendpoint inserts a bendpoint on a connection.
type AddBendpoint struct {
	ConnectionID workflow.ConnectionID `json:"connectionId"`
	Index        int                   `json:"index" validate:"min=0"`
	Position     workflow.Position     `json:"position"`
}

// RemoveBendpoint deletes a bendpoint from a connection.
type RemoveBendpoint struct {
	ConnectionID workflow.ConnectionID `json:"connectionId"`
	Index        int                   `json:"index" validate:"min=0"`
}

// ReorderWorkflowAnnotations changes the z-order of annotations.
type ReorderWorkflowAnnotations struct {
	AnnotationIDs []workflow.AnnotationID `json:"annotationIds" validate:"min=1"`
	Action        workflow.ReorderAction  `json:"action" validate:"required,oneof=bringForward bringToFront sendBackward sendToBack"`
}

// AddWorkflowAnnotation places a new annotation on top of the others.
type AddWorkflowAnnotation struct {
	Bounds      workflow.Bounds `json:"bounds"`
	Text        string          `json:"text,omitempty"`
	BorderColor string          `json:"borderColor,omitempty"`
}

// UpdateWorkflowAnnotation edits the given fields of an annotation.
type UpdateWorkflowAnnotation struct {
	AnnotationID workflow.AnnotationID `json:"annotationId"`
	Text         *string               `json:"text,omitempty"`
	Bounds       *workflow.Bounds      `json:"bounds,omitempty"`
	ContentType  *string               `json:"contentType,omitempty"`
	BorderColor  *string               `json:"borderColor,omitempty"`
	BorderWidth  *int                  `json:"borderWidth,omitempty" validate:"omitempty,min=0"`
}

// UpdateComponentOrMetanodeName renames a container.
type UpdateComponentOrMetanodeName struct {
	NodeID nodeid.ID `json:"nodeId" validate:"required"`
	Name   string    `json:"name" validate:"notblank"`
}

// UpdateNodeLabel replaces the text below a node.
type UpdateNodeLabel struct {
	NodeID nodeid.ID `json:"nodeId" validate:"required"`
	Label  string    `json:"label"`
}

// UpdateProjectMetadata replaces the metadata of the project workflow.
type UpdateProjectMetadata struct {
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Links       []workflow.Link `json:"links,omitempty"`
}

// UpdateComponentMetadata replaces the metadata of the component the
// command is executed in.
type UpdateComponentMetadata struct {
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Links       []workflow.Link `json:"links,omitempty"`
	Type        string          `json:"type,omitempty"`
	Icon        string          `json:"icon,omitempty"`
}

// UpdateComponentLinkInformation re-points the link of a component to
// another variant of its template URI, or removes it.
type UpdateComponentLinkInformation struct {
	NodeID      nodeid.ID   `json:"nodeId" validate:"required"`
	LinkVariant LinkVariant `json:"linkVariant" validate:"required,oneof=none absolute idBased"`
}

// ShareComponent stores a component as a template and optionally links the
// component to it.
type ShareComponent struct {
	NodeID            nodeid.ID   `json:"nodeId" validate:"required"`
	DestinationSpace  string      `json:"destinationSpace,omitempty"`
	LinkType          LinkVariant `json:"linkType,omitempty" validate:"omitempty,oneof=none absolute idBased"`
	CollisionHandling Collision   `json:"collisionHandling,omitempty" validate:"omitempty,oneof=noop overwrite autorename"`
}

// UpdateLinkedComponents refreshes linked components from their templates.
type UpdateLinkedComponents struct {
	NodeIDs []nodeid.ID `json:"nodeIds"`
}

// TransformMetanodePortsBar moves or resizes a port bar of the metanode the
// command is executed in.
type TransformMetanodePortsBar struct {
	Type   workflow.Side   `json:"type" validate:"required,oneof=in out"`
	Bounds workflow.Bounds `json:"bounds"`
}

func (*AddNode) Kind() Kind                        { return KindAddNode }
func (*InsertNode) Kind() Kind                     { return KindInsertNode }
func (*ReplaceNode) Kind() Kind                    { return KindReplaceNode }
func (*Delete) Kind() Kind                         { return KindDelete }
func (*Connect) Kind() Kind                        { return KindConnect }
func (*AutoConnect) Kind() Kind                    { return KindAutoConnect }
func (*Collapse) Kind() Kind                       { return KindCollapse }
func (*Expand) Kind() Kind                         { return KindExpand }
func (*Translate) Kind() Kind                      { return KindTranslate }
func (*AddPort) Kind() Kind                        { return KindAddPort }
func (*RemovePort) Kind() Kind                     { return KindRemovePort }
func (*Copy) Kind() Kind                           { return KindCopy }
func (*Cut) Kind() Kind                            { return KindCut }
func (*Paste) Kind() Kind                          { return KindPaste }
func (*AlignNodes) Kind() Kind                     { return KindAlignNodes }
func (*AddBendpoint) Kind() Kind                   { return KindAddBendpoint }
func (*RemoveBendpoint) Kind() Kind                { return KindRemoveBendpoint }
func (*ReorderWorkflowAnnotations) Kind() Kind     { return KindReorderWorkflowAnnotations }
func (*AddWorkflowAnnotation) Kind() Kind          { return KindAddWorkflowAnnotation }
func (*UpdateWorkflowAnnotation) Kind() Kind       { return KindUpdateWorkflowAnnotation }
func (*UpdateComponentOrMetanodeName) Kind() Kind  { return KindUpdateComponentOrMetanodeName }
func (*UpdateNodeLabel) Kind() Kind                { return KindUpdateNodeLabel }
func (*UpdateProjectMetadata) Kind() Kind          { return KindUpdateProjectMetadata }
func (*UpdateComponentMetadata) Kind() Kind        { return KindUpdateComponentMetadata }
func (*UpdateComponentLinkInformation) Kind() Kind { return KindUpdateComponentLinkInformation }
func (*ShareComponent) Kind() Kind                 { return KindShareComponent }
func (*UpdateLinkedComponents) Kind() Kind         { return KindUpdateLinkedComponents }
func (*TransformMetanodePortsBar) Kind() Kind      { return KindTransformMetanodePortsBar }

func (*AddNode) isCommand()                        {}
func (*InsertNode) isCommand()                     {}
func (*ReplaceNode) isCommand()                    {}
func (*Delete) isCommand()                         {}
func (*Connect) isCommand()                        {}
func (*AutoConnect) isCommand()                    {}
func (*Collapse) isCommand()                       {}
func (*Expand) isCommand()                         {}
func (*Translate) isCommand()                      {}
func (*AddPort) isCommand()                        {}
func (*RemovePort) isCommand()                     {}
func (*Copy) isCommand()                           {}
func (*Cut) isCommand()                            {}
func (*Paste) isCommand()                          {}
func (*AlignNodes) isCommand()                     {}
func (*AddBendpoint) isCommand()                   {}
func (*RemoveBendpoint) isCommand()                {}
func (*ReorderWorkflowAnnotations) isCommand()     {}
func (*AddWorkflowAnnotation) isCommand()          {}
func (*UpdateWorkflowAnnotation) isCommand()       {}
func (*UpdateComponentOrMetanodeName) isCommand()  {}
func (*UpdateNodeLabel) isCommand()                {}
func (*UpdateProjectMetadata) isCommand()          {}
func (*UpdateComponentMetadata) isCommand()        {}
func (*UpdateComponentLinkInformation) isCommand() {}
func (*ShareComponent) isCommand()                 {}
func (*UpdateLinkedComponents) isCommand()         {}
func (*TransformMetanodePortsBar) isCommand()      {}
