package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/wfengine/internal/wferr"
)

var constructors = map[Kind]func() Command{
	KindAddNode:                        func() Command { return &AddNode{} },
	KindInsertNode:                     func() Command { return &InsertNode{} },
	KindReplaceNode:                    func() Command { return &ReplaceNode{} },
	KindDelete:                         func() Command { return &Delete{} },
	KindConnect:                        func() Command { return &Connect{} },
	KindAutoConnect:                    func() Command { return &AutoConnect{} },
	KindCollapse:                       func() Command { return &Collapse{} },
	KindExpand:                         func() Command { return &Expand{} },
	KindTranslate:                      func() Command { return &Translate{} },
	KindAddPort:                        func() Command { return &AddPort{} },
	KindRemovePort:                     func() Command { return &RemovePort{} },
	KindCopy:                           func() Command { return &Copy{} },
	KindCut:                            func() Command { return &Cut{} },
	KindPaste:                          func() Command { return &Paste{} },
	KindAlignNodes:                     func() Command { return &AlignNodes{} },
	KindAddBendpoint:                   func() Command { return &AddBendpoint{} },
	KindRemoveBendpoint:                func() Command { return &RemoveBendpoint{} },
	KindReorderWorkflowAnnotations:     func() Command { return &ReorderWorkflowAnnotations{} },
	KindAddWorkflowAnnotation:          func() Command { return &AddWorkflowAnnotation{} },
	KindUpdateWorkflowAnnotation:       func() Command { return &UpdateWorkflowAnnotation{} },
	KindUpdateComponentOrMetanodeName:  func() Command { return &UpdateComponentOrMetanodeName{} },
	KindUpdateNodeLabel:                func() Command { return &UpdateNodeLabel{} },
	KindUpdateProjectMetadata:          func() Command { return &UpdateProjectMetadata{} },
	KindUpdateComponentMetadata:        func() Command { return &UpdateComponentMetadata{} },
	KindUpdateComponentLinkInformation: func() Command { return &UpdateComponentLinkInformation{} },
	KindShareComponent:                 func() Command { return &ShareComponent{} },
	KindUpdateLinkedComponents:         func() Command { return &UpdateLinkedComponents{} },
	KindTransformMetanodePortsBar:      func() Command { return &TransformMetanodePortsBar{} },
}

// commandValidate checks decoded commands. Field names in messages are the
// JSON names.
var commandValidate *validator.Validate

func init() {
	commandValidate = validator.New()
	_ = commandValidate.RegisterValidation("notblank", validateNotBlank)
	commandValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateNotBlank rejects strings that are empty or whitespace only.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Kinds returns every known command kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	return kinds
}

// Decode parses the wire form `{"kind": "...", ...fields}` of a command and
// validates it.
func Decode(data []byte) (Command, error) {
	const op = "commands.Decode"
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, wferr.Wrap(wferr.KindInvalidInput, op, err, "Malformed command")
	}
	newCommand, ok := constructors[head.Kind]
	if !ok {
		return nil, wferr.InvalidInput(op, "Command of type %s cannot be executed. Unknown command.", head.Kind)
	}
	cmd := newCommand()
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, wferr.Wrap(wferr.KindInvalidInput, op, err, "Malformed %s command", head.Kind)
	}
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Validate checks the field constraints of a command.
func Validate(cmd Command) error {
	const op = "commands.Validate"
	err := commandValidate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return wferr.Wrap(wferr.KindInvalidInput, op, err, "Invalid %s command", cmd.Kind())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return wferr.InvalidInput(op, "Invalid %s command: %s", cmd.Kind(), strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

// Marshal encodes a command in its wire form.
func Marshal(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(cmd.Kind())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	buf.Write(kind)
	if rest := bytes.TrimPrefix(body, []byte("{")); !bytes.Equal(rest, []byte("}")) {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
