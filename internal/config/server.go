package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Server is the complete server configuration.
type Server struct {
	Listen         string        `json:"listen" validate:"required"`
	OpsPort        int           `json:"ops_port" validate:"gte=0,lte=65535"`
	LogLevel       string        `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `json:"log_format" validate:"oneof=text json"`
	CatalogPath    string        `json:"catalog_path"`
	CommandTimeout time.Duration `json:"command_timeout" validate:"gt=0"`

	Execution Execution `json:"execution"`
	History   History   `json:"history"`
	Snapshots Snapshots `json:"snapshots"`
	Telemetry Telemetry `json:"telemetry"`
}

// Execution configures the worker pool running native nodes.
type Execution struct {
	Workers   int           `json:"workers" validate:"gte=1"`
	NodeDelay time.Duration `json:"node_delay" validate:"gte=0"`
}

// History bounds the undo stacks.
type History struct {
	MaxEntries int `json:"max_entries" validate:"gte=1"`
}

// Snapshots configures the snapshot histories and event batching.
type Snapshots struct {
	Retain      int           `json:"retain" validate:"gte=1"`
	BatchWindow time.Duration `json:"batch_window" validate:"gt=0"`
}

// Telemetry switches the metrics endpoint.
type Telemetry struct {
	Metrics bool `json:"metrics"`
}

// Default returns the configuration used when nothing else is given.
func Default() Server {
	return Server{
		Listen:         ":7070",
		OpsPort:        7071,
		LogLevel:       "info",
		LogFormat:      "json",
		CommandTimeout: 10 * time.Second,
		Execution:      Execution{Workers: 4, NodeDelay: 50 * time.Millisecond},
		History:        History{MaxEntries: 50},
		Snapshots:      Snapshots{Retain: 64, BatchWindow: 50 * time.Millisecond},
		Telemetry:      Telemetry{Metrics: true},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports every invalid field of s in one error.
func (s Server) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	// Drop the leading struct name: "Server.execution.workers".
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}
