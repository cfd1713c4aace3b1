package catalog

import (
	"errors"
	"fmt"
)

var errNotObject = errors.New("settings must be a JSON object")

type unknownSettingError string

func (e unknownSettingError) Error() string {
	return fmt.Sprintf("unknown setting %q", string(e))
}

type settingError struct {
	name string
	err  error
}

func (e settingError) Error() string {
	return fmt.Sprintf("setting %q: %v", e.name, e.err)
}

func (e settingError) Unwrap() error { return e.err }
