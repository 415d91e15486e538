// Package validate collects field-path-scoped validation problems.
//
// Validation and generation are separate passes: authoring-time problems are
// gathered into an Errors list and reported to the plan author; they never
// surface as panics or mid-generation failures.
package validate

import (
	"fmt"
	"strings"
)

// FieldError is one validation problem, scoped to a dotted field path
// (e.g. "strategy.scheduleGroups[1].schedule.interval").
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Errors accumulates FieldErrors. The zero value is ready to use.
type Errors struct {
	prefix string
	list   *[]FieldError
}

// New returns an empty collector.
func New() *Errors {
	list := make([]FieldError, 0, 4)
	return &Errors{list: &list}
}

// Scoped returns a view of the same collector with path segment appended.
// Entries added through the view share the parent's list.
func (e *Errors) Scoped(segment string) *Errors {
	p := segment
	if e.prefix != "" {
		p = e.prefix + "." + segment
	}
	return &Errors{prefix: p, list: e.list}
}

// Indexed is Scoped for list entries: Scoped("groups[2]").
func (e *Errors) Indexed(segment string, i int) *Errors {
	return e.Scoped(fmt.Sprintf("%s[%d]", segment, i))
}

// Add records one problem under the given field, relative to the scope prefix.
// An empty field attaches the problem to the scope itself.
func (e *Errors) Add(field, format string, args ...any) {
	path := e.prefix
	if field != "" {
		if path != "" {
			path += "."
		}
		path += field
	}
	*e.list = append(*e.list, FieldError{Field: path, Message: fmt.Sprintf(format, args...)})
}

// List returns all recorded problems in insertion order.
func (e *Errors) List() []FieldError {
	return append([]FieldError(nil), *e.list...)
}

func (e *Errors) Empty() bool { return len(*e.list) == 0 }

// Err returns nil when no problems were recorded, otherwise an error
// summarizing every entry.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	msgs := make([]string, 0, len(*e.list))
	for _, fe := range *e.list {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Errorf("invalid: %s", strings.Join(msgs, "; "))
}
