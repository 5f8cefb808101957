package plan

import (
	"errors"
	"fmt"
)

var (
	ErrCollision    = errors.New("output path collision")
	ErrDuplicate    = errors.New("duplicate logical name")
	ErrUnresolvable = errors.New("unresolvable chunk")
)

// PlanningError names the entry or chunk the planner could not place.
type PlanningError struct {
	Kind error
	Name string
	Msg  string
}

func (e *PlanningError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("plan: %v: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("plan: %v: %s: %s", e.Kind, e.Name, e.Msg)
}

func (e *PlanningError) Unwrap() error { return e.Kind }
