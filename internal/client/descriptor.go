package client

import (
	"fmt"

	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// stage is how far a chain has progressed within its mode.
type stage int

const (
	// stageEntered: the entry method ran, nothing else is known.
	stageEntered stage = iota
	// stageTargeted: the resource type (or operation name) is known.
	stageTargeted
	// stageReady: the id or subject is known and the chain can run.
	stageReady
)

// descriptor is the mutable state one chain accumulates. It is never shared
// between chains.
type descriptor struct {
	mode          fhir.Mode
	resourceType  string
	resourceID    string
	operationName string
	subjectID     string
	filters       []fhir.Filter

	stage    stage
	err      error
	consumed bool
}

func newDescriptor(mode fhir.Mode) *descriptor {
	return &descriptor{mode: mode, stage: stageEntered}
}

// fail records err unless an earlier error is already recorded.
func (d *descriptor) fail(format string, args ...interface{}) {
	if d.err != nil {
		return
	}

	d.err = fmt.Errorf("%w: "+format, append([]interface{}{fhir.ErrInvalidChainState}, args...)...)
}

// check reports whether step may run now. On failure the reason is recorded
// and surfaced by the terminal call.
func (d *descriptor) check(mode fhir.Mode, at stage, step string) bool {
	switch {
	case d.err != nil:
		return false
	case d.consumed:
		d.fail("%s called on a chain that already ran", step)
	case d.mode != mode:
		d.fail("%s is not valid in %s mode", step, d.mode)
	case d.stage != at:
		d.fail("%s is not valid at this point of a %s chain", step, d.mode)
	default:
		return true
	}

	return false
}

// finish guards a terminal call and marks the chain consumed.
func (d *descriptor) finish(mode fhir.Mode, at stage, step string) error {
	d.check(mode, at, step)
	d.consumed = true

	return d.err
}

// addFilter appends a predicate, keeping insertion order.
func (d *descriptor) addFilter(filter fhir.Filter) {
	if filter.Key == "" {
		d.fail("search parameter key is empty")

		return
	}

	if d.filters == nil {
		d.filters = make([]fhir.Filter, 0, 1)
	}

	d.filters = append(d.filters, filter)
}
