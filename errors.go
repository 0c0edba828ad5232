package deform

import (
	"errors"

	"github.com/gekko3d/deform/rt/exec"
)

var (
	// ErrConfiguration rejects an instantiation outright, e.g. more
	// program slots than MaxProgramSlots.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingAttribute reports a required attribute that is absent.
	ErrMissingAttribute = errors.New("missing attribute")
	// ErrLoadFailure wraps geometry and program load errors.
	ErrLoadFailure = errors.New("load failure")
	// ErrThreadStart wraps worker start failures reported by exec.Runner.
	ErrThreadStart = exec.ErrThreadStart
)
