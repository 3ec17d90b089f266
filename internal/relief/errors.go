package relief

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("relief: not found")
	ErrInvalidInput      = errors.New("relief: invalid input")
	ErrInvalidStatus     = errors.New("relief: unknown status")
	ErrInvalidTransition = errors.New("relief: status transition not allowed")
	ErrVersionConflict   = errors.New("relief: version conflict")

	ErrReferentialViolation = errors.New("relief: invalid volunteer or incident")
)

// ReferentialViolation names which references of a new assignment do not resolve.
type ReferentialViolation struct {
	VolunteerMissing bool
	IncidentMissing  bool
}

func (e *ReferentialViolation) Error() string {
	var missing []string
	if e.VolunteerMissing {
		missing = append(missing, "volunteer")
	}
	if e.IncidentMissing {
		missing = append(missing, "incident")
	}
	return "invalid volunteer or incident: unknown " + strings.Join(missing, " and ")
}

func (e *ReferentialViolation) Is(target error) bool {
	return target == ErrReferentialViolation
}
