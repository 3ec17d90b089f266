package relief

import (
	"context"

	"relief.org/internal/ids"
	"relief.org/internal/obs"
)

// ReferenceChecker answers whether assignment targets exist.
type ReferenceChecker interface {
	VolunteerExists(ctx context.Context, id string) (bool, error)
	IncidentExists(ctx context.Context, id string) (bool, error)
}

// ValidateAssignmentRefs checks both references and reports every missing one.
// Malformed ids count as missing. The check is not repeated after insert.
func ValidateAssignmentRefs(ctx context.Context, refs ReferenceChecker, volunteerID, incidentID string) error {
	var v ReferentialViolation

	if id, valid := ids.CanonicalEntityID(volunteerID); valid {
		ok, err := refs.VolunteerExists(ctx, id)
		if err != nil {
			return err
		}
		v.VolunteerMissing = !ok
	} else {
		v.VolunteerMissing = true
	}

	if id, valid := ids.CanonicalEntityID(incidentID); valid {
		ok, err := refs.IncidentExists(ctx, id)
		if err != nil {
			return err
		}
		v.IncidentMissing = !ok
	} else {
		v.IncidentMissing = true
	}

	if v.VolunteerMissing || v.IncidentMissing {
		obs.ReferentialViolations.Inc()
		return &v
	}
	return nil
}
