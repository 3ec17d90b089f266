package relief

import "fmt"

var (
	incidentOrder   = []IncidentStatus{IncidentOpen, IncidentInProgress, IncidentResolved}
	donationOrder   = []DonationStatus{DonationPledged, DonationReceived, DonationDispatched, DonationDelivered}
	assignmentOrder = []AssignmentStatus{AssignmentAssigned, AssignmentInProgress, AssignmentCompleted}
)

func rank[S comparable](order []S, s S) int {
	for i, v := range order {
		if v == s {
			return i
		}
	}
	return -1
}

func incidentRank(s IncidentStatus) int     { return rank(incidentOrder, s) }
func donationRank(s DonationStatus) int     { return rank(donationOrder, s) }
func assignmentRank(s AssignmentStatus) int { return rank(assignmentOrder, s) }

// TransitionPolicy decides which status changes are accepted. In relaxed mode
// any member may follow any member; strict mode only moves forward.
// Same-state updates never reach the policy.
type TransitionPolicy struct {
	Strict bool
}

func (p TransitionPolicy) IncidentAllowed(from, to IncidentStatus) bool {
	return !p.Strict || incidentRank(to) > incidentRank(from)
}

func (p TransitionPolicy) DonationAllowed(from, to DonationStatus) bool {
	return !p.Strict || donationRank(to) > donationRank(from)
}

// AssignmentAllowed treats Completed as terminal in both modes.
func (p TransitionPolicy) AssignmentAllowed(from, to AssignmentStatus) bool {
	if from == AssignmentCompleted {
		return false
	}
	return !p.Strict || assignmentRank(to) > assignmentRank(from)
}

// Target resolves the requested assignment status. ok is false when the input
// asks for nothing (completed=false or empty body).
func (in CompletionInput) Target() (target AssignmentStatus, ok bool, err error) {
	if in.Status != "" {
		target = AssignmentStatus(in.Status)
		if !target.Valid() {
			return "", false, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
		}
		if in.Completed != nil && *in.Completed != (target == AssignmentCompleted) {
			return "", false, fmt.Errorf("%w: completed flag contradicts status", ErrInvalidInput)
		}
		return target, true, nil
	}
	if in.Completed != nil && *in.Completed {
		return AssignmentCompleted, true, nil
	}
	return "", false, nil
}

func parseIncidentStatus(raw string) (IncidentStatus, error) {
	s := IncidentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func parseDonationStatus(raw string) (DonationStatus, error) {
	s := DonationStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
