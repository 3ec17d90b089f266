package relief

import (
	"context"
	"time"
)

// Registry is the persistence boundary for relief records. Listings are
// newest-first. Set*Status methods are compare-and-swap on version: they fail
// with ErrVersionConflict when the stored version differs and bump it on success.
type Registry interface {
	IncidentStore
	VolunteerStore
	DonationStore
	AssignmentStore
}

type IncidentStore interface {
	InsertIncident(ctx context.Context, inc Incident) error
	GetIncident(ctx context.Context, id string) (Incident, error)
	ListIncidents(ctx context.Context, f IncidentFilter) ([]Incident, error)
	SetIncidentStatus(ctx context.Context, id string, status IncidentStatus, version int64) (Incident, error)
	IncidentExists(ctx context.Context, id string) (bool, error)
}

type VolunteerStore interface {
	InsertVolunteer(ctx context.Context, v Volunteer) error
	GetVolunteer(ctx context.Context, id string) (Volunteer, error)
	ListVolunteers(ctx context.Context) ([]Volunteer, error)
	VolunteerExists(ctx context.Context, id string) (bool, error)
}

type DonationStore interface {
	InsertDonation(ctx context.Context, d Donation) error
	GetDonation(ctx context.Context, id string) (Donation, error)
	ListDonations(ctx context.Context, f DonationFilter) ([]Donation, error)
	SetDonationStatus(ctx context.Context, id string, status DonationStatus, version int64) (Donation, error)
}

type AssignmentStore interface {
	InsertAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignmentsByVolunteer(ctx context.Context, volunteerID string) ([]Assignment, error)
	SetAssignmentStatus(ctx context.Context, id string, status AssignmentStatus, completedAt *time.Time, version int64) (Assignment, error)
}
