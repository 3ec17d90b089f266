package relief

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relief.org/internal/events"
	"relief.org/internal/ids"
	"relief.org/internal/obs"
)

// Publisher receives domain events after a successful write.
type Publisher interface {
	Publish(evt events.Event)
}

// Service applies validation, defaults and lifecycle rules on top of a Registry.
type Service struct {
	reg    Registry
	policy TransitionPolicy
	pub    Publisher
	now    func() time.Time
}

type Option func(*Service)

// WithStrictTransitions enables forward-only status transitions.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.policy.Strict = strict }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(reg Registry, opts ...Option) *Service {
	s := &Service{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(kind, id, status string, version int64) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(events.Event{Type: kind, EntityID: id, Status: status, Version: version, At: s.now().UTC()})
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// Incidents -----------------------------------------------------------------

func (s *Service) CreateIncident(ctx context.Context, in NewIncident) (Incident, error) {
	if strings.TrimSpace(in.Type) == "" {
		return Incident{}, invalid("type is required")
	}
	sev := in.Severity
	if sev == "" {
		sev = SeverityLow
	}
	if !sev.Valid() {
		return Incident{}, invalid(fmt.Sprintf("unknown severity %q", in.Severity))
	}
	inc := Incident{
		ID:        ids.NewEntityID(),
		Type:      in.Type,
		Severity:  sev,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Needs:     in.Needs,
		Status:    IncidentOpen,
		CreatedAt: s.now().UTC(),
		Version:   1,
	}
	if err := s.reg.InsertIncident(ctx, inc); err != nil {
		return Incident{}, err
	}
	s.publish(events.IncidentCreated, inc.ID, string(inc.Status), inc.Version)
	return inc, nil
}

func (s *Service) GetIncident(ctx context.Context, id string) (Incident, error) {
	id, ok := ids.CanonicalEntityID(id)
	if !ok {
		return Incident{}, ErrNotFound
	}
	return s.reg.GetIncident(ctx, id)
}

func (s *Service) ListIncidents(ctx context.Context, f IncidentFilter) ([]Incident, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, invalid(fmt.Sprintf("unknown severity %q", f.Severity))
	}
	return s.reg.ListIncidents(ctx, f)
}

// ExportIncidents returns the rows for the CSV export, newest-first.
func (s *Service) ExportIncidents(ctx context.Context, status IncidentStatus) ([]Incident, error) {
	return s.ListIncidents(ctx, IncidentFilter{Status: status})
}

// UpdateIncidentStatus moves an incident to status. expectedVersion 0 means the
// caller did not supply one; the write is still compare-and-swap on the version read.
func (s *Service) UpdateIncidentStatus(ctx context.Context, id, status string, expectedVersion int64) (Incident, error) {
	target, err := parseIncidentStatus(status)
	if err != nil {
		return Incident{}, err
	}
	cur, err := s.GetIncident(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if expectedVersion != 0 && cur.Version != expectedVersion {
		return Incident{}, ErrVersionConflict
	}
	if cur.Status == target {
		return cur, nil
	}
	if !s.policy.IncidentAllowed(cur.Status, target) {
		return Incident{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}
	updated, err := s.reg.SetIncidentStatus(ctx, cur.ID, target, cur.Version)
	if err != nil {
		return Incident{}, err
	}
	obs.StatusTransitions.WithLabelValues("incident", string(target)).Inc()
	s.publish(events.IncidentStatusChanged, cur.ID, string(target), updated.Version)
	return updated, nil
}

// Volunteers ----------------------------------------------------------------

func (s *Service) CreateVolunteer(ctx context.Context, in NewVolunteer) (Volunteer, error) {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" {
		return Volunteer{}, invalid("full name and email are required")
	}
	availability := in.Availability
	if availability == "" {
		availability = defaultAvailability
	}
	v := Volunteer{
		ID:           ids.NewEntityID(),
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Skills:       in.Skills,
		HomeBase:     in.HomeBase,
		Availability: availability,
		CreatedAt:    s.now().UTC(),
		Version:      1,
	}
	if err := s.reg.InsertVolunteer(ctx, v); err != nil {
		return Volunteer{}, err
	}
	s.publish(events.VolunteerCreated, v.ID, "", v.Version)
	return v, nil
}

func (s *Service) GetVolunteer(ctx context.Context, id string) (Volunteer, error) {
	id, ok := ids.CanonicalEntityID(id)
	if !ok {
		return Volunteer{}, ErrNotFound
	}
	return s.reg.GetVolunteer(ctx, id)
}

func (s *Service) ListVolunteers(ctx context.Context) ([]Volunteer, error) {
	return s.reg.ListVolunteers(ctx)
}

// Donations -----------------------------------------------------------------

func (s *Service) CreateDonation(ctx context.Context, in NewDonation) (Donation, error) {
	if strings.TrimSpace(in.DonorName) == "" || strings.TrimSpace(in.ItemName) == "" {
		return Donation{}, invalid("donor name and item name are required")
	}
	if in.Quantity < 0 {
		return Donation{}, invalid("quantity must not be negative")
	}
	unit := in.Unit
	if unit == "" {
		unit = defaultUnit
	}
	d := Donation{
		ID:         ids.NewEntityID(),
		DonorName:  in.DonorName,
		DonorEmail: in.DonorEmail,
		ItemName:   in.ItemName,
		Quantity:   in.Quantity,
		Unit:       unit,
		Location:   in.Location,
		Status:     DonationPledged,
		CreatedAt:  s.now().UTC(),
		Version:    1,
	}
	if err := s.reg.InsertDonation(ctx, d); err != nil {
		return Donation{}, err
	}
	s.publish(events.DonationCreated, d.ID, string(d.Status), d.Version)
	return d, nil
}

func (s *Service) GetDonation(ctx context.Context, id string) (Donation, error) {
	id, ok := ids.CanonicalEntityID(id)
	if !ok {
		return Donation{}, ErrNotFound
	}
	return s.reg.GetDonation(ctx, id)
}

func (s *Service) ListDonations(ctx context.Context, f DonationFilter) ([]Donation, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return s.reg.ListDonations(ctx, f)
}

func (s *Service) UpdateDonationStatus(ctx context.Context, id, status string, expectedVersion int64) (Donation, error) {
	target, err := parseDonationStatus(status)
	if err != nil {
		return Donation{}, err
	}
	cur, err := s.GetDonation(ctx, id)
	if err != nil {
		return Donation{}, err
	}
	if expectedVersion != 0 && cur.Version != expectedVersion {
		return Donation{}, ErrVersionConflict
	}
	if cur.Status == target {
		return cur, nil
	}
	if !s.policy.DonationAllowed(cur.Status, target) {
		return Donation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}
	updated, err := s.reg.SetDonationStatus(ctx, cur.ID, target, cur.Version)
	if err != nil {
		return Donation{}, err
	}
	obs.StatusTransitions.WithLabelValues("donation", string(target)).Inc()
	s.publish(events.DonationStatusChanged, cur.ID, string(target), updated.Version)
	return updated, nil
}

// Assignments ---------------------------------------------------------------

// CreateAssignment rejects unknown volunteer or incident references before
// anything is written.
func (s *Service) CreateAssignment(ctx context.Context, in NewAssignment) (Assignment, error) {
	if strings.TrimSpace(in.TaskDescription) == "" {
		return Assignment{}, invalid("task description is required")
	}
	if err := ValidateAssignmentRefs(ctx, s.reg, in.VolunteerID, in.IncidentID); err != nil {
		return Assignment{}, err
	}
	// Both parse after validation; store the canonical form.
	volunteerID, _ := ids.CanonicalEntityID(in.VolunteerID)
	incidentID, _ := ids.CanonicalEntityID(in.IncidentID)
	a := Assignment{
		ID:              ids.NewEntityID(),
		VolunteerID:     volunteerID,
		IncidentID:      incidentID,
		TaskDescription: in.TaskDescription,
		Status:          AssignmentAssigned,
		AssignedAt:      s.now().UTC(),
		Version:         1,
	}
	if err := s.reg.InsertAssignment(ctx, a); err != nil {
		return Assignment{}, err
	}
	s.publish(events.AssignmentCreated, a.ID, string(a.Status), a.Version)
	return a, nil
}

func (s *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	id, ok := ids.CanonicalEntityID(id)
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return s.reg.GetAssignment(ctx, id)
}

func (s *Service) ListAssignmentsByVolunteer(ctx context.Context, volunteerID string) ([]Assignment, error) {
	volunteerID, ok := ids.CanonicalEntityID(volunteerID)
	if !ok {
		return []Assignment{}, nil
	}
	return s.reg.ListAssignmentsByVolunteer(ctx, volunteerID)
}

// CompleteAssignment applies a completion request. completed=false is a no-op,
// re-completing keeps the original completion time, and a Completed assignment
// cannot move anywhere else.
func (s *Service) CompleteAssignment(ctx context.Context, id string, in CompletionInput, expectedVersion int64) (Assignment, error) {
	target, ok, err := in.Target()
	if err != nil {
		return Assignment{}, err
	}
	cur, err := s.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if expectedVersion != 0 && cur.Version != expectedVersion {
		return Assignment{}, ErrVersionConflict
	}
	if !ok || cur.Status == target {
		return cur, nil
	}
	if !s.policy.AssignmentAllowed(cur.Status, target) {
		return Assignment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}

	var completedAt *time.Time
	if target == AssignmentCompleted {
		now := s.now().UTC()
		completedAt = &now
	}
	updated, err := s.reg.SetAssignmentStatus(ctx, cur.ID, target, completedAt, cur.Version)
	if err != nil {
		return Assignment{}, err
	}
	obs.StatusTransitions.WithLabelValues("assignment", string(target)).Inc()
	s.publish(events.AssignmentStatusChanged, cur.ID, string(target), updated.Version)
	return updated, nil
}
