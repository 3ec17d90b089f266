package relief

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"relief.org/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(evt events.Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	reg   *InMemory
	pub   *recordingPublisher
	svc   *Service
	clock time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = NewInMemory()
	s.pub = &recordingPublisher{}
	s.clock = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.svc = NewService(s.reg, WithPublisher(s.pub), WithClock(func() time.Time { return s.clock }))
}

func (s *ServiceSuite) tick() { s.clock = s.clock.Add(time.Second) }

func (s *ServiceSuite) incident(kind string) Incident {
	inc, err := s.svc.CreateIncident(s.ctx, NewIncident{Type: kind, Latitude: 1.5, Longitude: 2.5})
	s.Require().NoError(err)
	s.tick()
	return inc
}

func (s *ServiceSuite) volunteer() Volunteer {
	v, err := s.svc.CreateVolunteer(s.ctx, NewVolunteer{FullName: "V One", Email: "v@x.org"})
	s.Require().NoError(err)
	s.tick()
	return v
}

func (s *ServiceSuite) TestCreateIncidentDefaults() {
	inc := s.incident("Flood")
	s.Equal(SeverityLow, inc.Severity)
	s.Equal(IncidentOpen, inc.Status)
	s.Equal(int64(1), inc.Version)

	got, err := s.svc.GetIncident(s.ctx, inc.ID)
	s.Require().NoError(err)
	s.Equal(inc, got)
}

func (s *ServiceSuite) TestCreateValidation() {
	_, err := s.svc.CreateIncident(s.ctx, NewIncident{})
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.svc.CreateIncident(s.ctx, NewIncident{Type: "Fire", Severity: "Catastrophic"})
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.svc.CreateVolunteer(s.ctx, NewVolunteer{FullName: "No Email"})
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.svc.CreateDonation(s.ctx, NewDonation{DonorName: "D", ItemName: "Water", Quantity: -1})
	s.ErrorIs(err, ErrInvalidInput)
	_, err = s.svc.CreateDonation(s.ctx, NewDonation{ItemName: "Water"})
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ServiceSuite) TestDefaultsForVolunteerAndDonation() {
	v := s.volunteer()
	s.Equal("Available", v.Availability)

	d, err := s.svc.CreateDonation(s.ctx, NewDonation{DonorName: "D", ItemName: "Water", Quantity: 0})
	s.Require().NoError(err)
	s.Equal("units", d.Unit)
	s.Equal(DonationPledged, d.Status)
}

func (s *ServiceSuite) TestListIncidentsNewestFirstWithFilters() {
	a := s.incident("A")
	b, err := s.svc.CreateIncident(s.ctx, NewIncident{Type: "B", Severity: SeverityHigh})
	s.Require().NoError(err)
	s.tick()
	c := s.incident("C")
	_, err = s.svc.UpdateIncidentStatus(s.ctx, c.ID, "Resolved", 0)
	s.Require().NoError(err)

	all, err := s.svc.ListIncidents(s.ctx, IncidentFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	high, err := s.svc.ListIncidents(s.ctx, IncidentFilter{Severity: SeverityHigh})
	s.Require().NoError(err)
	s.Require().Len(high, 1)
	s.Equal(b.ID, high[0].ID)

	open, err := s.svc.ListIncidents(s.ctx, IncidentFilter{Status: IncidentOpen})
	s.Require().NoError(err)
	s.Len(open, 2)

	_, err = s.svc.ListIncidents(s.ctx, IncidentFilter{Status: "Closed"})
	s.ErrorIs(err, ErrInvalidStatus)
}

func (s *ServiceSuite) TestUpdateIncidentStatusIsIdempotent() {
	inc := s.incident("Flood")

	first, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Resolved", 0)
	s.Require().NoError(err)
	second, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Resolved", 0)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(IncidentResolved, second.Status)
	s.Equal(int64(2), second.Version)
	s.Equal([]string{events.IncidentCreated, events.IncidentStatusChanged}, s.pub.types())
}

func (s *ServiceSuite) TestUpdateIncidentStatusRejectsUnknownStatusAndMissingIncident() {
	inc := s.incident("Flood")
	_, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Closed", 0)
	s.ErrorIs(err, ErrInvalidStatus)

	_, err = s.svc.UpdateIncidentStatus(s.ctx, "00000000-0000-0000-0000-000000000000", "Resolved", 0)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.svc.UpdateIncidentStatus(s.ctx, "not-a-uuid", "Resolved", 0)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestRelaxedModeAllowsBackwardMoves() {
	inc := s.incident("Flood")
	_, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Resolved", 0)
	s.Require().NoError(err)
	back, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Open", 0)
	s.Require().NoError(err)
	s.Equal(IncidentOpen, back.Status)
}

func (s *ServiceSuite) TestStrictModeIsForwardOnly() {
	strict := NewService(s.reg, WithStrictTransitions(true))
	inc := s.incident("Flood")

	_, err := strict.UpdateIncidentStatus(s.ctx, inc.ID, "InProgress", 0)
	s.Require().NoError(err)
	_, err = strict.UpdateIncidentStatus(s.ctx, inc.ID, "Open", 0)
	s.ErrorIs(err, ErrInvalidTransition)

	d, err := strict.CreateDonation(s.ctx, NewDonation{DonorName: "D", ItemName: "Rice", Quantity: 3})
	s.Require().NoError(err)
	_, err = strict.UpdateDonationStatus(s.ctx, d.ID, "Received", 0)
	s.Require().NoError(err)
	_, err = strict.UpdateDonationStatus(s.ctx, d.ID, "Pledged", 0)
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *ServiceSuite) TestVersionConflict() {
	inc := s.incident("Flood")
	_, err := s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "InProgress", 1)
	s.Require().NoError(err)
	_, err = s.svc.UpdateIncidentStatus(s.ctx, inc.ID, "Resolved", 1)
	s.ErrorIs(err, ErrVersionConflict)
}

func (s *ServiceSuite) TestDonationStatusUpdate() {
	d, err := s.svc.CreateDonation(s.ctx, NewDonation{DonorName: "D", ItemName: "Rice", Quantity: 10, Unit: "kg"})
	s.Require().NoError(err)

	got, err := s.svc.UpdateDonationStatus(s.ctx, d.ID, "Delivered", 0)
	s.Require().NoError(err)
	s.Equal(DonationDelivered, got.Status)

	list, err := s.svc.ListDonations(s.ctx, DonationFilter{Status: DonationDelivered})
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.svc.UpdateDonationStatus(s.ctx, d.ID, "Lost", 0)
	s.ErrorIs(err, ErrInvalidStatus)
}

func (s *ServiceSuite) TestAssignmentReferentialViolation() {
	v := s.volunteer()
	inc := s.incident("Flood")
	ghost := "11111111-1111-1111-1111-111111111111"

	_, err := s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: ghost, IncidentID: inc.ID, TaskDescription: "x"})
	var rv *ReferentialViolation
	s.Require().True(errors.As(err, &rv))
	s.True(rv.VolunteerMissing)
	s.False(rv.IncidentMissing)
	s.ErrorIs(err, ErrReferentialViolation)

	_, err = s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: v.ID, IncidentID: ghost, TaskDescription: "x"})
	s.Require().True(errors.As(err, &rv))
	s.False(rv.VolunteerMissing)
	s.True(rv.IncidentMissing)

	_, err = s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: "junk", IncidentID: ghost, TaskDescription: "x"})
	s.Require().True(errors.As(err, &rv))
	s.True(rv.VolunteerMissing)
	s.True(rv.IncidentMissing)

	list, err := s.svc.ListAssignmentsByVolunteer(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ServiceSuite) TestNonCanonicalIDsResolveToStoredRecords() {
	v := s.volunteer()
	inc := s.incident("Flood")
	upperV := strings.ToUpper(v.ID)
	bracedInc := "{" + inc.ID + "}"

	got, err := s.svc.GetVolunteer(s.ctx, "urn:uuid:"+v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)

	a, err := s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: upperV, IncidentID: bracedInc, TaskDescription: "t"})
	s.Require().NoError(err)
	s.Equal(v.ID, a.VolunteerID)
	s.Equal(inc.ID, a.IncidentID)

	list, err := s.svc.ListAssignmentsByVolunteer(s.ctx, upperV)
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	updated, err := s.svc.UpdateIncidentStatus(s.ctx, strings.ToUpper(inc.ID), "InProgress", 0)
	s.Require().NoError(err)
	s.Equal(inc.ID, updated.ID)
	s.Equal(IncidentInProgress, updated.Status)
}

func (s *ServiceSuite) TestAssignmentCompletionLifecycle() {
	v := s.volunteer()
	inc := s.incident("Flood")
	a, err := s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: v.ID, IncidentID: inc.ID, TaskDescription: "Deliver water"})
	s.Require().NoError(err)
	s.Equal(AssignmentAssigned, a.Status)
	s.Nil(a.CompletedAt)

	no := false
	unchanged, err := s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Completed: &no}, 0)
	s.Require().NoError(err)
	s.Equal(a, unchanged)

	s.tick()
	yes := true
	done, err := s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Completed: &yes}, 0)
	s.Require().NoError(err)
	s.Equal(AssignmentCompleted, done.Status)
	s.Require().NotNil(done.CompletedAt)
	s.Equal(s.clock, *done.CompletedAt)

	s.tick()
	again, err := s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Completed: &yes}, 0)
	s.Require().NoError(err)
	s.Equal(*done.CompletedAt, *again.CompletedAt)
	s.Equal(done.Version, again.Version)

	// completed=false never reopens a Completed assignment.
	kept, err := s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Completed: &no}, 0)
	s.Require().NoError(err)
	s.Equal(AssignmentCompleted, kept.Status)
	s.Require().NotNil(kept.CompletedAt)
	s.Equal(*done.CompletedAt, *kept.CompletedAt)
	s.Equal(done.Version, kept.Version)

	_, err = s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Status: "Assigned"}, 0)
	s.ErrorIs(err, ErrInvalidTransition)

	list, err := s.svc.ListAssignmentsByVolunteer(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(AssignmentCompleted, list[0].Status)
}

func (s *ServiceSuite) TestAssignmentExplicitStatus() {
	v := s.volunteer()
	inc := s.incident("Flood")
	a, err := s.svc.CreateAssignment(s.ctx, NewAssignment{VolunteerID: v.ID, IncidentID: inc.ID, TaskDescription: "t"})
	s.Require().NoError(err)

	prog, err := s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Status: "InProgress"}, 1)
	s.Require().NoError(err)
	s.Equal(AssignmentInProgress, prog.Status)
	s.Nil(prog.CompletedAt)

	_, err = s.svc.CompleteAssignment(s.ctx, a.ID, CompletionInput{Status: "Done"}, 0)
	s.ErrorIs(err, ErrInvalidStatus)

	_, err = s.svc.CompleteAssignment(s.ctx, "22222222-2222-2222-2222-222222222222", CompletionInput{Status: "Completed"}, 0)
	s.ErrorIs(err, ErrNotFound)
}

func TestCompletionTarget(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		name  string
		in    CompletionInput
		want  AssignmentStatus
		ok    bool
		errIs error
	}{
		{name: "empty", in: CompletionInput{}},
		{name: "false", in: CompletionInput{Completed: &no}},
		{name: "true", in: CompletionInput{Completed: &yes}, want: AssignmentCompleted, ok: true},
		{name: "status", in: CompletionInput{Status: "InProgress"}, want: AssignmentInProgress, ok: true},
		{name: "agreeing", in: CompletionInput{Completed: &yes, Status: "Completed"}, want: AssignmentCompleted, ok: true},
		{name: "contradicting", in: CompletionInput{Completed: &yes, Status: "Assigned"}, errIs: ErrInvalidInput},
		{name: "unknown", in: CompletionInput{Status: "Paused"}, errIs: ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := tc.in.Target()
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransitionPolicy(t *testing.T) {
	relaxed := TransitionPolicy{}
	strict := TransitionPolicy{Strict: true}

	assert.True(t, relaxed.IncidentAllowed(IncidentResolved, IncidentOpen))
	assert.False(t, strict.IncidentAllowed(IncidentResolved, IncidentOpen))
	assert.True(t, strict.IncidentAllowed(IncidentOpen, IncidentResolved))

	assert.True(t, relaxed.DonationAllowed(DonationDelivered, DonationPledged))
	assert.False(t, strict.DonationAllowed(DonationDispatched, DonationReceived))

	assert.False(t, relaxed.AssignmentAllowed(AssignmentCompleted, AssignmentAssigned))
	assert.True(t, relaxed.AssignmentAllowed(AssignmentInProgress, AssignmentAssigned))
	assert.False(t, strict.AssignmentAllowed(AssignmentInProgress, AssignmentAssigned))
}

func TestInMemoryCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemory()
	require.NoError(t, reg.InsertIncident(ctx, Incident{ID: "i1", Status: IncidentOpen, Version: 1}))

	_, err := reg.SetIncidentStatus(ctx, "i1", IncidentResolved, 2)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := reg.SetIncidentStatus(ctx, "i1", IncidentResolved, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	_, err = reg.SetIncidentStatus(ctx, "missing", IncidentResolved, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
