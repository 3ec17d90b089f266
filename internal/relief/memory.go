package relief

import (
	"context"
	"sync"
	"time"
)

var _ Registry = (*InMemory)(nil)

// table keeps rows by id plus insertion order, which doubles as creation order.
type table[T any] struct {
	rows  map[string]*T
	order []string
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]*T)}
}

func (t *table[T]) insert(id string, v T) {
	t.rows[id] = &v
	t.order = append(t.order, id)
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return *row, true
}

func (t *table[T]) newestFirst(keep func(T) bool) []T {
	out := make([]T, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		row := *t.rows[t.order[i]]
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out
}

// InMemory implements Registry with in-process concurrency safety.
type InMemory struct {
	mu          sync.RWMutex
	incidents   table[Incident]
	volunteers  table[Volunteer]
	donations   table[Donation]
	assignments table[Assignment]
}

func NewInMemory() *InMemory {
	return &InMemory{
		incidents:   newTable[Incident](),
		volunteers:  newTable[Volunteer](),
		donations:   newTable[Donation](),
		assignments: newTable[Assignment](),
	}
}

func (s *InMemory) InsertIncident(_ context.Context, inc Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents.insert(inc.ID, inc)
	return nil
}

func (s *InMemory) GetIncident(_ context.Context, id string) (Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents.get(id)
	if !ok {
		return Incident{}, ErrNotFound
	}
	return inc, nil
}

func (s *InMemory) ListIncidents(_ context.Context, f IncidentFilter) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidents.newestFirst(f.Match), nil
}

func (s *InMemory) SetIncidentStatus(_ context.Context, id string, status IncidentStatus, version int64) (Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.incidents.rows[id]
	if !ok {
		return Incident{}, ErrNotFound
	}
	if row.Version != version {
		return Incident{}, ErrVersionConflict
	}
	row.Status = status
	row.Version++
	return *row, nil
}

func (s *InMemory) IncidentExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.incidents.rows[id]
	return ok, nil
}

func (s *InMemory) InsertVolunteer(_ context.Context, v Volunteer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volunteers.insert(v.ID, v)
	return nil
}

func (s *InMemory) GetVolunteer(_ context.Context, id string) (Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.volunteers.get(id)
	if !ok {
		return Volunteer{}, ErrNotFound
	}
	return v, nil
}

func (s *InMemory) ListVolunteers(_ context.Context) ([]Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volunteers.newestFirst(nil), nil
}

func (s *InMemory) VolunteerExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.volunteers.rows[id]
	return ok, nil
}

func (s *InMemory) InsertDonation(_ context.Context, d Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations.insert(d.ID, d)
	return nil
}

func (s *InMemory) GetDonation(_ context.Context, id string) (Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donations.get(id)
	if !ok {
		return Donation{}, ErrNotFound
	}
	return d, nil
}

func (s *InMemory) ListDonations(_ context.Context, f DonationFilter) ([]Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.donations.newestFirst(f.Match), nil
}

func (s *InMemory) SetDonationStatus(_ context.Context, id string, status DonationStatus, version int64) (Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.donations.rows[id]
	if !ok {
		return Donation{}, ErrNotFound
	}
	if row.Version != version {
		return Donation{}, ErrVersionConflict
	}
	row.Status = status
	row.Version++
	return *row, nil
}

func (s *InMemory) InsertAssignment(_ context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments.insert(a.ID, a)
	return nil
}

func (s *InMemory) GetAssignment(_ context.Context, id string) (Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments.get(id)
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *InMemory) ListAssignmentsByVolunteer(_ context.Context, volunteerID string) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments.newestFirst(func(a Assignment) bool { return a.VolunteerID == volunteerID }), nil
}

func (s *InMemory) SetAssignmentStatus(_ context.Context, id string, status AssignmentStatus, completedAt *time.Time, version int64) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.assignments.rows[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	if row.Version != version {
		return Assignment{}, ErrVersionConflict
	}
	row.Status = status
	row.CompletedAt = nil
	if completedAt != nil {
		t := *completedAt
		row.CompletedAt = &t
	}
	row.Version++
	return *row, nil
}
