package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"relief.org/internal/relief"
)

var _ relief.Registry = (*Store)(nil)

// Store implements relief.Registry on PostgreSQL through the pgx stdlib driver.
type Store struct {
	db *sql.DB
}

// PoolConfig tunes the database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func Open(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 10
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = pool.MaxOpenConns
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle; used by tests with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

type scanner interface {
	Scan(dest ...any) error
}

// exists reports whether id is present in table. table is always a constant.
func (s *Store) exists(ctx context.Context, table, id string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`select exists(select 1 from %s where id=$1)`, table), id).Scan(&ok)
	return ok, err
}

// casMiss explains a compare-and-swap update that matched no row.
func (s *Store) casMiss(ctx context.Context, table, id string) error {
	ok, err := s.exists(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return relief.ErrNotFound
	}
	return relief.ErrVersionConflict
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return relief.ErrNotFound
	}
	return err
}

// where joins non-empty equality filters into a where clause with positional args.
func where(filters map[string]string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	for _, col := range []string{"status", "severity", "volunteer_id"} {
		v, ok := filters[col]
		if !ok || v == "" {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

// Incidents -----------------------------------------------------------------

const incidentCols = `id, type, severity, latitude, longitude, needs, status, created_at, version`

func scanIncident(row scanner) (relief.Incident, error) {
	var (
		inc              relief.Incident
		severity, status string
	)
	if err := row.Scan(&inc.ID, &inc.Type, &severity, &inc.Latitude, &inc.Longitude, &inc.Needs, &status, &inc.CreatedAt, &inc.Version); err != nil {
		return relief.Incident{}, err
	}
	inc.Severity = relief.Severity(severity)
	inc.Status = relief.IncidentStatus(status)
	return inc, nil
}

func (s *Store) InsertIncident(ctx context.Context, inc relief.Incident) error {
	_, err := s.db.ExecContext(ctx,
		`insert into incidents(`+incidentCols+`) values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		inc.ID, inc.Type, string(inc.Severity), inc.Latitude, inc.Longitude, inc.Needs, string(inc.Status), inc.CreatedAt, inc.Version,
	)
	return err
}

func (s *Store) GetIncident(ctx context.Context, id string) (relief.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx, `select `+incidentCols+` from incidents where id=$1`, id))
	return inc, notFound(err)
}

func (s *Store) ListIncidents(ctx context.Context, f relief.IncidentFilter) ([]relief.Incident, error) {
	clause, args := where(map[string]string{"status": string(f.Status), "severity": string(f.Severity)})
	rows, err := s.db.QueryContext(ctx, `select `+incidentCols+` from incidents`+clause+` order by created_at desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []relief.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *Store) SetIncidentStatus(ctx context.Context, id string, status relief.IncidentStatus, version int64) (relief.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx,
		`update incidents set status=$2, version=version+1 where id=$1 and version=$3 returning `+incidentCols,
		id, string(status), version))
	if errors.Is(err, sql.ErrNoRows) {
		return relief.Incident{}, s.casMiss(ctx, "incidents", id)
	}
	return inc, err
}

func (s *Store) IncidentExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "incidents", id)
}

// Volunteers ----------------------------------------------------------------

const volunteerCols = `id, full_name, email, phone, skills, home_base, availability, created_at, version`

func scanVolunteer(row scanner) (relief.Volunteer, error) {
	var v relief.Volunteer
	err := row.Scan(&v.ID, &v.FullName, &v.Email, &v.Phone, &v.Skills, &v.HomeBase, &v.Availability, &v.CreatedAt, &v.Version)
	return v, err
}

func (s *Store) InsertVolunteer(ctx context.Context, v relief.Volunteer) error {
	_, err := s.db.ExecContext(ctx,
		`insert into volunteers(`+volunteerCols+`) values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.FullName, v.Email, v.Phone, v.Skills, v.HomeBase, v.Availability, v.CreatedAt, v.Version,
	)
	return err
}

func (s *Store) GetVolunteer(ctx context.Context, id string) (relief.Volunteer, error) {
	v, err := scanVolunteer(s.db.QueryRowContext(ctx, `select `+volunteerCols+` from volunteers where id=$1`, id))
	return v, notFound(err)
}

func (s *Store) ListVolunteers(ctx context.Context) ([]relief.Volunteer, error) {
	rows, err := s.db.QueryContext(ctx, `select `+volunteerCols+` from volunteers order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []relief.Volunteer{}
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) VolunteerExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "volunteers", id)
}

// Donations -----------------------------------------------------------------

const donationCols = `id, donor_name, donor_email, item_name, quantity, unit, location, status, created_at, version`

func scanDonation(row scanner) (relief.Donation, error) {
	var (
		d      relief.Donation
		status string
	)
	if err := row.Scan(&d.ID, &d.DonorName, &d.DonorEmail, &d.ItemName, &d.Quantity, &d.Unit, &d.Location, &status, &d.CreatedAt, &d.Version); err != nil {
		return relief.Donation{}, err
	}
	d.Status = relief.DonationStatus(status)
	return d, nil
}

func (s *Store) InsertDonation(ctx context.Context, d relief.Donation) error {
	_, err := s.db.ExecContext(ctx,
		`insert into donations(`+donationCols+`) values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.DonorName, d.DonorEmail, d.ItemName, d.Quantity, d.Unit, d.Location, string(d.Status), d.CreatedAt, d.Version,
	)
	return err
}

func (s *Store) GetDonation(ctx context.Context, id string) (relief.Donation, error) {
	d, err := scanDonation(s.db.QueryRowContext(ctx, `select `+donationCols+` from donations where id=$1`, id))
	return d, notFound(err)
}

func (s *Store) ListDonations(ctx context.Context, f relief.DonationFilter) ([]relief.Donation, error) {
	clause, args := where(map[string]string{"status": string(f.Status)})
	rows, err := s.db.QueryContext(ctx, `select `+donationCols+` from donations`+clause+` order by created_at desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []relief.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) SetDonationStatus(ctx context.Context, id string, status relief.DonationStatus, version int64) (relief.Donation, error) {
	d, err := scanDonation(s.db.QueryRowContext(ctx,
		`update donations set status=$2, version=version+1 where id=$1 and version=$3 returning `+donationCols,
		id, string(status), version))
	if errors.Is(err, sql.ErrNoRows) {
		return relief.Donation{}, s.casMiss(ctx, "donations", id)
	}
	return d, err
}

// Assignments ---------------------------------------------------------------

const assignmentCols = `id, volunteer_id, incident_id, task_description, status, assigned_at, completed_at, version`

func scanAssignment(row scanner) (relief.Assignment, error) {
	var (
		a         relief.Assignment
		status    string
		completed sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.VolunteerID, &a.IncidentID, &a.TaskDescription, &status, &a.AssignedAt, &completed, &a.Version); err != nil {
		return relief.Assignment{}, err
	}
	a.Status = relief.AssignmentStatus(status)
	if completed.Valid {
		t := completed.Time
		a.CompletedAt = &t
	}
	return a, nil
}

func (s *Store) InsertAssignment(ctx context.Context, a relief.Assignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into assignments(`+assignmentCols+`) values($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.VolunteerID, a.IncidentID, a.TaskDescription, string(a.Status), a.AssignedAt, nullTime(a.CompletedAt), a.Version,
	)
	return err
}

func (s *Store) GetAssignment(ctx context.Context, id string) (relief.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, `select `+assignmentCols+` from assignments where id=$1`, id))
	return a, notFound(err)
}

func (s *Store) ListAssignmentsByVolunteer(ctx context.Context, volunteerID string) ([]relief.Assignment, error) {
	clause, args := where(map[string]string{"volunteer_id": volunteerID})
	rows, err := s.db.QueryContext(ctx, `select `+assignmentCols+` from assignments`+clause+` order by assigned_at desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []relief.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SetAssignmentStatus(ctx context.Context, id string, status relief.AssignmentStatus, completedAt *time.Time, version int64) (relief.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`update assignments set status=$2, completed_at=$3, version=version+1 where id=$1 and version=$4 returning `+assignmentCols,
		id, string(status), nullTime(completedAt), version))
	if errors.Is(err, sql.ErrNoRows) {
		return relief.Assignment{}, s.casMiss(ctx, "assignments", id)
	}
	return a, err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
