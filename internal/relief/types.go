package relief

import "time"

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "Open"
	IncidentInProgress IncidentStatus = "InProgress"
	IncidentResolved   IncidentStatus = "Resolved"
)

func (s IncidentStatus) Valid() bool { return incidentRank(s) >= 0 }

type DonationStatus string

const (
	DonationPledged    DonationStatus = "Pledged"
	DonationReceived   DonationStatus = "Received"
	DonationDispatched DonationStatus = "Dispatched"
	DonationDelivered  DonationStatus = "Delivered"
)

func (s DonationStatus) Valid() bool { return donationRank(s) >= 0 }

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "Assigned"
	AssignmentInProgress AssignmentStatus = "InProgress"
	AssignmentCompleted  AssignmentStatus = "Completed"
)

func (s AssignmentStatus) Valid() bool { return assignmentRank(s) >= 0 }

const (
	defaultAvailability = "Available"
	defaultUnit         = "units"
)

// Incident is a reported situation requiring help.
type Incident struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Needs     string         `json:"needs"`
	Status    IncidentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Version   int64          `json:"version"`
}

type Volunteer struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Skills       string    `json:"skills"`
	HomeBase     string    `json:"home_base"`
	Availability string    `json:"availability"`
	CreatedAt    time.Time `json:"created_at"`
	Version      int64     `json:"version"`
}

type Donation struct {
	ID         string         `json:"id"`
	DonorName  string         `json:"donor_name"`
	DonorEmail string         `json:"donor_email"`
	ItemName   string         `json:"item_name"`
	Quantity   int            `json:"quantity"`
	Unit       string         `json:"unit"`
	Location   string         `json:"location"`
	Status     DonationStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	Version    int64          `json:"version"`
}

// Assignment links a volunteer to an incident. CompletedAt is set only while
// Status is Completed.
type Assignment struct {
	ID              string           `json:"id"`
	VolunteerID     string           `json:"volunteer_id"`
	IncidentID      string           `json:"incident_id"`
	TaskDescription string           `json:"task_description"`
	Status          AssignmentStatus `json:"status"`
	AssignedAt      time.Time        `json:"assigned_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Version         int64            `json:"version"`
}

type NewIncident struct {
	Type      string
	Severity  Severity
	Latitude  float64
	Longitude float64
	Needs     string
}

type NewVolunteer struct {
	FullName     string
	Email        string
	Phone        string
	Skills       string
	HomeBase     string
	Availability string
}

type NewDonation struct {
	DonorName  string
	DonorEmail string
	ItemName   string
	Quantity   int
	Unit       string
	Location   string
}

type NewAssignment struct {
	VolunteerID     string
	IncidentID      string
	TaskDescription string
}

// IncidentFilter narrows incident listings; empty fields match everything.
type IncidentFilter struct {
	Status   IncidentStatus
	Severity Severity
}

func (f IncidentFilter) Match(i Incident) bool {
	return (f.Status == "" || i.Status == f.Status) && (f.Severity == "" || i.Severity == f.Severity)
}

type DonationFilter struct {
	Status DonationStatus
}

func (f DonationFilter) Match(d Donation) bool {
	return f.Status == "" || d.Status == f.Status
}

// CompletionInput carries either the legacy boolean flag or an explicit target status.
type CompletionInput struct {
	Completed *bool
	Status    string
}
