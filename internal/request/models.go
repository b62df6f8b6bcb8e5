package request

import (
	"time"

	id "certflow/pkg/domain"
)

// Status is the coarse lifecycle state of a certification request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known request statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Request is an applicant's certification submission. Applicant fields are
// immutable after creation; only Status changes, and only through the
// workflow engine.
type Request struct {
	ID               id.RequestID
	ApplicantName    string
	ApplicantAddress string
	ProjectName      string
	ProjectLocation  string
	ProjectPurpose   string
	Status           Status
	OwnerID          *id.UserID
	SubmittedAt      time.Time
	UpdatedAt        time.Time
}
