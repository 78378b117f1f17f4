// Package domain defines the persistence models for coolers, complaints,
// evidence submissions, and the audit log. These types are mapped with GORM
// and form the core data layer of the cooler service backend.
package domain

import "time"

// CoolerState is the lifecycle state of a cooler's current service record.
//
// The legal transitions are:
//
//	clean               --complaint filed-->   reported
//	reported            --evidence submitted-> evidence_submitted
//	rejected            --evidence submitted-> evidence_submitted
//	evidence_submitted  --verdict approved-->  clean      (lastVerifiedAt set)
//	evidence_submitted  --verdict rejected-->  rejected   (complaint stays open)
//
// Any other event is rejected without side effects.
type CoolerState string

const (
	// StateClean means no issue is open against the cooler.
	StateClean CoolerState = "clean"
	// StateReported means a complaint is open and no evidence has been
	// submitted against it yet.
	StateReported CoolerState = "reported"
	// StateEvidenceSubmitted means a before/after evidence pair is under
	// judgment.
	StateEvidenceSubmitted CoolerState = "evidence_submitted"
	// StateRejected means the last evidence pair was judged insufficient;
	// the complaint remains open and the technician must resubmit.
	StateRejected CoolerState = "rejected"
)

// Valid reports whether s is one of the known cooler states.
func (s CoolerState) Valid() bool {
	switch s {
	case StateClean, StateReported, StateEvidenceSubmitted, StateRejected:
		return true
	}
	return false
}

// RequiresComplaint reports whether a cooler in state s must carry an open
// complaint reference. This is the structural invariant of the record:
// CurrentComplaintID is non-nil exactly when the state is one of
// reported / evidence_submitted / rejected.
func (s CoolerState) RequiresComplaint() bool {
	switch s {
	case StateReported, StateEvidenceSubmitted, StateRejected:
		return true
	}
	return false
}

// ComplaintStatus tracks a complaint through its life. Complaints are never
// deleted; a rejected evidence submission keeps the complaint open rather
// than spawning a second entry.
type ComplaintStatus string

const (
	// ComplaintOpen means the issue has not been verified as resolved.
	ComplaintOpen ComplaintStatus = "open"
	// ComplaintResolved means an approved evidence submission closed the issue.
	ComplaintResolved ComplaintStatus = "resolved"
)

// Verdict is the two-valued outcome of the external image judgment, plus the
// pending state a submission is born in. A submission is immutable once its
// verdict is no longer pending.
type Verdict string

const (
	VerdictPending  Verdict = "pending"
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Decided reports whether the verdict has been set (i.e., is not pending).
func (v Verdict) Decided() bool { return v == VerdictApproved || v == VerdictRejected }

// Cooler is the durable per-cooler service record. There is exactly one row
// per physical cooler; concurrent writers coordinate through the Version
// column (optimistic compare-and-swap).
//
// Fields:
//   - ID: stable identifier, e.g. "cooler-1".
//   - Name / Location: display metadata shown on the dashboard.
//   - State: current lifecycle state (see CoolerState).
//   - LastVerifiedAt: when an approved submission last confirmed the cooler
//     clean; nil until the first verification.
//   - CurrentComplaintID: the open complaint, when State requires one.
//   - PendingSubmissionID: an evidence submission awaiting judgment, if any.
//   - Version: monotonic counter; every successful write increments it.
type Cooler struct {
	ID                  string      `json:"id"                    gorm:"type:varchar(64);primaryKey"`
	Name                string      `json:"name"                  gorm:"type:varchar(255);not null"`
	Location            string      `json:"location"              gorm:"type:varchar(255)"`
	State               CoolerState `json:"state"                 gorm:"type:varchar(32);not null;index"`
	LastVerifiedAt      *time.Time  `json:"last_verified_at"`
	CurrentComplaintID  *string     `json:"current_complaint_id"  gorm:"type:char(36);index"`
	PendingSubmissionID *string     `json:"pending_submission_id" gorm:"type:char(36)"`
	Version             int64       `json:"version"               gorm:"not null;default:0"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Cooler.
func (Cooler) TableName() string { return "coolers" }

// InvariantHolds reports whether the record satisfies the structural
// invariant: a complaint reference is present exactly when the state
// demands one. A false result indicates corruption and is logged as a
// fatal inconsistency by the lifecycle engine, never silently patched.
func (c *Cooler) InvariantHolds() bool {
	return (c.CurrentComplaintID != nil) == c.State.RequiresComplaint()
}

// Complaint is a student-filed report of an issue against a cooler. A cooler
// carries at most one open complaint at a time; duplicates are rejected with
// a pointer to the existing entry. Complaints are owned by the lifecycle
// engine once created and are only ever transitioned, keeping an auditable
// history.
type Complaint struct {
	ID                     string          `json:"id"           gorm:"type:char(36);primaryKey"`
	CoolerID               string          `json:"cooler_id"    gorm:"type:varchar(64);not null;index:idx_cooler_complaints"`
	Description            string          `json:"description"  gorm:"type:text;not null"`
	ReportedBy             string          `json:"reported_by"  gorm:"type:varchar(64);not null"`
	ReportedAt             time.Time       `json:"reported_at"  gorm:"not null"`
	Status                 ComplaintStatus `json:"status"       gorm:"type:varchar(16);not null;index;check:status IN ('open','resolved')"`
	ResolutionSubmissionID *string         `json:"resolution_submission_id" gorm:"type:char(36)"`
	Version                int64           `json:"version"      gorm:"not null;default:0"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Complaint.
func (Complaint) TableName() string { return "complaints" }

// Submission is one technician attempt at remediation. It carries opaque
// before/after image references (storage keys, never raw bytes) and,
// optionally, a TDS meter photo used for the water-safety leg of the
// judgment. A submission may be routine maintenance, in which case
// ComplaintID is nil.
//
// A rejected submission is never retried in place; the technician creates a
// new submission, so each row is a faithful record of one attempt.
type Submission struct {
	ID             string     `json:"id"               gorm:"type:char(36);primaryKey"`
	CoolerID       string     `json:"cooler_id"        gorm:"type:varchar(64);not null;index"`
	ComplaintID    *string    `json:"complaint_id"     gorm:"type:char(36);index"`
	BeforeImageRef string     `json:"before_image_ref" gorm:"type:varchar(512);not null"`
	AfterImageRef  string     `json:"after_image_ref"  gorm:"type:varchar(512);not null"`
	TDSImageRef    *string    `json:"tds_image_ref"    gorm:"type:varchar(512)"`
	SubmittedBy    string     `json:"submitted_by"     gorm:"type:varchar(64);not null"`
	SubmittedAt    time.Time  `json:"submitted_at"     gorm:"not null"`
	Verdict        Verdict    `json:"verdict"          gorm:"type:varchar(16);not null;index;check:verdict IN ('pending','approved','rejected')"`
	VerdictReason  string     `json:"verdict_reason"   gorm:"type:text"`
	VerdictAt      *time.Time `json:"verdict_at"`
	Version        int64      `json:"version"          gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// AuditEntry is one row of the append-only audit log. Every successful
// compare-and-swap appends one entry per changed field; entries are never
// updated or deleted, so the full history of any record can always be
// reconstructed.
type AuditEntry struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(32);not null;index:idx_audit_entity,priority:1"`
	EntityID   string    `json:"entity_id"   gorm:"type:varchar(64);not null;index:idx_audit_entity,priority:2"`
	Field      string    `json:"field"       gorm:"type:varchar(64);not null"`
	OldValue   string    `json:"old_value"   gorm:"type:text"`
	NewValue   string    `json:"new_value"   gorm:"type:text"`
	Actor      string    `json:"actor"       gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "audit_log" }
