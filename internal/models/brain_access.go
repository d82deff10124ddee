package models

import "time"

// BrainAccessStatus is the provisioning state of a user's Brain.
type BrainAccessStatus string

const (
	BrainAccessNone      BrainAccessStatus = "none"
	BrainAccessRequested BrainAccessStatus = "requested"
	BrainAccessApproved  BrainAccessStatus = "approved"
	BrainAccessRejected  BrainAccessStatus = "rejected"
)

// ValidBrainAccessStatuses is the set of all valid statuses.
var ValidBrainAccessStatuses = []BrainAccessStatus{
	BrainAccessNone,
	BrainAccessRequested,
	BrainAccessApproved,
	BrainAccessRejected,
}

// IsValid returns true if the status is recognized.
func (s BrainAccessStatus) IsValid() bool {
	for _, v := range ValidBrainAccessStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is defined from s.
func (s BrainAccessStatus) IsTerminal() bool {
	return s == BrainAccessApproved || s == BrainAccessRejected
}

// RequesterInfo describes the user asking for Brain provisioning.
type RequesterInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
}

// BrainAccessRequest is the per-user provisioning record.
type BrainAccessRequest struct {
	UserID          string            `json:"user_id"`
	RequestID       string            `json:"request_id,omitempty"`
	Status          BrainAccessStatus `json:"status"`
	Requester       RequesterInfo     `json:"requester,omitzero"`
	RequestedAt     time.Time         `json:"requested_at,omitzero"`
	ApprovedAt      time.Time         `json:"approved_at,omitzero"`
	RejectedAt      time.Time         `json:"rejected_at,omitzero"`
	ApproverID      string            `json:"approver_id,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
}

// NoBrainAccess returns the initial record for a user who never requested.
func NoBrainAccess(userID string) BrainAccessRequest {
	return BrainAccessRequest{UserID: userID, Status: BrainAccessNone}
}

// UserRecord is the persisted per-user state consumed by the access engine.
type UserRecord struct {
	UserID            string             `json:"user_id"`
	Plan              Plan               `json:"plan"`
	UploadsThisPeriod int                `json:"uploads_this_period"`
	PeriodStart       time.Time          `json:"period_start,omitzero"`
	BrainAccess       BrainAccessRequest `json:"brain_access"`
}
