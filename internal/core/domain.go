package core

import (
	"time"

	"github.com/google/uuid"
)

type DomainStatus string

const (
	StatusPending      DomainStatus = "pending"
	StatusDNSVerified  DomainStatus = "dns_verified"
	StatusFailed       DomainStatus = "failed"
	StatusActive       DomainStatus = "active"
	StatusDisconnected DomainStatus = "disconnected"
)

// transitions lists every status change the lifecycle allows.
var transitions = map[DomainStatus][]DomainStatus{
	StatusPending:      {StatusDNSVerified, StatusFailed},
	StatusFailed:       {StatusDNSVerified, StatusFailed},
	StatusDNSVerified:  {StatusDNSVerified, StatusFailed, StatusActive},
	StatusActive:       {StatusDisconnected},
	StatusDisconnected: {StatusActive},
}

func (s DomainStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s DomainStatus) CanTransitionTo(next DomainStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Routable reports whether traffic for the hostname may be served.
func (s DomainStatus) Routable() bool {
	return s == StatusActive
}

func ParseStatus(s string) (DomainStatus, bool) {
	status := DomainStatus(s)
	return status, status.Valid()
}

type DomainRecord struct {
	ID      uuid.UUID    `json:"id" db:"id"`
	SpaceID uuid.UUID    `json:"space_id" db:"space_id"`
	Domain  string       `json:"domain" db:"domain"`
	Status  DomainStatus `json:"status" db:"status"`

	DNSVerifiedAt  *time.Time `json:"dns_verified_at,omitempty" db:"dns_verified_at"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty" db:"disconnected_at"`
	FailureReason  *string    `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StatusUpdate is applied by a store only when the record still holds the
// expected prior status. Nil timestamps leave the stored value untouched.
type StatusUpdate struct {
	Status         DomainStatus
	UpdatedAt      time.Time
	DNSVerifiedAt  *time.Time
	ActivatedAt    *time.Time
	DisconnectedAt *time.Time
	FailureReason  string
}

// Apply returns a copy of rec with the update applied.
func (u StatusUpdate) Apply(rec DomainRecord) DomainRecord {
	rec.Status = u.Status
	rec.UpdatedAt = u.UpdatedAt
	if u.DNSVerifiedAt != nil {
		t := *u.DNSVerifiedAt
		rec.DNSVerifiedAt = &t
	}
	if u.ActivatedAt != nil {
		t := *u.ActivatedAt
		rec.ActivatedAt = &t
	}
	if u.DisconnectedAt != nil {
		t := *u.DisconnectedAt
		rec.DisconnectedAt = &t
	}
	if u.FailureReason != "" {
		reason := u.FailureReason
		rec.FailureReason = &reason
	} else {
		rec.FailureReason = nil
	}
	return rec
}
