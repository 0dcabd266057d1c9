package entities

import (
	"strings"
	"time"
)

type DelegationStatus string

const (
	StatusDraft     DelegationStatus = "draft"
	StatusSubmitted DelegationStatus = "submitted"
	StatusActive    DelegationStatus = "active"
	StatusSuspended DelegationStatus = "suspended"
	StatusRevoked   DelegationStatus = "revoked"
)

type ScopeMode string

const (
	ScopeModeExact        ScopeMode = "exact"
	ScopeModeHierarchical ScopeMode = "hierarchical"
	ScopeModeAll          ScopeMode = "all"
)

// Capability is the closed set of powers an actor can hold on a delegation.
type Capability string

const (
	CapabilityApprove Capability = "approve"
	CapabilityRevoke  Capability = "revoke"
	CapabilityUse     Capability = "use"
)

type Person struct {
	PersonID string
	Name     string
	Role     string
}

type Scope struct {
	Mode       ScopeMode
	Bureaus    []string
	Projects   []string
	Categories []string
}

type Limits struct {
	// Amounts are whole currency units; XOF carries no minor unit.
	MaxPerTransaction int64
	Quota             int64
	Currency          string
}

type Validity struct {
	StartsAt time.Time
	EndsAt   time.Time
	// Empty means every weekday is allowed.
	AllowedWeekdays []time.Weekday
}

type Policy struct {
	PolicyID         string
	Category         string
	ActionTypes      []string
	Threshold        int64
	RequiredControls []string
	RiskLevel        string
}

type Actor struct {
	Person     Person
	CanApprove bool
	CanRevoke  bool
	CanUse     bool
}

func (a Actor) Has(capability Capability) bool {
	switch capability {
	case CapabilityApprove:
		return a.CanApprove
	case CapabilityRevoke:
		return a.CanRevoke
	case CapabilityUse:
		return a.CanUse
	default:
		return false
	}
}

type Engagement struct {
	EngagementID string
	Amount       int64
	Supplier     string
	RecordedAt   time.Time
}

type Delegation struct {
	DelegationID string
	Category     string
	Status       DelegationStatus
	Grantor      Person
	Agent        Person
	Scope        Scope
	Limits       Limits
	Validity     Validity

	// DecisionHash anchors the audit chain at creation time; HeadHash is the
	// hash of the latest event, or DecisionHash while the chain is empty.
	DecisionHash  string
	HeadHash      string
	HashAlgorithm string

	Policies    []Policy
	Actors      []Actor
	Engagements []Engagement

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports passive expiry; it is derived state, not a status value.
func (d Delegation) IsExpired(now time.Time) bool {
	return !d.Validity.EndsAt.IsZero() && now.UTC().After(d.Validity.EndsAt.UTC())
}

func (d Delegation) IsGrantor(personID string) bool {
	return strings.TrimSpace(personID) != "" && d.Grantor.PersonID == personID
}

func (d Delegation) ActorByID(personID string) (Actor, bool) {
	for _, actor := range d.Actors {
		if actor.Person.PersonID == personID {
			return actor, true
		}
	}
	return Actor{}, false
}

func (d Delegation) ActorHas(personID string, capability Capability) bool {
	actor, ok := d.ActorByID(personID)
	return ok && actor.Has(capability)
}

// CommittedAmount is the sum of recorded engagements counted against the quota.
func (d Delegation) CommittedAmount() int64 {
	var total int64
	for _, engagement := range d.Engagements {
		total += engagement.Amount
	}
	return total
}

// CanTransitionTo encodes the status machine. Revoked is terminal; revoke is
// reachable from every non-revoked status.
func (d Delegation) CanTransitionTo(target DelegationStatus) bool {
	if d.Status == StatusRevoked {
		return false
	}
	if target == StatusRevoked {
		return true
	}
	switch d.Status {
	case StatusDraft:
		return target == StatusSubmitted
	case StatusSubmitted:
		return target == StatusActive
	case StatusActive:
		return target == StatusSuspended
	case StatusSuspended:
		return target == StatusActive
	default:
		return false
	}
}
