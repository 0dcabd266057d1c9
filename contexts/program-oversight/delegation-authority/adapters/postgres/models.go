package postgresadapter

import (
	"encoding/json"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

type delegationModel struct {
	DelegationID string `gorm:"column:delegation_id;primaryKey"`
	Category     string `gorm:"column:category"`
	Status       string `gorm:"column:status"`

	GrantorID   string `gorm:"column:grantor_id"`
	GrantorName string `gorm:"column:grantor_name"`
	GrantorRole string `gorm:"column:grantor_role"`
	AgentID     string `gorm:"column:agent_id"`
	AgentName   string `gorm:"column:agent_name"`
	AgentRole   string `gorm:"column:agent_role"`

	ScopeMode       string `gorm:"column:scope_mode"`
	ScopeBureaus    []byte `gorm:"column:scope_bureaus"`
	ScopeProjects   []byte `gorm:"column:scope_projects"`
	ScopeCategories []byte `gorm:"column:scope_categories"`

	MaxPerTransaction int64  `gorm:"column:max_per_transaction"`
	Quota             int64  `gorm:"column:quota"`
	Currency          string `gorm:"column:currency"`

	StartsAt        time.Time `gorm:"column:starts_at"`
	EndsAt          time.Time `gorm:"column:ends_at"`
	AllowedWeekdays []byte    `gorm:"column:allowed_weekdays"`

	DecisionHash  string `gorm:"column:decision_hash"`
	HeadHash      string `gorm:"column:head_hash"`
	HashAlgorithm string `gorm:"column:hash_algorithm"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (delegationModel) TableName() string {
	return "authority_delegations"
}

type policyModel struct {
	PolicyID         string `gorm:"column:policy_id;primaryKey"`
	DelegationID     string `gorm:"column:delegation_id;index"`
	Category         string `gorm:"column:category"`
	ActionTypes      []byte `gorm:"column:action_types"`
	Threshold        int64  `gorm:"column:threshold"`
	RequiredControls []byte `gorm:"column:required_controls"`
	RiskLevel        string `gorm:"column:risk_level"`
}

func (policyModel) TableName() string {
	return "authority_delegation_policies"
}

type actorModel struct {
	DelegationID string `gorm:"column:delegation_id;primaryKey"`
	PersonID     string `gorm:"column:person_id;primaryKey"`
	Name         string `gorm:"column:name"`
	Role         string `gorm:"column:role"`
	CanApprove   bool   `gorm:"column:can_approve"`
	CanRevoke    bool   `gorm:"column:can_revoke"`
	CanUse       bool   `gorm:"column:can_use"`
}

func (actorModel) TableName() string {
	return "authority_delegation_actors"
}

type engagementModel struct {
	EngagementID string    `gorm:"column:engagement_id;primaryKey"`
	DelegationID string    `gorm:"column:delegation_id;index"`
	Amount       int64     `gorm:"column:amount"`
	Supplier     string    `gorm:"column:supplier"`
	RecordedAt   time.Time `gorm:"column:recorded_at"`
}

func (engagementModel) TableName() string {
	return "authority_delegation_engagements"
}

type eventModel struct {
	EventID      string `gorm:"column:event_id;primaryKey"`
	DelegationID string `gorm:"column:delegation_id;index"`
	EventType    string `gorm:"column:event_type"`
	ActorID      string `gorm:"column:actor_id"`
	ActorName    string `gorm:"column:actor_name"`
	ActorRole    string `gorm:"column:actor_role"`
	Summary      string `gorm:"column:summary"`
	Details      []byte `gorm:"column:details"`
	// PreviousHash is unique per delegation: no two events may extend the
	// same parent, which makes the chain linear at the storage level.
	PreviousHash string    `gorm:"column:previous_hash;uniqueIndex:authority_events_unique_parent,composite:delegation_id"`
	EventHash    string    `gorm:"column:event_hash"`
	Evaluation   []byte    `gorm:"column:evaluation"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string {
	return "authority_delegation_events"
}

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Subject     string     `gorm:"column:subject"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "authority_outbox"
}

func delegationModelFromEntity(d entities.Delegation) delegationModel {
	return delegationModel{
		DelegationID:      d.DelegationID,
		Category:          d.Category,
		Status:            string(d.Status),
		GrantorID:         d.Grantor.PersonID,
		GrantorName:       d.Grantor.Name,
		GrantorRole:       d.Grantor.Role,
		AgentID:           d.Agent.PersonID,
		AgentName:         d.Agent.Name,
		AgentRole:         d.Agent.Role,
		ScopeMode:         string(d.Scope.Mode),
		ScopeBureaus:      marshalStrings(d.Scope.Bureaus),
		ScopeProjects:     marshalStrings(d.Scope.Projects),
		ScopeCategories:   marshalStrings(d.Scope.Categories),
		MaxPerTransaction: d.Limits.MaxPerTransaction,
		Quota:             d.Limits.Quota,
		Currency:          d.Limits.Currency,
		StartsAt:          d.Validity.StartsAt.UTC(),
		EndsAt:            d.Validity.EndsAt.UTC(),
		AllowedWeekdays:   marshalWeekdays(d.Validity.AllowedWeekdays),
		DecisionHash:      d.DecisionHash,
		HeadHash:          d.HeadHash,
		HashAlgorithm:     d.HashAlgorithm,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

func (m delegationModel) toEntity() entities.Delegation {
	return entities.Delegation{
		DelegationID: m.DelegationID,
		Category:     m.Category,
		Status:       entities.DelegationStatus(m.Status),
		Grantor:      entities.Person{PersonID: m.GrantorID, Name: m.GrantorName, Role: m.GrantorRole},
		Agent:        entities.Person{PersonID: m.AgentID, Name: m.AgentName, Role: m.AgentRole},
		Scope: entities.Scope{
			Mode:       entities.ScopeMode(m.ScopeMode),
			Bureaus:    unmarshalStrings(m.ScopeBureaus),
			Projects:   unmarshalStrings(m.ScopeProjects),
			Categories: unmarshalStrings(m.ScopeCategories),
		},
		Limits: entities.Limits{
			MaxPerTransaction: m.MaxPerTransaction,
			Quota:             m.Quota,
			Currency:          m.Currency,
		},
		Validity: entities.Validity{
			StartsAt:        m.StartsAt.UTC(),
			EndsAt:          m.EndsAt.UTC(),
			AllowedWeekdays: unmarshalWeekdays(m.AllowedWeekdays),
		},
		DecisionHash:  m.DecisionHash,
		HeadHash:      m.HeadHash,
		HashAlgorithm: m.HashAlgorithm,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func policyModelFromEntity(delegationID string, p entities.Policy) policyModel {
	return policyModel{
		PolicyID:         p.PolicyID,
		DelegationID:     delegationID,
		Category:         p.Category,
		ActionTypes:      marshalStrings(p.ActionTypes),
		Threshold:        p.Threshold,
		RequiredControls: marshalStrings(p.RequiredControls),
		RiskLevel:        p.RiskLevel,
	}
}

func (m policyModel) toEntity() entities.Policy {
	return entities.Policy{
		PolicyID:         m.PolicyID,
		Category:         m.Category,
		ActionTypes:      unmarshalStrings(m.ActionTypes),
		Threshold:        m.Threshold,
		RequiredControls: unmarshalStrings(m.RequiredControls),
		RiskLevel:        m.RiskLevel,
	}
}

func actorModelFromEntity(delegationID string, a entities.Actor) actorModel {
	return actorModel{
		DelegationID: delegationID,
		PersonID:     a.Person.PersonID,
		Name:         a.Person.Name,
		Role:         a.Person.Role,
		CanApprove:   a.CanApprove,
		CanRevoke:    a.CanRevoke,
		CanUse:       a.CanUse,
	}
}

func (m actorModel) toEntity() entities.Actor {
	return entities.Actor{
		Person:     entities.Person{PersonID: m.PersonID, Name: m.Name, Role: m.Role},
		CanApprove: m.CanApprove,
		CanRevoke:  m.CanRevoke,
		CanUse:     m.CanUse,
	}
}

func engagementModelFromEntity(delegationID string, e entities.Engagement) engagementModel {
	return engagementModel{
		EngagementID: e.EngagementID,
		DelegationID: delegationID,
		Amount:       e.Amount,
		Supplier:     e.Supplier,
		RecordedAt:   e.RecordedAt.UTC(),
	}
}

func (m engagementModel) toEntity() entities.Engagement {
	return entities.Engagement{
		EngagementID: m.EngagementID,
		Amount:       m.Amount,
		Supplier:     m.Supplier,
		RecordedAt:   m.RecordedAt.UTC(),
	}
}

func eventModelFromEntity(e entities.DelegationEvent) (eventModel, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return eventModel{}, err
	}
	var evaluation []byte
	if e.Evaluation != nil {
		evaluation, err = json.Marshal(e.Evaluation)
		if err != nil {
			return eventModel{}, err
		}
	}
	return eventModel{
		EventID:      e.EventID,
		DelegationID: e.DelegationID,
		EventType:    e.EventType,
		ActorID:      e.Actor.PersonID,
		ActorName:    e.Actor.Name,
		ActorRole:    e.Actor.Role,
		Summary:      e.Summary,
		Details:      details,
		PreviousHash: e.PreviousHash,
		EventHash:    e.EventHash,
		Evaluation:   evaluation,
		CreatedAt:    e.CreatedAt.UTC(),
	}, nil
}

func (m eventModel) toEntity() (entities.DelegationEvent, error) {
	event := entities.DelegationEvent{
		EventID:      m.EventID,
		DelegationID: m.DelegationID,
		EventType:    m.EventType,
		Actor:        entities.Person{PersonID: m.ActorID, Name: m.ActorName, Role: m.ActorRole},
		Summary:      m.Summary,
		PreviousHash: m.PreviousHash,
		EventHash:    m.EventHash,
		CreatedAt:    m.CreatedAt.UTC(),
	}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &event.Details); err != nil {
			return entities.DelegationEvent{}, err
		}
	}
	if len(m.Evaluation) > 0 {
		var evaluation entities.EvaluationResult
		if err := json.Unmarshal(m.Evaluation, &evaluation); err != nil {
			return entities.DelegationEvent{}, err
		}
		event.Evaluation = &evaluation
	}
	return event, nil
}

func marshalStrings(values []string) []byte {
	if len(values) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func unmarshalStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func marshalWeekdays(weekdays []time.Weekday) []byte {
	if len(weekdays) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(weekdays)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func unmarshalWeekdays(raw []byte) []time.Weekday {
	if len(raw) == 0 {
		return nil
	}
	var weekdays []time.Weekday
	if err := json.Unmarshal(raw, &weekdays); err != nil {
		return nil
	}
	if len(weekdays) == 0 {
		return nil
	}
	return weekdays
}
