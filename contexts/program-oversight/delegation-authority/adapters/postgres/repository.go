package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
	domainerrors "ouvrage/contexts/program-oversight/delegation-authority/domain/errors"
	"ouvrage/contexts/program-oversight/delegation-authority/domain/hashchain"
	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateDelegation persists a new delegation with its policies and actors.
// The chain anchor (decision hash, head hash, algorithm) must already be
// initialized.
func (r *Repository) CreateDelegation(ctx context.Context, delegation entities.Delegation) error {
	if delegation.DelegationID == "" || delegation.DecisionHash == "" || delegation.HeadHash == "" {
		return domainerrors.ErrValidation
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := delegationModelFromEntity(delegation)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrValidation
			}
			return err
		}
		for _, p := range delegation.Policies {
			policyRow := policyModelFromEntity(delegation.DelegationID, p)
			if err := tx.Create(&policyRow).Error; err != nil {
				return err
			}
		}
		for _, a := range delegation.Actors {
			actorRow := actorModelFromEntity(delegation.DelegationID, a)
			if err := tx.Create(&actorRow).Error; err != nil {
				return err
			}
		}
		for _, e := range delegation.Engagements {
			engagementRow := engagementModelFromEntity(delegation.DelegationID, e)
			if err := tx.Create(&engagementRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadDelegation assembles the full aggregate: delegation row plus policies,
// actors, engagements and the current chain tip.
func (r *Repository) LoadDelegation(ctx context.Context, delegationID string) (entities.Delegation, error) {
	var row delegationModel
	err := r.db.WithContext(ctx).
		Where("delegation_id = ?", delegationID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Delegation{}, domainerrors.ErrNotFound
		}
		return entities.Delegation{}, err
	}
	delegation := row.toEntity()

	var policyRows []policyModel
	if err := r.db.WithContext(ctx).
		Where("delegation_id = ?", delegationID).
		Order("policy_id ASC").
		Find(&policyRows).
		Error; err != nil {
		return entities.Delegation{}, err
	}
	for _, policyRow := range policyRows {
		delegation.Policies = append(delegation.Policies, policyRow.toEntity())
	}

	var actorRows []actorModel
	if err := r.db.WithContext(ctx).
		Where("delegation_id = ?", delegationID).
		Order("person_id ASC").
		Find(&actorRows).
		Error; err != nil {
		return entities.Delegation{}, err
	}
	for _, actorRow := range actorRows {
		delegation.Actors = append(delegation.Actors, actorRow.toEntity())
	}

	var engagementRows []engagementModel
	if err := r.db.WithContext(ctx).
		Where("delegation_id = ?", delegationID).
		Order("recorded_at ASC, engagement_id ASC").
		Find(&engagementRows).
		Error; err != nil {
		return entities.Delegation{}, err
	}
	for _, engagementRow := range engagementRows {
		delegation.Engagements = append(delegation.Engagements, engagementRow.toEntity())
	}

	return delegation, nil
}

// ListEvents returns the chain oldest to newest. Event ids are time-ordered
// (UUIDv7), so the secondary sort keeps order stable under equal timestamps.
func (r *Repository) ListEvents(ctx context.Context, delegationID string) ([]entities.DelegationEvent, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&delegationModel{}).
		Where("delegation_id = ?", delegationID).
		Count(&count).
		Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domainerrors.ErrNotFound
	}

	var rows []eventModel
	if err := r.db.WithContext(ctx).
		Where("delegation_id = ?", delegationID).
		Order("created_at ASC, event_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	events := make([]entities.DelegationEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// AppendEvent performs the one atomic write of the context: insert the chain
// event and move the status/tip, guarded by a compare-and-swap on the stored
// head hash. The losing side of a race gets ErrConcurrencyConflict and can
// retry after re-reading.
func (r *Repository) AppendEvent(ctx context.Context, input ports.AppendEventInput) error {
	if input.DelegationID == "" || input.Event.EventID == "" || input.Event.EventHash == "" {
		return domainerrors.ErrValidation
	}
	if !hashchain.CompareHashes(input.Event.PreviousHash, input.ExpectedPreviousHash) {
		return domainerrors.ErrChainIntegrity
	}

	eventRow, err := eventModelFromEntity(input.Event)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"head_hash":  input.Event.EventHash,
			"updated_at": input.Event.CreatedAt.UTC(),
		}
		if input.NewStatus != "" {
			updates["status"] = string(input.NewStatus)
		}

		result := tx.Model(&delegationModel{}).
			Where("delegation_id = ? AND head_hash = ?", input.DelegationID, input.ExpectedPreviousHash).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&delegationModel{}).
				Where("delegation_id = ?", input.DelegationID).
				Count(&count).
				Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrNotFound
			}
			return domainerrors.ErrConcurrencyConflict
		}

		if err := tx.Create(&eventRow).Error; err != nil {
			if isUniqueViolation(err) {
				// Another writer extended the same parent first.
				return domainerrors.ErrConcurrencyConflict
			}
			return err
		}

		if input.Engagement != nil {
			engagementRow := engagementModelFromEntity(input.DelegationID, *input.Engagement)
			if err := tx.Create(&engagementRow).Error; err != nil {
				return err
			}
		}

		if input.Outbox != nil {
			payload, err := json.Marshal(input.Outbox)
			if err != nil {
				return err
			}
			outboxRow := outboxModel{
				OutboxID:  input.Outbox.EventID,
				EventType: input.Outbox.EventType,
				Subject:   input.Outbox.Subject,
				Payload:   payload,
				Status:    outboxStatusPending,
				CreatedAt: input.Outbox.OccurredAt.UTC(),
			}
			if err := tx.Create(&outboxRow).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrConcurrencyConflict
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC, outbox_id ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:  row.OutboxID,
			EventType: row.EventType,
			Subject:   row.Subject,
			Payload:   append([]byte(nil), row.Payload...),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &ts,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
