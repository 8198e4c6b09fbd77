package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// AuditEventRepository implements port.AuditEventRepository. Append is the
// only write path; there is deliberately no Update or Delete method, so a
// buggy caller cannot tamper with the hash chain through this adapter.
type AuditEventRepository struct {
	db *postgres.DB
}

// NewAuditEventRepository builds an AuditEventRepository.
func NewAuditEventRepository(db *postgres.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event *entity.AuditEvent) error {
	decisionFactors, err := encodeJSONB(event.DecisionFactors)
	if err != nil {
		return fmt.Errorf("repository: encode decision_factors: %w", err)
	}
	confidenceBreakdown, err := encodeJSONB(event.ConfidenceBreakdown)
	if err != nil {
		return fmt.Errorf("repository: encode confidence_breakdown: %w", err)
	}
	oldValues, err := encodeJSONB(event.OldValues)
	if err != nil {
		return fmt.Errorf("repository: encode old_values: %w", err)
	}
	newValues, err := encodeJSONB(event.NewValues)
	if err != nil {
		return fmt.Errorf("repository: encode new_values: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO audit_events (
			id, tenant_id, match_result_id, event_type, event_description,
			decision_factors, algorithm_version, confidence_breakdown,
			old_values, new_values, actor_user_id, actor_role, actor_ip, actor_user_agent,
			occurred_at, event_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		event.ID, event.TenantID, event.MatchResultID, event.EventType, event.EventDescription,
		decisionFactors, event.AlgorithmVersion, confidenceBreakdown,
		oldValues, newValues, event.ActorUserID, event.ActorRole, event.ActorIP, event.ActorUserAgent,
		event.OccurredAt, event.EventHash)
	if err != nil {
		return fmt.Errorf("repository: append audit event: %w", err)
	}
	return nil
}

func (r *AuditEventRepository) GetLatestHash(ctx context.Context, tenantID, matchResultID uuid.UUID) (string, error) {
	var hash string
	err := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT event_hash FROM audit_events
		WHERE tenant_id = $1 AND match_result_id = $2
		ORDER BY occurred_at DESC LIMIT 1`, tenantID, matchResultID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("repository: get latest audit hash: %w", err)
	}
	return hash, nil
}

func (r *AuditEventRepository) ListForMatchResult(ctx context.Context, tenantID, matchResultID uuid.UUID) ([]entity.AuditEvent, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT id, tenant_id, match_result_id, event_type, event_description,
			decision_factors, algorithm_version, confidence_breakdown,
			old_values, new_values, actor_user_id, actor_role, actor_ip, actor_user_agent,
			occurred_at, event_hash
		FROM audit_events WHERE tenant_id = $1 AND match_result_id = $2 ORDER BY occurred_at ASC`,
		tenantID, matchResultID)
	if err != nil {
		return nil, fmt.Errorf("repository: list audit events: %w", err)
	}
	defer rows.Close()

	var out []entity.AuditEvent
	for rows.Next() {
		var e entity.AuditEvent
		var decisionFactors, confidenceBreakdown, oldValues, newValues []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.MatchResultID, &e.EventType, &e.EventDescription,
			&decisionFactors, &e.AlgorithmVersion, &confidenceBreakdown,
			&oldValues, &newValues, &e.ActorUserID, &e.ActorRole, &e.ActorIP, &e.ActorUserAgent,
			&e.OccurredAt, &e.EventHash); err != nil {
			return nil, fmt.Errorf("repository: scan audit event: %w", err)
		}
		if e.DecisionFactors, err = decodeJSONB(decisionFactors); err != nil {
			return nil, err
		}
		if e.ConfidenceBreakdown, err = decodeJSONB(confidenceBreakdown); err != nil {
			return nil, err
		}
		if e.OldValues, err = decodeJSONB(oldValues); err != nil {
			return nil, err
		}
		if e.NewValues, err = decodeJSONB(newValues); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ port.AuditEventRepository = (*AuditEventRepository)(nil)
