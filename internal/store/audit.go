package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

// AuditStore is append-only. The pipeline writes to it and never reads back.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append writes one immutable audit row.
func (s *AuditStore) Append(ctx context.Context, e *models.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	before, err := marshalSnapshot(e.Before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	after, err := marshalSnapshot(e.After)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}

	query := `INSERT INTO audit_log
		(id, actor_id, actor_role, action, target_type, target_id, before_data, after_data, remarks, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, nullable(e.ActorID), e.ActorRole, e.Action,
		e.TargetType, e.TargetID, before, after, nullable(e.Remarks), e.CreatedAt,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("audit_append", err)
	}
	return nil
}

func marshalSnapshot(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
