// Package store owns all persistence for the job pipelines. Job status is
// mutated here and nowhere else.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationColumns = `id, channel, template_key, locale, recipient, payload,
	subject, body, status, retries, last_error, idempotency_key, created_by,
	created_at, updated_at`

// Create inserts a new queued notification and fills in its id/timestamps.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Locale == "" {
		n.Locale = models.DefaultLocale
	}
	n.Status = models.NotificationQueued
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	recipient, err := json.Marshal(n.Recipient)
	if err != nil {
		return fmt.Errorf("marshal recipient: %w", err)
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `INSERT INTO notifications
		(id, channel, template_key, locale, recipient, payload, subject, body,
		 status, retries, last_error, idempotency_key, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,'',$10,$11,$12,$12)`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, n.Channel, n.TemplateKey, n.Locale, recipient, payload,
		n.Subject, n.Body, n.Status, nullable(n.IdempotencyKey), nullable(n.CreatedBy), now,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("notification_create", err)
	}
	return nil
}

// GetByID loads one notification; absence is a JOB_NOT_FOUND error.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stderrors.NewJobNotFoundError("notification", id)
		}
		return nil, stderrors.NewQueryExecutionFailedError("notification_get", err)
	}
	return n, nil
}

// FindActiveByIdempotencyKey returns an existing job with the same
// idempotency key, template, and recipient whose status is still in
// {queued, sending, sent}, or nil when no such job exists.
func (s *NotificationStore) FindActiveByIdempotencyKey(ctx context.Context, key, templateKey string, recipient models.Recipient) (*models.Notification, error) {
	recipientJSON, err := json.Marshal(recipient)
	if err != nil {
		return nil, fmt.Errorf("marshal recipient: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE idempotency_key = $1 AND template_key = $2 AND recipient = $3
		AND status IN ('queued','sending','sent')
		ORDER BY created_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, key, templateKey, recipientJSON)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, stderrors.NewQueryExecutionFailedError("notification_idempotency_lookup", err)
	}
	return n, nil
}

// MarkSending persists the rendered subject/body and advances status.
func (s *NotificationStore) MarkSending(ctx context.Context, id, subject, body string) error {
	query := `UPDATE notifications
		SET subject = $2, body = $3, status = 'sending', updated_at = $4
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, subject, body, time.Now().UTC()); err != nil {
		return stderrors.NewQueryExecutionFailedError("notification_mark_sending", err)
	}
	return nil
}

// MarkSent advances the job to its terminal success state.
func (s *NotificationStore) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE notifications SET status = 'sent', updated_at = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return stderrors.NewQueryExecutionFailedError("notification_mark_sent", err)
	}
	return nil
}

// MarkFailed sets the terminal failure state with a reason, without touching
// the retry counter. Used for render failures and unconfigured channels.
func (s *NotificationStore) MarkFailed(ctx context.Context, id, lastError string) error {
	query := `UPDATE notifications
		SET status = 'failed', last_error = $2, updated_at = $3 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, lastError, time.Now().UTC()); err != nil {
		return stderrors.NewQueryExecutionFailedError("notification_mark_failed", err)
	}
	return nil
}

// RecordFailure increments the persisted retry counter and flips the job to
// failed once the ceiling is reached. Below the ceiling the status is left
// as-is so the queue's own retry can re-enter. Returns the new counter and
// whether the job is now terminally failed.
func (s *NotificationStore) RecordFailure(ctx context.Context, id, lastError string) (int, bool, error) {
	query := `UPDATE notifications
		SET retries = retries + 1,
		    last_error = $2,
		    status = CASE WHEN retries + 1 >= $3 THEN 'failed' ELSE status END,
		    updated_at = $4
		WHERE id = $1
		RETURNING retries, status`
	var retries int
	var status string
	err := s.db.QueryRowContext(ctx, query, id, lastError, models.MaxNotificationRetries, time.Now().UTC()).
		Scan(&retries, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, stderrors.NewJobNotFoundError("notification", id)
		}
		return 0, false, stderrors.NewQueryExecutionFailedError("notification_record_failure", err)
	}
	return retries, status == string(models.NotificationFailed), nil
}

// ResetForResend puts a job back to queued. The retry counter is deliberately
// NOT reset, so manual resends stay bounded.
func (s *NotificationStore) ResetForResend(ctx context.Context, id string) error {
	query := `UPDATE notifications SET status = 'queued', updated_at = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("notification_reset", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return stderrors.NewJobNotFoundError("notification", id)
	}
	return nil
}

// ListFilter narrows a notification listing.
type ListFilter struct {
	Status      string
	Channel     string
	TemplateKey string
	Page        int
	Limit       int
}

// List returns a page of notifications, newest first, plus the total count.
func (s *NotificationStore) List(ctx context.Context, f ListFilter) ([]models.Notification, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 20
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	add := func(clause string, val interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", clause, idx)
		args = append(args, val)
		idx++
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Channel != "" {
		add("channel", f.Channel)
	}
	if f.TemplateKey != "" {
		add("template_key", f.TemplateKey)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, stderrors.NewQueryExecutionFailedError("notification_count", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, where, idx, idx+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, stderrors.NewQueryExecutionFailedError("notification_list", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, stderrors.NewQueryExecutionFailedError("notification_scan", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var recipient, payload []byte
	var lastError, idempotencyKey, createdBy sql.NullString
	err := row.Scan(
		&n.ID, &n.Channel, &n.TemplateKey, &n.Locale, &recipient, &payload,
		&n.Subject, &n.Body, &n.Status, &n.Retries, &lastError,
		&idempotencyKey, &createdBy, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(recipient) > 0 {
		if err := json.Unmarshal(recipient, &n.Recipient); err != nil {
			return nil, fmt.Errorf("unmarshal recipient: %w", err)
		}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	n.LastError = lastError.String
	n.IdempotencyKey = idempotencyKey.String
	n.CreatedBy = createdBy.String
	return &n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
