package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	stderrors "finserv-workers/internal/common/errors"
	"finserv-workers/internal/models"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// GetActive returns the active template for (key, locale). An inactive
// template is treated as not-found.
func (s *TemplateStore) GetActive(ctx context.Context, key, locale string) (*models.Template, error) {
	if locale == "" {
		locale = models.DefaultLocale
	}
	query := `SELECT key, locale, subject_template, body_template, is_active, created_at, updated_at
		FROM templates WHERE key = $1 AND locale = $2 AND is_active = TRUE`
	row := s.db.QueryRowContext(ctx, query, key, locale)

	var t models.Template
	err := row.Scan(&t.Key, &t.Locale, &t.SubjectTemplate, &t.BodyTemplate, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stderrors.NewTemplateNotFoundError(key, locale)
		}
		return nil, stderrors.NewQueryExecutionFailedError("template_get_active", err)
	}
	return &t, nil
}

// Upsert creates or replaces the template for (key, locale).
func (s *TemplateStore) Upsert(ctx context.Context, t *models.Template) error {
	if t.Locale == "" {
		t.Locale = models.DefaultLocale
	}
	now := time.Now().UTC()
	query := `INSERT INTO templates (key, locale, subject_template, body_template, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (key, locale) DO UPDATE SET
			subject_template = EXCLUDED.subject_template,
			body_template = EXCLUDED.body_template,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query, t.Key, t.Locale, t.SubjectTemplate, t.BodyTemplate, t.IsActive, now)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("template_upsert", err)
	}
	t.UpdatedAt = now
	return nil
}

// Deactivate flips the active flag; templates are never deleted.
func (s *TemplateStore) Deactivate(ctx context.Context, key, locale string) error {
	if locale == "" {
		locale = models.DefaultLocale
	}
	query := `UPDATE templates SET is_active = FALSE, updated_at = $3 WHERE key = $1 AND locale = $2`
	res, err := s.db.ExecContext(ctx, query, key, locale, time.Now().UTC())
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("template_deactivate", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return stderrors.NewTemplateNotFoundError(key, locale)
	}
	return nil
}

// List returns all templates, active and inactive, newest first.
func (s *TemplateStore) List(ctx context.Context) ([]models.Template, error) {
	query := `SELECT key, locale, subject_template, body_template, is_active, created_at, updated_at
		FROM templates ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("template_list", err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.Key, &t.Locale, &t.SubjectTemplate, &t.BodyTemplate, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("template_scan", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
