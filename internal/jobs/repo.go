package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, rec *Record) error {
	query := `INSERT INTO ingestion_jobs (file_id, file_url, status) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, rec.FileID, rec.FileURL, StatusPending).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *PostgresRepo) MarkRunning(ctx context.Context, id string) error {
	query := `UPDATE ingestion_jobs SET status = $1, attempts = attempts + 1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, StatusRunning, id)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id string, result json.RawMessage) error {
	query := `UPDATE ingestion_jobs SET status = $1, result = $2, stage = NULL, classification = NULL, error = NULL, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, StatusCompleted, []byte(result), id)
	return err
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, stage, classification, message string) error {
	query := `UPDATE ingestion_jobs SET status = $1, stage = $2, classification = $3, error = $4, updated_at = NOW() WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, StatusFailed, stage, classification, message, id)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Record, error) {
	rec := &Record{}
	var stage, classification, errMsg sql.NullString
	var result []byte

	query := `SELECT id, file_id, file_url, status, stage, classification, error, result, attempts, created_at, updated_at FROM ingestion_jobs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.FileID, &rec.FileURL, &rec.Status,
		&stage, &classification, &errMsg, &result,
		&rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Stage = stage.String
	rec.Classification = classification.String
	rec.Error = errMsg.String
	rec.Result = json.RawMessage(result)
	return rec, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, file_id, file_url, status, stage, classification, error, attempts, created_at, updated_at FROM ingestion_jobs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var stage, classification, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.FileID, &rec.FileURL, &rec.Status,
			&stage, &classification, &errMsg,
			&rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Stage = stage.String
		rec.Classification = classification.String
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
