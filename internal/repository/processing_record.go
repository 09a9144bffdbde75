package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
)

const processingRecordColumns = `event_id, event_type, event_created_at, success,
	error_detail, processing_time_ms, recorded_at`

type scanner interface {
	Scan(dest ...any) error
}

// ProcessingRecordRepository is the durable idempotency store. A row per
// provider event ID, written once after the first processing attempt; the
// unique constraint on event_id arbitrates concurrent redeliveries.
type ProcessingRecordRepository struct {
	db *sql.DB
}

func NewProcessingRecordRepository(db *sql.DB) *ProcessingRecordRepository {
	return &ProcessingRecordRepository{db: db}
}

func (r *ProcessingRecordRepository) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processing_records WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasProcessed: %w", err)
	}
	return exists, nil
}

// Record inserts the processing outcome for an event. It returns false when
// another delivery of the same event won the insert race; the caller should
// fall back to the idempotent acknowledgement rather than treating that as a
// failure.
func (r *ProcessingRecordRepository) Record(ctx context.Context, rec *domain.ProcessingRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO processing_records (
			event_id, event_type, event_created_at, success, error_detail, processing_time_ms, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, rec.EventType, rec.EventCreatedAt, rec.Success,
		rec.ErrorDetail, rec.ProcessingTimeMs, rec.RecordedAt,
	)
	if err != nil {
		return false, fmt.Errorf("Record: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Record: rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *ProcessingRecordRepository) GetByEventID(ctx context.Context, eventID string) (*domain.ProcessingRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+processingRecordColumns+` FROM processing_records WHERE event_id = $1`,
		eventID,
	)
	rec, err := scanProcessingRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetByEventID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetByEventID: %w", err)
	}
	return rec, nil
}

func scanProcessingRecord(s scanner) (*domain.ProcessingRecord, error) {
	var rec domain.ProcessingRecord
	err := s.Scan(
		&rec.EventID, &rec.EventType, &rec.EventCreatedAt, &rec.Success,
		&rec.ErrorDetail, &rec.ProcessingTimeMs, &rec.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
