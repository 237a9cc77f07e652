package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/domain"
)

type importLogRepository struct {
	conn *db.Connection
}

// NewImportLogRepository creates an import log repository over the shared
// connection.
func NewImportLogRepository(conn *db.Connection) ImportLogRepository {
	return &importLogRepository{conn: conn}
}

func (r *importLogRepository) Create(ctx context.Context, entry domain.ImportFileLog) (domain.ImportFileLog, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = domain.ImportStatusPending
	}

	_, err := r.conn.Querier(ctx).Exec(ctx,
		`INSERT INTO import_file_logs
			(id, original_filename, storage_key, content_type, size, status, requested, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.OriginalFilename, entry.StorageKey, entry.ContentType,
		entry.Size, entry.Status, entry.Requested, entry.CreatedAt,
	)
	if err != nil {
		return domain.ImportFileLog{}, fmt.Errorf("failed to create import log: %w", err)
	}

	return entry, nil
}

func (r *importLogRepository) MarkSuccess(ctx context.Context, id uuid.UUID, imported int, ticketIDs []uuid.UUID) error {
	_, err := r.conn.Querier(ctx).Exec(ctx,
		`UPDATE import_file_logs
		 SET status = $2, imported = $3, ticket_ids = $4, completed_at = $5
		 WHERE id = $1`,
		id, domain.ImportStatusSuccess, imported, ticketIDs, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark import log success: %w", err)
	}
	return nil
}

func (r *importLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.conn.Querier(ctx).Exec(ctx,
		`UPDATE import_file_logs
		 SET status = $2, error_message = $3, completed_at = $4
		 WHERE id = $1`,
		id, domain.ImportStatusFailed, message, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark import log failed: %w", err)
	}
	return nil
}

func (r *importLogRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportFileLog, error) {
	row := r.conn.Querier(ctx).QueryRow(ctx,
		`SELECT id, original_filename, storage_key, content_type, size, status,
		        requested, imported, error_message, created_at, completed_at, ticket_ids
		 FROM import_file_logs WHERE id = $1`, id)

	entry, err := scanImportLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportFileLog{}, domain.ErrNotFound
		}
		return domain.ImportFileLog{}, fmt.Errorf("failed to get import log: %w", err)
	}
	return entry, nil
}

func (r *importLogRepository) List(ctx context.Context, limit, offset int) ([]domain.ImportFileLog, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT id, original_filename, storage_key, content_type, size, status,
		        requested, imported, error_message, created_at, completed_at, ticket_ids
		 FROM import_file_logs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportFileLog{}
	for rows.Next() {
		entry, scanErr := scanImportLog(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}
		logs = append(logs, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}

	return logs, nil
}

func scanImportLog(row rowScanner) (domain.ImportFileLog, error) {
	var (
		entry        domain.ImportFileLog
		imported     pgtype.Int4
		errorMessage pgtype.Text
		completedAt  pgtype.Timestamptz
		ticketIDs    []uuid.UUID
	)

	err := row.Scan(
		&entry.ID, &entry.OriginalFilename, &entry.StorageKey, &entry.ContentType,
		&entry.Size, &entry.Status, &entry.Requested, &imported,
		&errorMessage, &entry.CreatedAt, &completedAt, &ticketIDs,
	)
	if err != nil {
		return domain.ImportFileLog{}, err
	}

	if imported.Valid {
		entry.Imported = int(imported.Int32)
	}
	if errorMessage.Valid {
		entry.ErrorMessage = errorMessage.String
	}
	if completedAt.Valid {
		completed := completedAt.Time
		entry.CompletedAt = &completed
	}
	entry.TicketIDs = ticketIDs

	return entry, nil
}
