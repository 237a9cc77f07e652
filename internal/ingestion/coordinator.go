// Package ingestion implements bulk imports of ticket batches: parsing the
// uploaded file, staging it in object storage, and persisting the records in
// one serializable transaction with a durable audit log.
package ingestion

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/events"
	"github.com/mlevkov/tickethub/internal/repository"
	"github.com/mlevkov/tickethub/internal/retry"
	"github.com/mlevkov/tickethub/internal/storage"
)

// RecordImporter persists parsed records inside the caller's transaction.
type RecordImporter interface {
	ImportRecords(ctx context.Context, records []domain.Ticket) ([]uuid.UUID, error)
}

// Publisher pushes a change notification once an import commits.
type Publisher interface {
	Publish(action string, id *uuid.UUID)
}

// Coordinator runs the import state machine. The ordering is fixed: parse,
// stage the file, write a PENDING log entry, run the import transaction
// under retry, resolve the log entry, then commit or roll back the staged
// file. The log repository writes against the pool, never the import
// transaction, so a FAILED entry survives the rollback it describes.
type Coordinator struct {
	parser   *Parser
	store    *storage.Store
	txm      db.TxManager
	importer RecordImporter
	logs     repository.ImportLogRepository
	pub      Publisher
	policy   retry.Policy
	logger   *slog.Logger
}

// NewCoordinator wires the import pipeline.
func NewCoordinator(
	parser *Parser,
	store *storage.Store,
	txm db.TxManager,
	importer RecordImporter,
	logs repository.ImportLogRepository,
	pub Publisher,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		parser:   parser,
		store:    store,
		txm:      txm,
		importer: importer,
		logs:     logs,
		pub:      pub,
		policy:   retry.DefaultPolicy(),
		logger:   logger,
	}
}

// ImportFromFile ingests one uploaded batch. On any failure after staging
// the staged file is rolled back; the original upload is only promoted to
// its final key after the database transaction has committed.
func (c *Coordinator) ImportFromFile(ctx context.Context, filename, contentType string, payload []byte) (domain.ImportResult, error) {
	records, err := c.parser.Parse(filename, payload)
	if err != nil {
		return domain.ImportResult{}, err
	}

	staged, err := c.store.Stage(ctx, filename, payload, contentType)
	if err != nil {
		return domain.ImportResult{}, err
	}

	entry, err := c.logs.Create(ctx, domain.ImportFileLog{
		OriginalFilename: filename,
		StorageKey:       staged.FinalKey(),
		ContentType:      staged.ContentType(),
		Size:             staged.Size(),
		Requested:        len(records),
	})
	if err != nil {
		staged.Rollback(ctx)
		return domain.ImportResult{}, err
	}

	ids, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]uuid.UUID, error) {
		var ids []uuid.UUID
		err := c.txm.InTx(ctx, pgx.Serializable, func(ctx context.Context) error {
			var txErr error
			ids, txErr = c.importer.ImportRecords(ctx, records)
			return txErr
		})
		return ids, err
	})
	if err != nil {
		if markErr := c.logs.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			c.logger.Error("failed to mark import log as failed",
				"log_id", entry.ID, "error", markErr)
		}
		staged.Rollback(ctx)
		return domain.ImportResult{}, err
	}

	if markErr := c.logs.MarkSuccess(ctx, entry.ID, len(ids), ids); markErr != nil {
		c.logger.Error("failed to mark import log as successful",
			"log_id", entry.ID, "error", markErr)
	}

	// The records are committed at this point. A failed promotion leaves the
	// upload at its temporary key; the log entry still points at the final
	// key, so the inconsistency is visible and repairable.
	if commitErr := staged.Commit(ctx); commitErr != nil {
		c.logger.Error("failed to promote imported file",
			"log_id", entry.ID, "storage_key", staged.FinalKey(), "error", commitErr)
	}

	c.pub.Publish(events.ActionBulkImport, &entry.ID)

	return domain.ImportResult{
		Requested:  len(records),
		Imported:   len(ids),
		TicketIDs:  ids,
		LogID:      entry.ID,
		StorageKey: staged.FinalKey(),
		Filename:   filename,
	}, nil
}

// GetImport returns one audit log entry.
func (c *Coordinator) GetImport(ctx context.Context, id uuid.UUID) (domain.ImportFileLog, error) {
	return c.logs.GetByID(ctx, id)
}

// ListImports returns audit log entries, newest first.
func (c *Coordinator) ListImports(ctx context.Context, limit, offset int) ([]domain.ImportFileLog, error) {
	return c.logs.List(ctx, limit, offset)
}

// OpenFile streams the stored upload for a successful import.
func (c *Coordinator) OpenFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, domain.ImportFileLog, error) {
	entry, err := c.logs.GetByID(ctx, id)
	if err != nil {
		return nil, domain.ImportFileLog{}, err
	}
	reader, err := c.store.Load(ctx, entry.StorageKey)
	if err != nil {
		return nil, domain.ImportFileLog{}, err
	}
	return reader, entry, nil
}
