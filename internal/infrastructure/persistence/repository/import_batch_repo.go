package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
)

// ImportBatchRepository implements port.ImportBatchRepository.
type ImportBatchRepository struct {
	db *postgres.DB
}

// NewImportBatchRepository builds an ImportBatchRepository.
func NewImportBatchRepository(db *postgres.DB) *ImportBatchRepository {
	return &ImportBatchRepository{db: db}
}

// encodeStringMapJSONB marshals a map[string]string column, defaulting a nil
// map to "{}" for a NOT NULL jsonb column.
func encodeStringMapJSONB(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decodeStringMapJSONB(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeRowsJSONB marshals the preview row slice, defaulting nil to "[]".
func encodeRowsJSONB(rows []map[string]any) ([]byte, error) {
	if rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(rows)
}

func decodeRowsJSONB(raw []byte) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ImportBatchRepository) Create(ctx context.Context, batch *entity.ImportBatch) error {
	columnMapping, err := encodeStringMapJSONB(batch.ColumnMapping)
	if err != nil {
		return fmt.Errorf("repository: encode column_mapping: %w", err)
	}
	columnTypeGuesses, err := encodeStringMapJSONB(batch.ColumnTypeGuesses)
	if err != nil {
		return fmt.Errorf("repository: encode column_type_guesses: %w", err)
	}
	potentialMapping, err := encodeStringMapJSONB(batch.PotentialMapping)
	if err != nil {
		return fmt.Errorf("repository: encode potential_mapping: %w", err)
	}
	previewData, err := encodeRowsJSONB(batch.PreviewData)
	if err != nil {
		return fmt.Errorf("repository: encode preview_data: %w", err)
	}
	processingSummary, err := encodeJSONB(batch.ProcessingSummary)
	if err != nil {
		return fmt.Errorf("repository: encode processing_summary: %w", err)
	}
	errorSummary, err := encodeJSONB(batch.ErrorSummary)
	if err != nil {
		return fmt.Errorf("repository: encode error_summary: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO import_batches (
			id, tenant_id, filename, original_filename, file_size, file_hash, mime_type, storage_path,
			status, processing_stage, progress_percentage, total_records, processed_records,
			successful_records, error_records, duplicate_records, csv_delimiter, csv_encoding, has_header,
			column_mapping, column_type_guesses, potential_mapping, created_at, started_at, completed_at,
			preview_data, processing_summary, error_summary, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		batch.ID, batch.TenantID, batch.Filename, batch.OriginalFilename, batch.FileSize, batch.FileHash,
		batch.MimeType, batch.StoragePath, batch.Status, batch.ProcessingStage, batch.ProgressPercentage,
		batch.TotalRecords, batch.ProcessedRecords, batch.SuccessfulRecords, batch.ErrorRecords,
		batch.DuplicateRecords, batch.CSVDelimiter, batch.CSVEncoding, batch.HasHeader,
		columnMapping, columnTypeGuesses, potentialMapping, batch.CreatedAt, batch.StartedAt, batch.CompletedAt,
		previewData, processingSummary, errorSummary, batch.CreatedBy)
	if err != nil {
		return fmt.Errorf("repository: create import batch: %w", err)
	}
	return nil
}

func (r *ImportBatchRepository) Update(ctx context.Context, batch *entity.ImportBatch) error {
	columnMapping, err := encodeStringMapJSONB(batch.ColumnMapping)
	if err != nil {
		return fmt.Errorf("repository: encode column_mapping: %w", err)
	}
	columnTypeGuesses, err := encodeStringMapJSONB(batch.ColumnTypeGuesses)
	if err != nil {
		return fmt.Errorf("repository: encode column_type_guesses: %w", err)
	}
	potentialMapping, err := encodeStringMapJSONB(batch.PotentialMapping)
	if err != nil {
		return fmt.Errorf("repository: encode potential_mapping: %w", err)
	}
	processingSummary, err := encodeJSONB(batch.ProcessingSummary)
	if err != nil {
		return fmt.Errorf("repository: encode processing_summary: %w", err)
	}
	errorSummary, err := encodeJSONB(batch.ErrorSummary)
	if err != nil {
		return fmt.Errorf("repository: encode error_summary: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		UPDATE import_batches SET
			status = $3, processing_stage = $4, progress_percentage = $5, total_records = $6,
			processed_records = $7, successful_records = $8, error_records = $9, duplicate_records = $10,
			column_mapping = $11, column_type_guesses = $12, potential_mapping = $13,
			started_at = $14, completed_at = $15, processing_summary = $16, error_summary = $17
		WHERE tenant_id = $1 AND id = $2`,
		batch.TenantID, batch.ID, batch.Status, batch.ProcessingStage, batch.ProgressPercentage,
		batch.TotalRecords, batch.ProcessedRecords, batch.SuccessfulRecords, batch.ErrorRecords,
		batch.DuplicateRecords, columnMapping, columnTypeGuesses, potentialMapping,
		batch.StartedAt, batch.CompletedAt, processingSummary, errorSummary)
	if err != nil {
		return fmt.Errorf("repository: update import batch: %w", err)
	}
	return nil
}

func (r *ImportBatchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.ImportBatch, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, filename, original_filename, file_size, file_hash, mime_type, storage_path,
			status, processing_stage, progress_percentage, total_records, processed_records,
			successful_records, error_records, duplicate_records, csv_delimiter, csv_encoding, has_header,
			column_mapping, column_type_guesses, potential_mapping, created_at, started_at, completed_at,
			preview_data, processing_summary, error_summary, created_by
		FROM import_batches WHERE tenant_id = $1 AND id = $2`, tenantID, id)

	var b entity.ImportBatch
	var columnMapping, columnTypeGuesses, potentialMapping, previewData, processingSummary, errorSummary []byte
	err := row.Scan(&b.ID, &b.TenantID, &b.Filename, &b.OriginalFilename, &b.FileSize, &b.FileHash,
		&b.MimeType, &b.StoragePath, &b.Status, &b.ProcessingStage, &b.ProgressPercentage,
		&b.TotalRecords, &b.ProcessedRecords, &b.SuccessfulRecords, &b.ErrorRecords,
		&b.DuplicateRecords, &b.CSVDelimiter, &b.CSVEncoding, &b.HasHeader,
		&columnMapping, &columnTypeGuesses, &potentialMapping, &b.CreatedAt, &b.StartedAt, &b.CompletedAt,
		&previewData, &processingSummary, &errorSummary, &b.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: scan import batch: %w", err)
	}

	if b.ColumnMapping, err = decodeStringMapJSONB(columnMapping); err != nil {
		return nil, err
	}
	if b.ColumnTypeGuesses, err = decodeStringMapJSONB(columnTypeGuesses); err != nil {
		return nil, err
	}
	if b.PotentialMapping, err = decodeStringMapJSONB(potentialMapping); err != nil {
		return nil, err
	}
	if b.PreviewData, err = decodeRowsJSONB(previewData); err != nil {
		return nil, err
	}
	if b.ProcessingSummary, err = decodeJSONB(processingSummary); err != nil {
		return nil, err
	}
	if b.ErrorSummary, err = decodeJSONB(errorSummary); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *ImportBatchRepository) AppendError(ctx context.Context, impErr *entity.ImportError) error {
	rawRowData, err := encodeJSONB(impErr.RawRowData)
	if err != nil {
		return fmt.Errorf("repository: encode raw_row_data: %w", err)
	}

	_, err = r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO import_errors (
			id, tenant_id, import_batch_id, row_number, column_name, column_index,
			error_type, error_code, error_message, severity, raw_value, expected_format,
			suggested_fix, raw_row_data, resolved, resolution_notes, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		impErr.ID, impErr.TenantID, impErr.ImportBatchID, impErr.RowNumber, impErr.ColumnName, impErr.ColumnIndex,
		impErr.ErrorType, impErr.ErrorCode, impErr.ErrorMessage, impErr.Severity, impErr.RawValue, impErr.ExpectedFormat,
		impErr.SuggestedFix, rawRowData, impErr.Resolved, impErr.ResolutionNotes, impErr.ResolvedAt)
	if err != nil {
		return fmt.Errorf("repository: append import error: %w", err)
	}
	return nil
}

var _ port.ImportBatchRepository = (*ImportBatchRepository)(nil)
