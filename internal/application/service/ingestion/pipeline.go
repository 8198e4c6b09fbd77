// Package ingestion implements the CSV ingestion pipeline: metadata
// detection, mapping validation, row-by-row streamed processing with
// per-row savepoints, progress checkpoints, and finalization.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/progress"
	"github.com/invoicereconcile/core/internal/application/service/validation"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/fuzzy"
	"github.com/invoicereconcile/core/internal/domain/money"
)

// progressCheckpointEvery is how many rows pass between progress
// publications and cancellation polls.
const progressCheckpointEvery = 50

// ErrCancelled is returned by Run when a cancellation signal was
// observed at a progress checkpoint.
var ErrCancelled = fmt.Errorf("ingestion: batch cancelled")

// Deps bundles the Pipeline's collaborators.
type Deps struct {
	Batches   port.ImportBatchRepository
	Vendors   port.VendorRepository
	Invoices  port.InvoiceRepository
	TxManager port.TransactionManager
	Progress  *progress.Registry
	Logger    *zap.Logger
}

// Pipeline runs the stream-process stage for one tenant.
type Pipeline struct {
	tenantID uuid.UUID
	batches  port.ImportBatchRepository
	vendors  port.VendorRepository
	invoices port.InvoiceRepository
	txm      port.TransactionManager
	progress *progress.Registry
	logger   *zap.Logger
}

// NewPipeline builds a Pipeline for tenantID.
func NewPipeline(tenantID uuid.UUID, deps Deps) *Pipeline {
	return &Pipeline{
		tenantID: tenantID,
		batches:  deps.Batches,
		vendors:  deps.Vendors,
		invoices: deps.Invoices,
		txm:      deps.TxManager,
		progress: deps.Progress,
		logger:   deps.Logger,
	}
}

// Result summarizes the outcome of one Run.
type Result struct {
	TotalRecords      int
	SuccessfulRecords int
	ErrorRecords      int
	DuplicateRecords  int
	FinalStatus       entity.ImportBatchStatus
}

// Run streams dataRows (already delimiter-split, header excluded) through
// normalization, validation, and persistence, under one outer transaction.
// mapping is CSV column header -> canonical field name, as confirmed by
// the operator. actorID is recorded as CreatedBy on every row's vendor or
// invoice this run creates.
func (p *Pipeline) Run(ctx context.Context, batch *entity.ImportBatch, headers []string, mapping map[string]string, dataRows [][]string, actorID uuid.UUID) (Result, error) {
	if missing := ValidateMapping(mapping); len(missing) > 0 {
		return Result{}, fmt.Errorf("ingestion: mapping missing required fields: %s", strings.Join(missing, ", "))
	}

	const maxCSVLines = 50000
	lines := len(dataRows)
	if batch.HasHeader {
		lines++
	}
	if lines > maxCSVLines {
		return Result{}, fmt.Errorf("ingestion: %d lines exceeds the %d-line limit", lines, maxCSVLines)
	}

	colIndex := make(map[string]int, len(headers))
	for i, h := range headers {
		colIndex[h] = i
	}
	fieldCol := make(map[string]int, len(mapping))
	for header, field := range mapping {
		if idx, ok := colIndex[header]; ok {
			fieldCol[field] = idx
		}
	}

	chain := validation.NewChain(p.tenantID, p.vendors, p.invoices)

	result := Result{TotalRecords: len(dataRows)}
	cancelled := false

	err := p.txm.WithTransaction(ctx, func(ctx context.Context) error {
		for i, rawRow := range dataRows {
			rowNumber := i + 1

			if rowNumber%progressCheckpointEvery == 0 {
				if p.progress != nil {
					isCancelled, cerr := p.progress.IsCancelled(ctx, batch.ID.String())
					if cerr == nil && isCancelled {
						cancelled = true
						return ErrCancelled
					}
					pct := progressPercentage(rowNumber, result.TotalRecords)
					p.progress.PublishProgress(ctx, batch.ID.String(), map[string]any{
						"processed":  rowNumber,
						"total":      result.TotalRecords,
						"percentage": pct,
					})
				}
			}

			row, description, parseErrs := p.buildRow(rawRow, fieldCol)
			if len(parseErrs) > 0 {
				for _, ie := range parseErrs {
					ie.ID = uuid.New()
					ie.RowNumber = rowNumber
					ie.TenantID = p.tenantID
					ie.ImportBatchID = batch.ID
					_ = p.batches.AppendError(ctx, &ie)
				}
				result.ErrorRecords++
				continue
			}

			validationErrs := chain.Run(ctx, row)
			if validation.HasBlockingError(validationErrs) {
				isDuplicate := false
				for _, ve := range validationErrs {
					ie := toImportError(ve, rowNumber, p.tenantID, batch.ID)
					_ = p.batches.AppendError(ctx, &ie)
					if ve.ErrorType == entity.ImportErrorDuplicate {
						isDuplicate = true
					}
				}
				if isDuplicate {
					result.DuplicateRecords++
				} else {
					result.ErrorRecords++
				}
				continue
			}
			for _, ve := range validationErrs {
				ie := toImportError(ve, rowNumber, p.tenantID, batch.ID)
				_ = p.batches.AppendError(ctx, &ie)
			}

			spErr := p.txm.WithSavepoint(ctx, fmt.Sprintf("row_%d", rowNumber), func(ctx context.Context) error {
				return p.persistRow(ctx, row, description, actorID)
			})
			if spErr != nil {
				ie := entity.ImportError{
					ID: uuid.New(), TenantID: p.tenantID, ImportBatchID: batch.ID, RowNumber: rowNumber,
					ErrorType: entity.ImportErrorSystem, ErrorCode: "PERSIST_FAILED",
					ErrorMessage: spErr.Error(), Severity: entity.SeverityError,
				}
				_ = p.batches.AppendError(ctx, &ie)
				result.ErrorRecords++
				continue
			}
			result.SuccessfulRecords++
		}
		return nil
	})

	if cancelled {
		result.FinalStatus = entity.ImportBatchCancelled
		return result, nil
	}
	if err != nil {
		result.FinalStatus = entity.ImportBatchFailed
		return result, err
	}

	result.FinalStatus = finalStatus(result)
	return result, nil
}

func progressPercentage(processed, total int) int {
	if total == 0 {
		return 95
	}
	pct := 10 + (float64(processed)/float64(total))*80
	if pct > 95 {
		pct = 95
	}
	return int(pct)
}

func finalStatus(r Result) entity.ImportBatchStatus {
	switch {
	case r.ErrorRecords == 0 && r.SuccessfulRecords > 0:
		return entity.ImportBatchCompleted
	case r.SuccessfulRecords > 0 && r.ErrorRecords > 0:
		return entity.ImportBatchCompleted
	default:
		return entity.ImportBatchFailed
	}
}

func (p *Pipeline) buildRow(rawRow []string, fieldCol map[string]int) (*validation.Row, string, []entity.ImportError) {
	var errs []entity.ImportError
	cell := func(field string) (string, bool) {
		idx, ok := fieldCol[field]
		if !ok || idx >= len(rawRow) {
			return "", false
		}
		return strings.TrimSpace(rawRow[idx]), true
	}

	row := &validation.Row{}
	description, _ := cell("description")

	if v, ok := cell("invoice_number"); ok {
		row.InvoiceNumber = NormalizeInvoiceNumber(v)
	}
	if v, ok := cell("vendor"); ok {
		row.VendorName = NormalizeVendorName(v)
	}
	if v, ok := cell("amount"); ok && v != "" {
		amt, err := ParseAmount(v)
		if err != nil {
			errs = append(errs, entity.ImportError{ErrorType: entity.ImportErrorParsing, ErrorCode: "INVALID_AMOUNT", ErrorMessage: err.Error(), ColumnName: "amount", RawValue: v, Severity: entity.SeverityError})
		} else {
			d := amt.Decimal
			row.TotalAmount = &d
		}
	}
	if v, ok := cell("tax_amount"); ok && v != "" {
		if amt, err := ParseAmount(v); err == nil {
			d := amt.Decimal
			row.TaxAmount = &d
		}
	}
	if v, ok := cell("subtotal"); ok && v != "" {
		if amt, err := ParseAmount(v); err == nil {
			d := amt.Decimal
			row.Subtotal = &d
		}
	}
	if v, ok := cell("invoice_date"); ok && v != "" {
		if t, ok := ParseDate(v); ok {
			row.InvoiceDate = &t
		} else {
			errs = append(errs, entity.ImportError{ErrorType: entity.ImportErrorParsing, ErrorCode: "INVALID_DATE", ErrorMessage: fmt.Sprintf("could not parse date %q", v), ColumnName: "invoice_date", RawValue: v, Severity: entity.SeverityError})
		}
	}

	return row, description, errs
}

func toImportError(ve validation.ValidationError, rowNumber int, tenantID, batchID uuid.UUID) entity.ImportError {
	return entity.ImportError{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ImportBatchID:  batchID,
		RowNumber:      rowNumber,
		ColumnName:     ve.Field,
		ErrorType:      ve.ErrorType,
		ErrorCode:      ve.Code,
		ErrorMessage:   ve.Message,
		Severity:       ve.Severity,
		RawValue:       ve.RawValue,
		ExpectedFormat: ve.ExpectedFormat,
		SuggestedFix:   ve.SuggestedFix,
	}
}

func (p *Pipeline) persistRow(ctx context.Context, row *validation.Row, description string, actorID uuid.UUID) error {
	vendorID, err := p.resolveVendor(ctx, row, actorID)
	if err != nil {
		return fmt.Errorf("ingestion: resolve vendor: %w", err)
	}

	invoice := &entity.Invoice{
		ID:            uuid.New(),
		TenantID:      p.tenantID,
		VendorID:      vendorID,
		InvoiceNumber: row.InvoiceNumber,
		Status:        entity.DocumentStatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
		CreatedBy:     actorID,
		UpdatedBy:     actorID,
	}
	if row.TotalAmount != nil {
		invoice.TotalAmount = money.NewAmount(*row.TotalAmount)
	}
	if row.TaxAmount != nil {
		invoice.TaxAmount = money.NewAmount(*row.TaxAmount)
	}
	if row.Subtotal != nil {
		invoice.Subtotal = money.NewAmount(*row.Subtotal)
	}
	if row.InvoiceDate != nil {
		invoice.InvoiceDate = *row.InvoiceDate
	}
	invoice.DueDate = row.DueDate

	if err := p.invoices.Create(ctx, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	if description != "" {
		line := &entity.InvoiceLine{
			ID:          uuid.New(),
			TenantID:    p.tenantID,
			InvoiceID:   invoice.ID,
			LineNumber:  1,
			Description: description,
			LineTotal:   invoice.TotalAmount,
		}
		if err := p.invoices.CreateLine(ctx, line); err != nil {
			return fmt.Errorf("create invoice line: %w", err)
		}
	}
	return nil
}

// learningAliasThreshold is the fuzzy-similarity floor above which an
// unrecognized vendor name is recorded as a learned alias of an existing
// vendor rather than spawning a new one.
const learningAliasThreshold = 0.97

// matchLearnedAlias fuzzy-matches name against the tenant's active vendor
// list; if the best match clears learningAliasThreshold it is recorded as
// a VendorAlias with source=learning and its vendor ID is returned.
func (p *Pipeline) matchLearnedAlias(ctx context.Context, name string, actorID uuid.UUID) (uuid.UUID, bool, error) {
	active, err := p.vendors.ListActive(ctx, p.tenantID)
	if err != nil {
		return uuid.Nil, false, err
	}

	var best *entity.Vendor
	bestScore := 0.0
	for _, v := range active {
		score := fuzzy.Similarity(name, v.Name, fuzzy.MethodComposite, nil)
		if score > bestScore {
			bestScore = score
			best = v
		}
	}
	if best == nil || bestScore < learningAliasThreshold {
		return uuid.Nil, false, nil
	}

	alias := &entity.VendorAlias{
		ID:         uuid.New(),
		TenantID:   p.tenantID,
		VendorID:   best.ID,
		Alias:      name,
		Similarity: bestScore,
		Approved:   false,
		Source:     entity.VendorAliasSourceLearning,
		Confidence: bestScore,
	}
	if err := p.vendors.AddAlias(ctx, alias); err != nil {
		return uuid.Nil, false, fmt.Errorf("ingestion: record learned vendor alias: %w", err)
	}
	return best.ID, true, nil
}

func (p *Pipeline) resolveVendor(ctx context.Context, row *validation.Row, actorID uuid.UUID) (uuid.UUID, error) {
	if row.MatchedVendorID != nil {
		return *row.MatchedVendorID, nil
	}
	if row.VendorName == "" {
		return uuid.Nil, fmt.Errorf("empty vendor name")
	}

	existing, err := p.vendors.GetByNameExact(ctx, p.tenantID, row.VendorName)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	aliased, err := p.vendors.GetByAlias(ctx, p.tenantID, row.VendorName)
	if err != nil {
		return uuid.Nil, err
	}
	if aliased != nil {
		return aliased.ID, nil
	}

	if match, ok, err := p.matchLearnedAlias(ctx, row.VendorName, actorID); err != nil {
		return uuid.Nil, err
	} else if ok {
		return match, nil
	}

	code := GenerateVendorCode(row.VendorName, func(candidate string) bool {
		v, _ := p.vendors.GetByCode(ctx, p.tenantID, candidate)
		return v != nil
	})

	vendor := &entity.Vendor{
		ID:         uuid.New(),
		TenantID:   p.tenantID,
		VendorCode: code,
		Name:       row.VendorName,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
		CreatedBy:  actorID,
		UpdatedBy:  actorID,
	}
	if err := p.vendors.Create(ctx, vendor); err != nil {
		return uuid.Nil, err
	}
	return vendor.ID, nil
}
