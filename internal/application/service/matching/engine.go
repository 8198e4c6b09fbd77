// Package matching implements the two-way (Invoice <-> PurchaseOrder)
// matching engine: exact-then-fuzzy matching, batch orchestration over a
// bounded worker pool, and user feedback.
package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/audit"
	"github.com/invoicereconcile/core/internal/application/service/tenantconfig"
	"github.com/invoicereconcile/core/internal/domain/confidence"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/fuzzy"
	"github.com/invoicereconcile/core/internal/domain/tolerance"
)

// AlgorithmVersion is stamped onto every MatchResult and AuditEvent this
// engine produces.
const AlgorithmVersion = "2-way-v1.0.0"

// fuzzyDateWindowBefore/After bound the PO candidate date window relative
// to the invoice date.
const (
	fuzzyDateWindowBefore = 30 * 24 * time.Hour
	fuzzyDateWindowAfter  = 7 * 24 * time.Hour
)

// Decision is the outcome of match_one, either a candidate match or an
// explicit no-match.
type Decision struct {
	Matched         bool
	MatchType       entity.MatchType
	Confidence      decimal.Decimal
	PurchaseOrderID *uuid.UUID
	AutoApproved    bool
	RequiresReview  bool
	Breakdown       confidence.Breakdown
	Result          *entity.MatchResult
}

// Engine is the two-way matching engine for one tenant. Initialize once
// per tenant per run; initialization is idempotent and prefits the TF-IDF
// vendor corpus.
type Engine struct {
	tenantID uuid.UUID

	invoices   port.InvoiceRepository
	pos        port.PurchaseOrderRepository
	vendors    port.VendorRepository
	tolerances port.ToleranceRepository
	results    port.MatchResultRepository
	txm        port.TransactionManager
	auditLog   *audit.Log
	logger     *zap.Logger

	cfg       *entity.MatchingConfiguration
	scorer    *confidence.Scorer
	toleranceResolver *tolerance.Resolver
	corpus    *fuzzy.Corpus

	initOnce sync.Once
	initErr  error
}

// Deps bundles the Engine's collaborators.
type Deps struct {
	Invoices   port.InvoiceRepository
	POs        port.PurchaseOrderRepository
	Vendors    port.VendorRepository
	Tolerances port.ToleranceRepository
	Results    port.MatchResultRepository
	TxManager  port.TransactionManager
	AuditLog   *audit.Log
	Logger     *zap.Logger
}

// NewEngine builds an Engine for tenantID. Call Initialize before use.
func NewEngine(tenantID uuid.UUID, deps Deps) *Engine {
	return &Engine{
		tenantID:   tenantID,
		invoices:   deps.Invoices,
		pos:        deps.POs,
		vendors:    deps.Vendors,
		tolerances: deps.Tolerances,
		results:    deps.Results,
		txm:        deps.TxManager,
		auditLog:   deps.AuditLog,
		logger:     deps.Logger,
	}
}

// Initialize stores the caller-supplied MatchingConfiguration, builds the
// confidence scorer from its weights, loads the tenant's active tolerance
// rules into the resolver, and prefits the TF-IDF vendor corpus. Safe to
// call more than once; only the first call does work.
func (e *Engine) Initialize(ctx context.Context, cfg *entity.MatchingConfiguration) error {
	e.initOnce.Do(func() {
		e.cfg = cfg

		scorer, err := confidence.NewScorer(tenantconfig.Weights(cfg))
		if err != nil {
			e.initErr = err
			return
		}
		e.scorer = scorer

		var rules []entity.MatchingTolerance
		if e.tolerances != nil {
			rules, e.initErr = e.tolerances.ListActive(ctx, e.tenantID)
			if e.initErr != nil {
				return
			}
		}
		e.toleranceResolver = tolerance.NewResolver(rules)

		if e.vendors != nil {
			vendorList, err := e.vendors.ListActive(ctx, e.tenantID)
			if err != nil {
				e.initErr = err
				return
			}
			names := make([]string, 0, len(vendorList))
			for _, v := range vendorList {
				names = append(names, v.Name)
			}
			e.corpus = fuzzy.FitCorpus(names)
		}
	})
	return e.initErr
}

// MatchOne runs the three-step pipeline for one invoice: exact pass, fuzzy
// pass (if enabled), then persist-and-audit. Returns Decision{Matched:
// false} if the invoice is missing or archived, or no candidate clears the
// manual-review threshold.
func (e *Engine) MatchOne(ctx context.Context, invoiceID uuid.UUID) (Decision, error) {
	invoice, err := e.invoices.GetByID(ctx, e.tenantID, invoiceID)
	if err != nil {
		return Decision{}, fmt.Errorf("matching: load invoice: %w", err)
	}
	if invoice == nil || invoice.Status == entity.DocumentStatusArchived {
		return Decision{}, nil
	}

	if po, ok, err := e.attemptExactMatch(ctx, invoice); err != nil {
		return Decision{}, err
	} else if ok {
		return e.finalize(ctx, invoice, po, decimal.NewFromInt(1), entity.MatchTypeExact, confidence.Breakdown{Confidence: 1.0})
	}

	if e.cfg.FuzzyEnabled {
		po, conf, breakdown, ok, err := e.attemptFuzzyMatch(ctx, invoice)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return e.finalize(ctx, invoice, po, conf, entity.MatchTypeFuzzy, breakdown)
		}
	}

	return Decision{Matched: false}, nil
}

func (e *Engine) attemptExactMatch(ctx context.Context, invoice *entity.Invoice) (*entity.PurchaseOrder, bool, error) {
	if invoice.POReference == "" {
		return nil, false, nil
	}
	candidates, err := e.pos.FindByNumberAndVendor(ctx, e.tenantID, invoice.VendorID, invoice.POReference)
	if err != nil {
		return nil, false, fmt.Errorf("matching: find exact PO candidates: %w", err)
	}
	for _, po := range candidates {
		if po.Status == entity.DocumentStatusArchived {
			continue
		}
		if po.TotalAmount.Decimal.Equal(invoice.TotalAmount.Decimal) {
			return po, true, nil
		}
	}
	return nil, false, nil
}

func (e *Engine) attemptFuzzyMatch(ctx context.Context, invoice *entity.Invoice) (*entity.PurchaseOrder, decimal.Decimal, confidence.Breakdown, bool, error) {
	dateFrom := invoice.InvoiceDate.Add(-fuzzyDateWindowBefore)
	dateTo := invoice.InvoiceDate.Add(fuzzyDateWindowAfter)

	candidates, err := e.pos.FindCandidates(ctx, e.tenantID, invoice.VendorID, dateFrom, dateTo)
	if err != nil {
		return nil, decimal.Zero, confidence.Breakdown{}, false, fmt.Errorf("matching: find fuzzy PO candidates: %w", err)
	}

	invoiceVendor, err := e.vendors.GetByID(ctx, e.tenantID, invoice.VendorID)
	if err != nil {
		return nil, decimal.Zero, confidence.Breakdown{}, false, fmt.Errorf("matching: load invoice vendor: %w", err)
	}

	var best *entity.PurchaseOrder
	var bestBreakdown confidence.Breakdown
	bestConfidence := -1.0

	for _, po := range candidates {
		if po.Status == entity.DocumentStatusArchived {
			continue
		}
		poVendor, err := e.vendors.GetByID(ctx, e.tenantID, po.VendorID)
		if err != nil {
			return nil, decimal.Zero, confidence.Breakdown{}, false, fmt.Errorf("matching: load PO vendor: %w", err)
		}

		factors := e.buildFactors(invoice, po, invoiceVendor, poVendor)
		breakdown := e.scorer.Score(factors)

		manualReview, _ := e.cfg.ManualReviewThreshold.Float64()
		if breakdown.Confidence >= manualReview && breakdown.Confidence > bestConfidence {
			bestConfidence = breakdown.Confidence
			best = po
			bestBreakdown = breakdown
		}
	}

	if best == nil {
		return nil, decimal.Zero, confidence.Breakdown{}, false, nil
	}
	return best, decimal.NewFromFloat(bestConfidence), bestBreakdown, true, nil
}

func (e *Engine) buildFactors(invoice *entity.Invoice, po *entity.PurchaseOrder, invoiceVendor, poVendor *entity.Vendor) confidence.Factors {
	vendorSimilarity := 1.0
	if invoiceVendor != nil && poVendor != nil {
		vendorSimilarity = fuzzy.Similarity(invoiceVendor.Name, poVendor.Name, fuzzy.MethodComposite, e.corpus)
	}

	amtTolerance := e.toleranceResolver.Resolve(&po.VendorID, invoice.TotalAmount.Decimal, entity.ToleranceTypePrice)
	amtCheck := tolerance.CheckAmount(invoice.TotalAmount.Decimal, po.TotalAmount.Decimal, amtTolerance)
	amtVariance, _ := amtCheck.Variance.Float64()

	dateDays := e.toleranceResolver.ResolveDateDays()
	dateCheck := tolerance.CheckDate(invoice.InvoiceDate, po.PODate, dateDays)

	referenceExact := invoice.POReference == po.PONumber
	referenceSimilarity := fuzzy.Similarity(invoice.POReference, po.PONumber, fuzzy.MethodComposite, nil)

	return confidence.Factors{
		VendorSimilarity:      vendorSimilarity,
		AmountWithinTolerance: amtCheck.WithinTolerance,
		AmountVariance:        amtVariance,
		DateWithinTolerance:   dateCheck.WithinTolerance,
		DateVarianceDays:      dateCheck.VarianceDays,
		ReferenceExact:        referenceExact,
		ReferenceSimilarity:   referenceSimilarity,
	}
}

func (e *Engine) finalize(ctx context.Context, invoice *entity.Invoice, po *entity.PurchaseOrder, conf decimal.Decimal, matchType entity.MatchType, breakdown confidence.Breakdown) (Decision, error) {
	confFloat, _ := conf.Float64()
	autoApprove, _ := e.cfg.AutoApproveThreshold.Float64()
	manualReview, _ := e.cfg.ManualReviewThreshold.Float64()

	autoApproved := confFloat >= autoApprove
	requiresReview := confFloat >= manualReview && confFloat < autoApprove

	result := &entity.MatchResult{
		ID:                       uuid.New(),
		TenantID:                 e.tenantID,
		InvoiceID:                invoice.ID,
		PurchaseOrderID:          &po.ID,
		MatchType:                matchType,
		ConfidenceScore:          conf,
		AutoApproved:             autoApproved,
		RequiresReview:           requiresReview,
		MatchedAt:                time.Now().UTC(),
		MatchedBy:                entity.MatchedBySystem,
		MatchingAlgorithmVersion: AlgorithmVersion,
		CriteriaMet: map[string]any{
			"vendor_score":    breakdown.VendorScore,
			"amount_score":    breakdown.AmountScore,
			"date_score":      breakdown.DateScore,
			"reference_score": breakdown.ReferenceScore,
		},
	}
	if autoApproved {
		result.MatchStatus = entity.MatchStatusApproved
		now := time.Now().UTC()
		result.ApprovedAt = &now
	} else {
		result.MatchStatus = entity.MatchStatusPending
	}

	err := e.txm.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.results.Create(ctx, result); err != nil {
			return fmt.Errorf("matching: persist match result: %w", err)
		}
		event := &entity.AuditEvent{
			TenantID:         e.tenantID,
			MatchResultID:    result.ID,
			EventType:        entity.EventTypeMatchCreated,
			EventDescription: fmt.Sprintf("%s match at confidence %s", matchType, conf.StringFixed(4)),
			DecisionFactors: map[string]any{
				"match_type": string(matchType),
				"confidence": confFloat,
				"vendor_score":    breakdown.VendorScore,
				"amount_score":    breakdown.AmountScore,
				"date_score":      breakdown.DateScore,
				"reference_score": breakdown.ReferenceScore,
			},
			AlgorithmVersion:    AlgorithmVersion,
			ConfidenceBreakdown: map[string]any{"confidence": confFloat},
		}
		if err := e.auditLog.Append(ctx, event); err != nil {
			return fmt.Errorf("matching: append audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Matched:         true,
		MatchType:       matchType,
		Confidence:      conf,
		PurchaseOrderID: &po.ID,
		AutoApproved:    autoApproved,
		RequiresReview:  requiresReview,
		Breakdown:       breakdown,
		Result:          result,
	}, nil
}

// ProcessingMetrics aggregates the outcome of a batch match run.
type ProcessingMetrics struct {
	TotalInvoices   int
	ExactMatches    int
	FuzzyMatches    int
	NoMatches       int
	AutoApproved    int
	ManualReview    int
	Errors          int
	ElapsedTime     time.Duration
	AverageConfidence float64
}

// MatchBatch runs MatchOne for every invoice id, either sequentially or on
// a bounded worker pool sized to cfg.MaxConcurrentJobs, chunked into
// cfg.BatchSize groups. Per-invoice failures are aggregated into metrics
// and never abort the batch.
func (e *Engine) MatchBatch(ctx context.Context, invoiceIDs []uuid.UUID, parallel bool) ProcessingMetrics {
	start := time.Now()
	metrics := ProcessingMetrics{TotalInvoices: len(invoiceIDs)}

	var mu sync.Mutex
	var confidenceSum float64
	var confidenceCount int

	record := func(d Decision, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			metrics.Errors++
			if e.logger != nil {
				e.logger.Error("matching: batch invoice failed", zap.Error(err))
			}
			return
		}
		if !d.Matched {
			metrics.NoMatches++
			return
		}
		switch d.MatchType {
		case entity.MatchTypeExact:
			metrics.ExactMatches++
		case entity.MatchTypeFuzzy:
			metrics.FuzzyMatches++
		}
		if d.AutoApproved {
			metrics.AutoApproved++
		}
		if d.RequiresReview {
			metrics.ManualReview++
		}
		confFloat, _ := d.Confidence.Float64()
		confidenceSum += confFloat
		confidenceCount++
	}

	if !parallel || len(invoiceIDs) <= 1 {
		for _, id := range invoiceIDs {
			d, err := e.MatchOne(ctx, id)
			record(d, err)
		}
		metrics.ElapsedTime = time.Since(start)
		if confidenceCount > 0 {
			metrics.AverageConfidence = confidenceSum / float64(confidenceCount)
		}
		return metrics
	}

	chunkSize := e.cfg.BatchSize
	if chunkSize <= 0 {
		chunkSize = 10
	}
	chunks := chunkIDs(invoiceIDs, chunkSize)

	workers := e.cfg.MaxConcurrentJobs
	if workers <= 0 {
		workers = 4
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(chunk []uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, id := range chunk {
				d, err := e.MatchOne(ctx, id)
				record(d, err)
			}
		}(chunk)
	}
	wg.Wait()

	metrics.ElapsedTime = time.Since(start)
	if confidenceCount > 0 {
		metrics.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	return metrics
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

// FeedbackKind is the closed set of feedback actions a reviewer may take.
type FeedbackKind string

const (
	FeedbackApprove FeedbackKind = "approve"
	FeedbackReject  FeedbackKind = "reject"
	FeedbackModify  FeedbackKind = "modify"
)

// UserFeedback updates a MatchResult's status based on reviewer action and
// appends a user_feedback audit event.
func (e *Engine) UserFeedback(ctx context.Context, matchResultID uuid.UUID, kind FeedbackKind, actor entity.Actor, notes string) error {
	result, err := e.results.GetByID(ctx, e.tenantID, matchResultID)
	if err != nil {
		return fmt.Errorf("matching: load match result: %w", err)
	}
	if result == nil {
		return fmt.Errorf("matching: match result not found")
	}

	now := time.Now().UTC()
	result.ReviewedAt = &now
	result.MatchedBy = entity.MatchedByUser

	switch kind {
	case FeedbackApprove:
		result.MatchStatus = entity.MatchStatusApproved
		result.ApprovedAt = &now
		result.ApprovedBy = actor.UserID
	case FeedbackReject:
		result.MatchStatus = entity.MatchStatusRejected
		result.ReviewNotes = notes
		result.ApprovedAt = nil
		result.ApprovedBy = nil
	case FeedbackModify:
		result.MatchStatus = entity.MatchStatusManualReview
		result.ReviewNotes = notes
		result.ApprovedAt = nil
		result.ApprovedBy = nil
	}

	return e.txm.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.results.Update(ctx, result); err != nil {
			return fmt.Errorf("matching: update match result: %w", err)
		}
		event := &entity.AuditEvent{
			TenantID:         e.tenantID,
			MatchResultID:    result.ID,
			EventType:        entity.EventTypeUserFeedback,
			EventDescription: fmt.Sprintf("user feedback: %s", kind),
			DecisionFactors:  map[string]any{"feedback": string(kind), "notes": notes},
			AlgorithmVersion: AlgorithmVersion,
			ActorUserID:      actor.UserID,
			ActorRole:        actor.Role,
			ActorIP:          actor.IP,
			ActorUserAgent:   actor.UserAgent,
		}
		return e.auditLog.Append(ctx, event)
	})
}
