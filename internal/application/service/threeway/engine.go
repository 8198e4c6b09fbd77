// Package threeway implements the three-way (Invoice <-> PurchaseOrder <->
// Receipt) matching engine: PO resolution, receipt collection, line-level
// matching, classification, and the auto-approve/manual-review decision.
package threeway

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/audit"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
)

// AlgorithmVersion is stamped onto every MatchResult and AuditEvent this
// engine produces.
const AlgorithmVersion = "3-way-v1.0.0"

const (
	poDateWindowBefore = 30 * 24 * time.Hour
	poDateWindowAfter  = 7 * 24 * time.Hour
	poAmountLowFactor  = 0.9
	poAmountHighFactor = 1.1

	lineQuantityTolerance = 0.01
	lineAmountTolerance   = 0.02
	lineMatchThreshold    = 0.7

	classificationThreshold = 0.95
)

// Class is the closed set of three-way classification outcomes.
type Class string

const (
	ClassPerfectMatch    Class = "perfect_match"
	ClassPartialReceipt  Class = "partial_receipt"
	ClassUnderDelivery   Class = "under_delivery"
	ClassSplitDelivery   Class = "split_delivery"
	ClassPriceVariance   Class = "price_variance"
	ClassQuantityVariance Class = "quantity_variance"
	ClassFallback        Class = "fallback"
)

// LineResult is the outcome of matching one invoice line against the best
// candidate PO line.
type LineResult struct {
	InvoiceLineID    uuid.UUID
	POLineID         *uuid.UUID
	Confidence       float64
	WithinTolerance  bool
	QuantityVariance float64
	AmountVariance   float64
}

// Classification is the full line-and-header level verdict.
type Classification struct {
	Class           Class
	Confidence      float64
	MatchPct        float64
	TolPct          float64
	Lines           []LineResult
	Exceptions      []string
	HeaderAmountOK  bool
	HeaderQuantityOK bool
}

// Decision is the outcome of Perform.
type Decision struct {
	Matched         bool
	PurchaseOrderID *uuid.UUID
	ReceiptIDs      []uuid.UUID
	Classification  Classification
	AutoApproved    bool
	RequiresReview  bool
	Result          *entity.MatchResult
}

// Engine is the three-way matching engine for one tenant.
type Engine struct {
	tenantID uuid.UUID

	invoices port.InvoiceRepository
	pos      port.PurchaseOrderRepository
	receipts port.ReceiptRepository
	results  port.MatchResultRepository
	txm      port.TransactionManager
	auditLog *audit.Log
	logger   *zap.Logger

	autoApproveThreshold  float64
	manualReviewThreshold float64
}

// Deps bundles the Engine's collaborators.
type Deps struct {
	Invoices port.InvoiceRepository
	POs      port.PurchaseOrderRepository
	Receipts port.ReceiptRepository
	Results  port.MatchResultRepository
	TxManager port.TransactionManager
	AuditLog *audit.Log
	Logger   *zap.Logger
}

// NewEngine builds an Engine for tenantID using the given thresholds
// (typically sourced from the tenant's MatchingConfiguration).
func NewEngine(tenantID uuid.UUID, deps Deps, autoApproveThreshold, manualReviewThreshold float64) *Engine {
	return &Engine{
		tenantID:              tenantID,
		invoices:              deps.Invoices,
		pos:                   deps.POs,
		receipts:              deps.Receipts,
		results:               deps.Results,
		txm:                   deps.TxManager,
		auditLog:              deps.AuditLog,
		logger:                deps.Logger,
		autoApproveThreshold:  autoApproveThreshold,
		manualReviewThreshold: manualReviewThreshold,
	}
}

// Perform runs the full three-way pipeline for one invoice.
func (e *Engine) Perform(ctx context.Context, invoiceID uuid.UUID) (Decision, error) {
	invoice, err := e.invoices.GetByID(ctx, e.tenantID, invoiceID)
	if err != nil {
		return Decision{}, fmt.Errorf("threeway: load invoice: %w", err)
	}
	if invoice == nil {
		return Decision{}, nil
	}
	invoiceLines, err := e.invoices.ListLines(ctx, e.tenantID, invoiceID)
	if err != nil {
		return Decision{}, fmt.Errorf("threeway: load invoice lines: %w", err)
	}

	po, err := e.findPurchaseOrder(ctx, invoice)
	if err != nil {
		return Decision{}, err
	}
	if po == nil {
		return Decision{Matched: false}, nil
	}

	receipts, err := e.findReceipts(ctx, invoice, po)
	if err != nil {
		return Decision{}, err
	}
	receiptIDs := make([]uuid.UUID, 0, len(receipts))
	for _, r := range receipts {
		receiptIDs = append(receiptIDs, r.ID)
	}

	poLines, err := e.pos.ListLines(ctx, e.tenantID, po.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("threeway: load PO lines: %w", err)
	}

	receiptQtyByLine, receiptValByLine, err := e.aggregateReceiptLines(ctx, receipts)
	if err != nil {
		return Decision{}, err
	}

	classification := e.matchLines(invoice, invoiceLines, poLines, receiptQtyByLine, receiptValByLine)
	e.classify(&classification, invoice, po, poLines, receiptQtyByLine)

	autoApproved := classification.Confidence >= classificationThreshold &&
		len(classification.Exceptions) == 0 &&
		classification.HeaderAmountOK && classification.HeaderQuantityOK
	requiresReview := classification.Confidence >= e.manualReviewThreshold &&
		classification.Confidence < e.autoApproveThreshold && !autoApproved

	result := e.buildResult(invoice, po, classification, autoApproved, requiresReview)

	err = e.txm.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.results.Create(ctx, result); err != nil {
			return fmt.Errorf("threeway: persist match result: %w", err)
		}
		event := &entity.AuditEvent{
			TenantID:         e.tenantID,
			MatchResultID:    result.ID,
			EventType:        entity.EventTypeMatchCreated,
			EventDescription: fmt.Sprintf("three-way %s at confidence %.4f", classification.Class, classification.Confidence),
			DecisionFactors: map[string]any{
				"class":             string(classification.Class),
				"confidence":        classification.Confidence,
				"match_pct":         classification.MatchPct,
				"tol_pct":           classification.TolPct,
				"exceptions":        classification.Exceptions,
				"header_amount_ok":  classification.HeaderAmountOK,
				"header_qty_ok":     classification.HeaderQuantityOK,
				"line_count":        len(classification.Lines),
			},
			AlgorithmVersion: AlgorithmVersion,
		}
		return e.auditLog.Append(ctx, event)
	})
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Matched:         true,
		PurchaseOrderID: &po.ID,
		ReceiptIDs:      receiptIDs,
		Classification:  classification,
		AutoApproved:    autoApproved,
		RequiresReview:  requiresReview,
		Result:          result,
	}, nil
}

func (e *Engine) findPurchaseOrder(ctx context.Context, invoice *entity.Invoice) (*entity.PurchaseOrder, error) {
	if invoice.POReference != "" {
		exact, err := e.pos.FindByNumberAndVendor(ctx, e.tenantID, invoice.VendorID, invoice.POReference)
		if err != nil {
			return nil, fmt.Errorf("threeway: find exact PO: %w", err)
		}
		for _, po := range exact {
			if po.Status != entity.DocumentStatusArchived {
				return po, nil
			}
		}
	}

	dateFrom := invoice.InvoiceDate.Add(-poDateWindowBefore)
	dateTo := invoice.InvoiceDate.Add(poDateWindowAfter)
	invoiceTotal, _ := invoice.TotalAmount.Decimal.Float64()
	amountLow := invoiceTotal * poAmountLowFactor
	amountHigh := invoiceTotal * poAmountHighFactor

	candidates, err := e.pos.FindCandidatesByAmountRange(ctx, e.tenantID, invoice.VendorID, dateFrom, dateTo, amountLow, amountHigh)
	if err != nil {
		return nil, fmt.Errorf("threeway: find fuzzy PO candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := money.AbsDiff(candidates[i].TotalAmount.Decimal, invoice.TotalAmount.Decimal)
		dj := money.AbsDiff(candidates[j].TotalAmount.Decimal, invoice.TotalAmount.Decimal)
		return di.LessThan(dj)
	})
	for _, po := range candidates {
		if po.Status != entity.DocumentStatusArchived {
			return po, nil
		}
	}
	return nil, nil
}

func (e *Engine) findReceipts(ctx context.Context, invoice *entity.Invoice, po *entity.PurchaseOrder) ([]*entity.Receipt, error) {
	now := time.Now().UTC()

	envelopeStart := invoice.InvoiceDate.Add(-60 * 24 * time.Hour)
	altStart := now.Add(-90 * 24 * time.Hour)
	if altStart.Before(envelopeStart) {
		envelopeStart = altStart
	}

	envelopeEnd := invoice.InvoiceDate.Add(30 * 24 * time.Hour)
	if now.After(envelopeEnd) {
		envelopeEnd = now
	}

	receipts, err := e.receipts.FindByPurchaseOrder(ctx, e.tenantID, po.ID, envelopeStart, envelopeEnd)
	if err != nil {
		return nil, fmt.Errorf("threeway: find receipts: %w", err)
	}
	return receipts, nil
}

func (e *Engine) aggregateReceiptLines(ctx context.Context, receipts []*entity.Receipt) (map[uuid.UUID]decimal.Decimal, map[uuid.UUID]decimal.Decimal, error) {
	qtyByLine := make(map[uuid.UUID]decimal.Decimal)
	valByLine := make(map[uuid.UUID]decimal.Decimal)

	for _, r := range receipts {
		lines, err := e.receipts.ListLines(ctx, e.tenantID, r.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("threeway: load receipt lines: %w", err)
		}
		for _, l := range lines {
			qtyByLine[l.POLineID] = qtyByLine[l.POLineID].Add(l.QuantityReceived.Decimal)
			valByLine[l.POLineID] = valByLine[l.POLineID].Add(l.LineValue.Decimal)
		}
	}
	return qtyByLine, valByLine, nil
}

func (e *Engine) matchLines(
	invoice *entity.Invoice,
	invoiceLines []*entity.InvoiceLine,
	poLines []*entity.PurchaseOrderLine,
	receiptQtyByLine map[uuid.UUID]decimal.Decimal,
	receiptValByLine map[uuid.UUID]decimal.Decimal,
) Classification {
	results := make([]LineResult, 0, len(invoiceLines))

	for _, il := range invoiceLines {
		bestPOLine, bestConfidence := bestPOLineFor(il, poLines)

		lr := LineResult{InvoiceLineID: il.ID}
		if bestPOLine == nil || bestConfidence < lineMatchThreshold {
			lr.Confidence = 0
			lr.QuantityVariance = 1.0
			lr.AmountVariance = 1.0
			lr.WithinTolerance = false
			results = append(results, lr)
			continue
		}

		lr.POLineID = &bestPOLine.ID
		lr.Confidence = bestConfidence

		receiptQty, hasReceipt := receiptQtyByLine[bestPOLine.ID]
		var qtyVariance float64
		if hasReceipt && receiptQty.GreaterThan(decimal.Zero) {
			qtyVariance = variance(receiptQty, bestPOLine.Quantity.Decimal)
		} else {
			qtyVariance = variance(il.Quantity.Decimal, bestPOLine.Quantity.Decimal)
		}
		amtVariance := variance(il.LineTotal.Decimal, bestPOLine.LineTotal.Decimal)

		lr.QuantityVariance = qtyVariance
		lr.AmountVariance = amtVariance
		lr.WithinTolerance = qtyVariance <= lineQuantityTolerance && amtVariance <= lineAmountTolerance

		results = append(results, lr)
	}

	matched := 0
	withinTol := 0
	for _, lr := range results {
		if lr.POLineID != nil {
			matched++
		}
		if lr.WithinTolerance {
			withinTol++
		}
	}

	total := len(results)
	matchPct := 1.0
	tolPct := 1.0
	if total > 0 {
		matchPct = float64(matched) / float64(total)
		tolPct = float64(withinTol) / float64(total)
	}

	var exceptions []string
	for _, lr := range results {
		if lr.POLineID == nil {
			exceptions = append(exceptions, fmt.Sprintf("unmatched line %s", lr.InvoiceLineID))
		} else if !lr.WithinTolerance {
			exceptions = append(exceptions, fmt.Sprintf("high-variance line %s", lr.InvoiceLineID))
		}
	}

	return Classification{
		Lines:      results,
		MatchPct:   matchPct,
		TolPct:     tolPct,
		Exceptions: exceptions,
	}
}

func bestPOLineFor(invoiceLine *entity.InvoiceLine, poLines []*entity.PurchaseOrderLine) (*entity.PurchaseOrderLine, float64) {
	var best *entity.PurchaseOrderLine
	bestScore := -1.0
	for _, pl := range poLines {
		score := lineConfidence(invoiceLine, pl)
		if score > bestScore {
			bestScore = score
			best = pl
		}
	}
	return best, bestScore
}

// lineConfidence implements the weighted sub-factor table: item_code exact
// (0.4), description Jaccard (0.3), unit_price similarity (0.2), quantity
// reasonableness (0.1).
func lineConfidence(il *entity.InvoiceLine, pl *entity.PurchaseOrderLine) float64 {
	var itemCodeScore float64
	switch {
	case il.ItemCode != "" && pl.ItemCode != "" && il.ItemCode == pl.ItemCode:
		itemCodeScore = 0.4
	case il.ItemCode == "" && pl.ItemCode == "":
		itemCodeScore = 0.1
	default:
		itemCodeScore = 0
	}

	descriptionScore := jaccard(il.Description, pl.Description) * 0.3

	unitPriceScore := 0.0
	poPrice, _ := pl.UnitPrice.Decimal.Float64()
	invPrice, _ := il.UnitPrice.Decimal.Float64()
	if poPrice != 0 {
		diff := math.Abs(invPrice - poPrice)
		unitPriceScore = math.Max(0, 1-diff/poPrice) * 0.2
	}

	quantityScore := 0.0
	a, _ := il.Quantity.Decimal.Float64()
	b, _ := pl.Quantity.Decimal.Float64()
	if a != 0 && b != 0 {
		quantityScore = math.Min(a/b, b/a) * 0.1
	}

	return itemCodeScore + descriptionScore + unitPriceScore + quantityScore
}

func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func variance(a, b decimal.Decimal) float64 {
	v := money.PercentageVariance(a, b)
	f, _ := v.Float64()
	return f
}

// classify fills in the header-level classification and confidence given
// the line-level results already populated on c.
func (e *Engine) classify(c *Classification, invoice *entity.Invoice, po *entity.PurchaseOrder, poLines []*entity.PurchaseOrderLine, receiptQtyByLine map[uuid.UUID]decimal.Decimal) {
	headerAmountVariance := variance(invoice.TotalAmount.Decimal, po.TotalAmount.Decimal)
	c.HeaderAmountOK = headerAmountVariance <= lineAmountTolerance

	var totalReceiptQty, totalPOQty decimal.Decimal
	for _, q := range receiptQtyByLine {
		totalReceiptQty = totalReceiptQty.Add(q)
	}
	for _, pl := range poLines {
		totalPOQty = totalPOQty.Add(pl.Quantity.Decimal)
	}

	headerQuantityOK := true
	if !totalPOQty.IsZero() {
		qtyVariance := variance(totalReceiptQty, totalPOQty)
		headerQuantityOK = qtyVariance <= lineQuantityTolerance
	}
	c.HeaderQuantityOK = headerQuantityOK

	linesWithReceipt := 0
	for _, lr := range c.Lines {
		if lr.POLineID != nil {
			if qty, ok := receiptQtyByLine[*lr.POLineID]; ok && qty.GreaterThan(decimal.Zero) {
				linesWithReceipt++
			}
		}
	}
	linesWithPO := len(c.Lines)

	switch {
	case linesWithPO == 0:
		// An invoice with no line items trivially satisfies MatchPct/TolPct
		// (both default to 1.0 with nothing to divide by), but there is
		// nothing here to have actually matched. Force confidence to 0 so
		// it can never auto-approve, while still labeling it a perfect
		// match for review purposes.
		c.Class = ClassPerfectMatch
		c.Confidence = 0
	case c.MatchPct >= classificationThreshold && c.TolPct >= classificationThreshold:
		c.Class = ClassPerfectMatch
		c.Confidence = 0.95
	case totalReceiptQty.LessThan(totalPOQty) && !totalPOQty.IsZero():
		c.Class = ClassPartialReceipt
		c.Confidence = c.MatchPct * 0.85
	case linesWithReceipt > linesWithPO:
		c.Class = ClassSplitDelivery
		c.Confidence = c.MatchPct * 0.80
	case !c.HeaderAmountOK:
		c.Class = ClassPriceVariance
		c.Confidence = c.TolPct * 0.75
	case !c.HeaderQuantityOK:
		c.Class = ClassQuantityVariance
		c.Confidence = c.TolPct * 0.70
	default:
		c.Class = ClassFallback
		c.Confidence = c.MatchPct * c.TolPct * 0.80
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	if !c.HeaderAmountOK {
		c.Exceptions = append(c.Exceptions, "header amount out of tolerance")
	}
	if !c.HeaderQuantityOK {
		c.Exceptions = append(c.Exceptions, "header quantity out of tolerance")
	}
}

func (e *Engine) buildResult(invoice *entity.Invoice, po *entity.PurchaseOrder, c Classification, autoApproved, requiresReview bool) *entity.MatchResult {
	now := time.Now().UTC()
	result := &entity.MatchResult{
		ID:                       uuid.New(),
		TenantID:                 e.tenantID,
		InvoiceID:                invoice.ID,
		PurchaseOrderID:          &po.ID,
		MatchType:                entity.MatchTypeFuzzy,
		ConfidenceScore:          decimal.NewFromFloat(c.Confidence),
		AutoApproved:             autoApproved,
		RequiresReview:           requiresReview,
		MatchedAt:                now,
		MatchedBy:                entity.MatchedBySystem,
		MatchingAlgorithmVersion: AlgorithmVersion,
		AmountVariance:           decimal.NewFromFloat(variance(invoice.TotalAmount.Decimal, po.TotalAmount.Decimal)),
		CriteriaMet: map[string]any{
			"class":     string(c.Class),
			"match_pct": c.MatchPct,
			"tol_pct":   c.TolPct,
		},
	}
	if autoApproved {
		result.MatchStatus = entity.MatchStatusApproved
		result.ApprovedAt = &now
	} else {
		result.MatchStatus = entity.MatchStatusPending
	}
	return result
}
