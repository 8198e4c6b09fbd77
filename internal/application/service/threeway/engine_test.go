package threeway

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/audit"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
)

type tInvoices struct {
	byID  map[uuid.UUID]*entity.Invoice
	lines map[uuid.UUID][]*entity.InvoiceLine
}

func (t tInvoices) Create(ctx context.Context, i *entity.Invoice) error { return nil }
func (t tInvoices) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error) {
	return t.byID[id], nil
}
func (t tInvoices) ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error) {
	return t.lines[invoiceID], nil
}
func (t tInvoices) CreateLine(ctx context.Context, line *entity.InvoiceLine) error { return nil }
func (t tInvoices) ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error) {
	return false, nil
}

type tPOs struct {
	byNumber map[string][]*entity.PurchaseOrder
	lines    map[uuid.UUID][]*entity.PurchaseOrderLine
}

func (t tPOs) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.PurchaseOrder, error) {
	return nil, nil
}
func (t tPOs) FindByNumberAndVendor(ctx context.Context, tenantID, vendorID uuid.UUID, poNumber string) ([]*entity.PurchaseOrder, error) {
	return t.byNumber[poNumber], nil
}
func (t tPOs) FindCandidates(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.PurchaseOrder, error) {
	return nil, nil
}
func (t tPOs) FindCandidatesByAmountRange(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time, amountLow, amountHigh float64) ([]*entity.PurchaseOrder, error) {
	return nil, nil
}
func (t tPOs) ListLines(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) ([]*entity.PurchaseOrderLine, error) {
	return t.lines[purchaseOrderID], nil
}

type tReceipts struct {
	byPO  map[uuid.UUID][]*entity.Receipt
	lines map[uuid.UUID][]*entity.ReceiptLine
}

func (t tReceipts) FindByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.Receipt, error) {
	return t.byPO[purchaseOrderID], nil
}
func (t tReceipts) ListLines(ctx context.Context, tenantID, receiptID uuid.UUID) ([]*entity.ReceiptLine, error) {
	return t.lines[receiptID], nil
}

type tResults struct {
	created []*entity.MatchResult
}

func (t *tResults) Create(ctx context.Context, r *entity.MatchResult) error {
	t.created = append(t.created, r)
	return nil
}
func (t *tResults) Update(ctx context.Context, r *entity.MatchResult) error { return nil }
func (t *tResults) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.MatchResult, error) {
	return nil, nil
}
func (t *tResults) GetLatestForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*entity.MatchResult, error) {
	return nil, nil
}

type tAuditRepo struct {
	events []entity.AuditEvent
}

func (a *tAuditRepo) Append(ctx context.Context, e *entity.AuditEvent) error {
	a.events = append(a.events, *e)
	return nil
}
func (a *tAuditRepo) GetLatestHash(ctx context.Context, tenantID, matchResultID uuid.UUID) (string, error) {
	return "", nil
}
func (a *tAuditRepo) ListForMatchResult(ctx context.Context, tenantID, matchResultID uuid.UUID) ([]entity.AuditEvent, error) {
	return nil, nil
}

type tTxManager struct{}

func (tTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (tTxManager) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ port.InvoiceRepository       = tInvoices{}
	_ port.PurchaseOrderRepository = tPOs{}
	_ port.ReceiptRepository       = tReceipts{}
	_ port.MatchResultRepository   = &tResults{}
	_ port.TransactionManager      = tTxManager{}
)

func mustAmt(t *testing.T, s string) money.Amount {
	t.Helper()
	amt, err := money.ParseAmount(s)
	require.NoError(t, err)
	return amt
}

func mustQty(s string) money.Quantity {
	d, _ := money.ParseAmount(s)
	return money.NewQuantity(d.Decimal)
}

func TestPerformPerfectMatch(t *testing.T) {
	tenantID := uuid.New()
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()
	receiptID := uuid.New()
	poLineID := uuid.New()
	invoiceLineID := uuid.New()
	receiptLineID := uuid.New()
	now := time.Now().UTC()

	invoice := &entity.Invoice{
		ID: invoiceID, TenantID: tenantID, VendorID: vendorID,
		POReference: "PO-500", TotalAmount: mustAmt(t, "100.00"), InvoiceDate: now,
	}
	invoiceLines := []*entity.InvoiceLine{
		{ID: invoiceLineID, InvoiceID: invoiceID, ItemCode: "SKU-1", Description: "widget kit", Quantity: mustQty("10"), UnitPrice: mustQty("10.00"), LineTotal: mustAmt(t, "100.00")},
	}
	po := &entity.PurchaseOrder{ID: poID, TenantID: tenantID, VendorID: vendorID, PONumber: "PO-500", TotalAmount: mustAmt(t, "100.00"), PODate: now}
	poLines := []*entity.PurchaseOrderLine{
		{ID: poLineID, PurchaseOrderID: poID, ItemCode: "SKU-1", Description: "widget kit", Quantity: mustQty("10"), UnitPrice: mustQty("10.00"), LineTotal: mustAmt(t, "100.00")},
	}
	receipt := &entity.Receipt{ID: receiptID, PurchaseOrderID: poID, ReceiptDate: now}
	receiptLines := []*entity.ReceiptLine{
		{ID: receiptLineID, ReceiptID: receiptID, POLineID: poLineID, QuantityReceived: mustQty("10"), LineValue: mustAmt(t, "100.00")},
	}

	invoices := tInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}, lines: map[uuid.UUID][]*entity.InvoiceLine{invoiceID: invoiceLines}}
	pos := tPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-500": {po}}, lines: map[uuid.UUID][]*entity.PurchaseOrderLine{poID: poLines}}
	receipts := tReceipts{byPO: map[uuid.UUID][]*entity.Receipt{poID: {receipt}}, lines: map[uuid.UUID][]*entity.ReceiptLine{receiptID: receiptLines}}
	results := &tResults{}
	auditRepo := &tAuditRepo{}

	engine := NewEngine(tenantID, Deps{
		Invoices: invoices, POs: pos, Receipts: receipts, Results: results,
		TxManager: tTxManager{}, AuditLog: audit.NewLog(auditRepo),
	}, 0.85, 0.70)

	decision, err := engine.Perform(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, decision.Matched)
	assert.Equal(t, ClassPerfectMatch, decision.Classification.Class)
	assert.True(t, decision.AutoApproved)
	assert.Len(t, results.created, 1)
}

func TestPerformNoMatchingPO(t *testing.T) {
	tenantID := uuid.New()
	vendorID := uuid.New()
	invoiceID := uuid.New()

	invoice := &entity.Invoice{ID: invoiceID, TenantID: tenantID, VendorID: vendorID, POReference: "PO-NONE", TotalAmount: mustAmt(t, "100.00"), InvoiceDate: time.Now().UTC()}
	invoices := tInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}, lines: map[uuid.UUID][]*entity.InvoiceLine{}}
	pos := tPOs{byNumber: map[string][]*entity.PurchaseOrder{}}
	receipts := tReceipts{}
	results := &tResults{}
	auditRepo := &tAuditRepo{}

	engine := NewEngine(tenantID, Deps{
		Invoices: invoices, POs: pos, Receipts: receipts, Results: results,
		TxManager: tTxManager{}, AuditLog: audit.NewLog(auditRepo),
	}, 0.85, 0.70)

	decision, err := engine.Perform(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
	assert.Empty(t, results.created)
}

func TestPerformPartialReceipt(t *testing.T) {
	tenantID := uuid.New()
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()
	poLineID := uuid.New()
	invoiceLineID := uuid.New()
	now := time.Now().UTC()

	invoice := &entity.Invoice{ID: invoiceID, TenantID: tenantID, VendorID: vendorID, POReference: "PO-700", TotalAmount: mustAmt(t, "100.00"), InvoiceDate: now}
	invoiceLines := []*entity.InvoiceLine{
		{ID: invoiceLineID, InvoiceID: invoiceID, ItemCode: "SKU-2", Description: "gadget", Quantity: mustQty("10"), UnitPrice: mustQty("10.00"), LineTotal: mustAmt(t, "100.00")},
	}
	po := &entity.PurchaseOrder{ID: poID, TenantID: tenantID, VendorID: vendorID, PONumber: "PO-700", TotalAmount: mustAmt(t, "100.00"), PODate: now}
	poLines := []*entity.PurchaseOrderLine{
		{ID: poLineID, PurchaseOrderID: poID, ItemCode: "SKU-2", Description: "gadget", Quantity: mustQty("10"), UnitPrice: mustQty("10.00"), LineTotal: mustAmt(t, "100.00")},
	}

	receiptID := uuid.New()
	receiptLineID := uuid.New()
	receipt := &entity.Receipt{ID: receiptID, PurchaseOrderID: poID, ReceiptDate: now}
	receiptLines := []*entity.ReceiptLine{
		{ID: receiptLineID, ReceiptID: receiptID, POLineID: poLineID, QuantityReceived: mustQty("5"), LineValue: mustAmt(t, "50.00")},
	}

	invoices := tInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}, lines: map[uuid.UUID][]*entity.InvoiceLine{invoiceID: invoiceLines}}
	pos := tPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-700": {po}}, lines: map[uuid.UUID][]*entity.PurchaseOrderLine{poID: poLines}}
	receipts := tReceipts{byPO: map[uuid.UUID][]*entity.Receipt{poID: {receipt}}, lines: map[uuid.UUID][]*entity.ReceiptLine{receiptID: receiptLines}}
	results := &tResults{}
	auditRepo := &tAuditRepo{}

	engine := NewEngine(tenantID, Deps{
		Invoices: invoices, POs: pos, Receipts: receipts, Results: results,
		TxManager: tTxManager{}, AuditLog: audit.NewLog(auditRepo),
	}, 0.85, 0.70)

	decision, err := engine.Perform(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, decision.Matched)
	assert.Equal(t, ClassPartialReceipt, decision.Classification.Class)
	assert.False(t, decision.AutoApproved)
}

func TestPerformZeroLineInvoiceNeverAutoApproves(t *testing.T) {
	tenantID := uuid.New()
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()
	now := time.Now().UTC()

	invoice := &entity.Invoice{ID: invoiceID, TenantID: tenantID, VendorID: vendorID, POReference: "PO-900", TotalAmount: mustAmt(t, "100.00"), InvoiceDate: now}
	po := &entity.PurchaseOrder{ID: poID, TenantID: tenantID, VendorID: vendorID, PONumber: "PO-900", TotalAmount: mustAmt(t, "100.00"), PODate: now}

	invoices := tInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}, lines: map[uuid.UUID][]*entity.InvoiceLine{}}
	pos := tPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-900": {po}}, lines: map[uuid.UUID][]*entity.PurchaseOrderLine{}}
	receipts := tReceipts{}
	results := &tResults{}
	auditRepo := &tAuditRepo{}

	engine := NewEngine(tenantID, Deps{
		Invoices: invoices, POs: pos, Receipts: receipts, Results: results,
		TxManager: tTxManager{}, AuditLog: audit.NewLog(auditRepo),
	}, 0.85, 0.70)

	decision, err := engine.Perform(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, decision.Matched)
	assert.Equal(t, ClassPerfectMatch, decision.Classification.Class)
	assert.Equal(t, 0.0, decision.Classification.Confidence)
	assert.False(t, decision.AutoApproved)
	assert.False(t, decision.RequiresReview)
}
