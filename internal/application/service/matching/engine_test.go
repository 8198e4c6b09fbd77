package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/audit"
	"github.com/invoicereconcile/core/internal/application/service/tenantconfig"
	"github.com/invoicereconcile/core/internal/domain/entity"
	"github.com/invoicereconcile/core/internal/domain/money"
)

type memInvoices struct {
	byID map[uuid.UUID]*entity.Invoice
}

func (m memInvoices) Create(ctx context.Context, i *entity.Invoice) error { return nil }
func (m memInvoices) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error) {
	return m.byID[id], nil
}
func (m memInvoices) ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error) {
	return nil, nil
}
func (m memInvoices) CreateLine(ctx context.Context, line *entity.InvoiceLine) error { return nil }
func (m memInvoices) ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error) {
	return false, nil
}

type memPOs struct {
	byNumber    map[string][]*entity.PurchaseOrder
	byDateRange []*entity.PurchaseOrder
}

func (m memPOs) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.PurchaseOrder, error) {
	return nil, nil
}
func (m memPOs) FindByNumberAndVendor(ctx context.Context, tenantID, vendorID uuid.UUID, poNumber string) ([]*entity.PurchaseOrder, error) {
	return m.byNumber[poNumber], nil
}
func (m memPOs) FindCandidates(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time) ([]*entity.PurchaseOrder, error) {
	return m.byDateRange, nil
}
func (m memPOs) FindCandidatesByAmountRange(ctx context.Context, tenantID, vendorID uuid.UUID, dateFrom, dateTo time.Time, amountLow, amountHigh float64) ([]*entity.PurchaseOrder, error) {
	return m.byDateRange, nil
}
func (m memPOs) ListLines(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) ([]*entity.PurchaseOrderLine, error) {
	return nil, nil
}

type memVendors struct {
	byID map[uuid.UUID]*entity.Vendor
}

func (m memVendors) Create(ctx context.Context, v *entity.Vendor) error { return nil }
func (m memVendors) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Vendor, error) {
	return m.byID[id], nil
}
func (m memVendors) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.Vendor, error) {
	return nil, nil
}
func (m memVendors) GetByNameExact(ctx context.Context, tenantID uuid.UUID, name string) (*entity.Vendor, error) {
	return nil, nil
}
func (m memVendors) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	out := make([]*entity.Vendor, 0, len(m.byID))
	for _, v := range m.byID {
		out = append(out, v)
	}
	return out, nil
}
func (m memVendors) AddAlias(ctx context.Context, alias *entity.VendorAlias) error { return nil }
func (m memVendors) GetByAlias(ctx context.Context, tenantID uuid.UUID, alias string) (*entity.Vendor, error) {
	return nil, nil
}

type memResults struct {
	created []*entity.MatchResult
	byID    map[uuid.UUID]*entity.MatchResult
}

func (m *memResults) Create(ctx context.Context, r *entity.MatchResult) error {
	m.created = append(m.created, r)
	if m.byID == nil {
		m.byID = make(map[uuid.UUID]*entity.MatchResult)
	}
	m.byID[r.ID] = r
	return nil
}
func (m *memResults) Update(ctx context.Context, r *entity.MatchResult) error {
	m.byID[r.ID] = r
	return nil
}
func (m *memResults) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.MatchResult, error) {
	return m.byID[id], nil
}
func (m *memResults) GetLatestForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*entity.MatchResult, error) {
	return nil, nil
}

type memAuditRepo struct {
	events []entity.AuditEvent
}

func (m *memAuditRepo) Append(ctx context.Context, e *entity.AuditEvent) error {
	m.events = append(m.events, *e)
	return nil
}
func (m *memAuditRepo) GetLatestHash(ctx context.Context, tenantID, matchResultID uuid.UUID) (string, error) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].MatchResultID == matchResultID {
			return m.events[i].EventHash, nil
		}
	}
	return "", nil
}
func (m *memAuditRepo) ListForMatchResult(ctx context.Context, tenantID, matchResultID uuid.UUID) ([]entity.AuditEvent, error) {
	var out []entity.AuditEvent
	for _, e := range m.events {
		if e.MatchResultID == matchResultID {
			out = append(out, e)
		}
	}
	return out, nil
}

type noopTxManager struct{}

func (noopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (noopTxManager) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ port.InvoiceRepository       = memInvoices{}
	_ port.PurchaseOrderRepository = memPOs{}
	_ port.VendorRepository        = memVendors{}
	_ port.MatchResultRepository   = &memResults{}
	_ port.AuditEventRepository    = &memAuditRepo{}
	_ port.TransactionManager      = noopTxManager{}
)

func newTestEngine(t *testing.T, invoices memInvoices, pos memPOs, vendors memVendors) (*Engine, *memResults) {
	t.Helper()
	results := &memResults{}
	auditRepo := &memAuditRepo{}
	tenantID := uuid.New()
	e := NewEngine(tenantID, Deps{
		Invoices: invoices,
		POs:      pos,
		Vendors:  vendors,
		Results:  results,
		TxManager: noopTxManager{},
		AuditLog: audit.NewLog(auditRepo),
	})
	cfg := tenantconfigDefault(tenantID)
	require.NoError(t, e.Initialize(context.Background(), cfg))
	return e, results
}

func tenantconfigDefault(tenantID uuid.UUID) *entity.MatchingConfiguration {
	loader := tenantconfig.NewLoader(nil)
	cfg, _ := loader.Load(context.Background(), tenantID)
	return cfg
}

func TestMatchOneExact(t *testing.T) {
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()

	invoice := &entity.Invoice{
		ID:          invoiceID,
		VendorID:    vendorID,
		POReference: "PO-1001",
		TotalAmount: mustAmount(t, "500.00"),
		InvoiceDate: time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	po := &entity.PurchaseOrder{
		ID:          poID,
		VendorID:    vendorID,
		PONumber:    "PO-1001",
		TotalAmount: mustAmount(t, "500.00"),
		PODate:      time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}

	invoices := memInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}}
	pos := memPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-1001": {po}}}
	vendors := memVendors{byID: map[uuid.UUID]*entity.Vendor{vendorID: {ID: vendorID, Name: "Acme Corp"}}}

	engine, results := newTestEngine(t, invoices, pos, vendors)

	decision, err := engine.MatchOne(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, entity.MatchTypeExact, decision.MatchType)
	assert.True(t, decision.Confidence.Equal(decimal.NewFromInt(1)))
	assert.True(t, decision.AutoApproved)
	assert.Len(t, results.created, 1)
}

func TestMatchOneFuzzyWithinToleranceAutoApproves(t *testing.T) {
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()
	now := time.Now().UTC()

	invoice := &entity.Invoice{
		ID:          invoiceID,
		VendorID:    vendorID,
		POReference: "PO-9999",
		TotalAmount: mustAmount(t, "500.00"),
		InvoiceDate: now,
		Status:      entity.DocumentStatusProcessing,
	}
	po := &entity.PurchaseOrder{
		ID:          poID,
		VendorID:    vendorID,
		PONumber:    "PO-9999",
		TotalAmount: mustAmount(t, "501.00"),
		PODate:      now.Add(-24 * time.Hour),
		Status:      entity.DocumentStatusProcessing,
	}

	invoices := memInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}}
	pos := memPOs{
		byNumber:    map[string][]*entity.PurchaseOrder{},
		byDateRange: []*entity.PurchaseOrder{po},
	}
	vendor := &entity.Vendor{ID: vendorID, Name: "Acme Corp"}
	vendors := memVendors{byID: map[uuid.UUID]*entity.Vendor{vendorID: vendor}}

	engine, results := newTestEngine(t, invoices, pos, vendors)

	decision, err := engine.MatchOne(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, entity.MatchTypeFuzzy, decision.MatchType)
	assert.True(t, decision.AutoApproved)
	assert.Len(t, results.created, 1)
}

func TestMatchOneNoCandidatesReturnsUnmatched(t *testing.T) {
	vendorID := uuid.New()
	invoiceID := uuid.New()

	invoice := &entity.Invoice{
		ID:          invoiceID,
		VendorID:    vendorID,
		POReference: "PO-ORPHAN",
		TotalAmount: mustAmount(t, "500.00"),
		InvoiceDate: time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	invoices := memInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}}
	pos := memPOs{byNumber: map[string][]*entity.PurchaseOrder{}}
	vendors := memVendors{byID: map[uuid.UUID]*entity.Vendor{vendorID: {ID: vendorID, Name: "Acme Corp"}}}

	engine, results := newTestEngine(t, invoices, pos, vendors)

	decision, err := engine.MatchOne(context.Background(), invoiceID)
	require.NoError(t, err)
	assert.False(t, decision.Matched)
	assert.Empty(t, results.created)
}

func TestMatchBatchSequential(t *testing.T) {
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()

	invoice := &entity.Invoice{
		ID:          invoiceID,
		VendorID:    vendorID,
		POReference: "PO-2002",
		TotalAmount: mustAmount(t, "100.00"),
		InvoiceDate: time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	po := &entity.PurchaseOrder{
		ID:          poID,
		VendorID:    vendorID,
		PONumber:    "PO-2002",
		TotalAmount: mustAmount(t, "100.00"),
		PODate:      time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	invoices := memInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}}
	pos := memPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-2002": {po}}}
	vendors := memVendors{byID: map[uuid.UUID]*entity.Vendor{vendorID: {ID: vendorID, Name: "Acme Corp"}}}

	engine, _ := newTestEngine(t, invoices, pos, vendors)

	metrics := engine.MatchBatch(context.Background(), []uuid.UUID{invoiceID}, false)
	assert.Equal(t, 1, metrics.TotalInvoices)
	assert.Equal(t, 1, metrics.ExactMatches)
	assert.Equal(t, 0, metrics.Errors)
}

func TestUserFeedbackApprove(t *testing.T) {
	vendorID := uuid.New()
	invoiceID := uuid.New()
	poID := uuid.New()

	invoice := &entity.Invoice{
		ID:          invoiceID,
		VendorID:    vendorID,
		POReference: "PO-3003",
		TotalAmount: mustAmount(t, "250.00"),
		InvoiceDate: time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	po := &entity.PurchaseOrder{
		ID:          poID,
		VendorID:    vendorID,
		PONumber:    "PO-3003",
		TotalAmount: mustAmount(t, "250.00"),
		PODate:      time.Now().UTC(),
		Status:      entity.DocumentStatusProcessing,
	}
	invoices := memInvoices{byID: map[uuid.UUID]*entity.Invoice{invoiceID: invoice}}
	pos := memPOs{byNumber: map[string][]*entity.PurchaseOrder{"PO-3003": {po}}}
	vendors := memVendors{byID: map[uuid.UUID]*entity.Vendor{vendorID: {ID: vendorID, Name: "Acme Corp"}}}

	engine, results := newTestEngine(t, invoices, pos, vendors)
	decision, err := engine.MatchOne(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, decision.Matched)

	userID := uuid.New()
	err = engine.UserFeedback(context.Background(), decision.Result.ID, FeedbackApprove, entity.Actor{UserID: &userID}, "looks right")
	require.NoError(t, err)

	stored := results.byID[decision.Result.ID]
	assert.Equal(t, entity.MatchStatusApproved, stored.MatchStatus)
	assert.Equal(t, entity.MatchedByUser, stored.MatchedBy)
	assert.NotNil(t, stored.ReviewedAt)
}

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	amt, err := money.ParseAmount(s)
	require.NoError(t, err)
	return amt
}
