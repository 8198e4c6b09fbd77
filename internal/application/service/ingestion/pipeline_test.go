package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicereconcile/core/internal/application/port"
	"github.com/invoicereconcile/core/internal/application/service/progress"
	"github.com/invoicereconcile/core/internal/domain/entity"
)

type pVendors struct {
	byName  map[string]*entity.Vendor
	byCode  map[string]*entity.Vendor
	active  []*entity.Vendor
	created []*entity.Vendor
	aliases []*entity.VendorAlias
}

func (v *pVendors) Create(ctx context.Context, vendor *entity.Vendor) error {
	if v.byCode == nil {
		v.byCode = map[string]*entity.Vendor{}
	}
	v.byCode[vendor.VendorCode] = vendor
	v.created = append(v.created, vendor)
	return nil
}
func (v *pVendors) GetByID(ctx context.Context, tenantID, vendorID uuid.UUID) (*entity.Vendor, error) {
	return nil, nil
}
func (v *pVendors) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.Vendor, error) {
	return v.byCode[code], nil
}
func (v *pVendors) GetByNameExact(ctx context.Context, tenantID uuid.UUID, name string) (*entity.Vendor, error) {
	return v.byName[name], nil
}
func (v *pVendors) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	return v.active, nil
}
func (v *pVendors) AddAlias(ctx context.Context, alias *entity.VendorAlias) error {
	v.aliases = append(v.aliases, alias)
	return nil
}
func (v *pVendors) GetByAlias(ctx context.Context, tenantID uuid.UUID, alias string) (*entity.Vendor, error) {
	return nil, nil
}

type pInvoices struct {
	created []*entity.Invoice
	lines   []*entity.InvoiceLine
	exists  map[string]bool
}

func (p *pInvoices) Create(ctx context.Context, invoice *entity.Invoice) error {
	p.created = append(p.created, invoice)
	return nil
}
func (p *pInvoices) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Invoice, error) {
	return nil, nil
}
func (p *pInvoices) ListLines(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]*entity.InvoiceLine, error) {
	return nil, nil
}
func (p *pInvoices) CreateLine(ctx context.Context, line *entity.InvoiceLine) error {
	p.lines = append(p.lines, line)
	return nil
}
func (p *pInvoices) ExistsByVendorAndNumber(ctx context.Context, tenantID, vendorID uuid.UUID, invoiceNumber string) (bool, error) {
	return p.exists[vendorID.String()+"\x00"+invoiceNumber], nil
}

type pBatches struct {
	errs []*entity.ImportError
}

func (b *pBatches) Create(ctx context.Context, batch *entity.ImportBatch) error { return nil }
func (b *pBatches) Update(ctx context.Context, batch *entity.ImportBatch) error { return nil }
func (b *pBatches) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.ImportBatch, error) {
	return nil, nil
}
func (b *pBatches) AppendError(ctx context.Context, impErr *entity.ImportError) error {
	b.errs = append(b.errs, impErr)
	return nil
}

type pTxManager struct{}

func (pTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (pTxManager) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type pCache struct {
	data map[string][]byte
}

func newPCache() *pCache { return &pCache{data: map[string][]byte{}} }

func (c *pCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}
func (c *pCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}
func (c *pCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

var (
	_ port.VendorRepository     = &pVendors{}
	_ port.InvoiceRepository    = &pInvoices{}
	_ port.ImportBatchRepository = &pBatches{}
	_ port.TransactionManager   = pTxManager{}
	_ port.Cache                = &pCache{}
)

func newTestPipeline(vendors *pVendors, invoices *pInvoices, batches *pBatches, reg *progress.Registry) *Pipeline {
	tenantID := uuid.New()
	return NewPipeline(tenantID, Deps{
		Batches:   batches,
		Vendors:   vendors,
		Invoices:  invoices,
		TxManager: pTxManager{},
		Progress:  reg,
	})
}

func TestPipelineRunHappyPath(t *testing.T) {
	vendors := &pVendors{byName: map[string]*entity.Vendor{}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	p := newTestPipeline(vendors, invoices, batches, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	headers := []string{"Invoice Number", "Vendor Name", "Total Amount", "Invoice Date"}
	mapping := map[string]string{
		"Invoice Number": "invoice_number",
		"Vendor Name":    "vendor",
		"Total Amount":   "amount",
		"Invoice Date":   "invoice_date",
	}
	rows := [][]string{
		{"INV-001", "Acme Supplies LLC", "150.00", "2026-01-15"},
	}

	result, err := p.Run(context.Background(), batch, headers, mapping, rows, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulRecords)
	assert.Equal(t, 0, result.ErrorRecords)
	assert.Equal(t, entity.ImportBatchCompleted, result.FinalStatus)
	require.Len(t, invoices.created, 1)
	assert.Equal(t, "INV-001", invoices.created[0].InvoiceNumber)
	require.Len(t, vendors.created, 1)
	assert.Equal(t, "ACME SUPPLIES", vendors.created[0].Name)
}

func TestPipelineRunLearnsVendorAlias(t *testing.T) {
	existingVendor := &entity.Vendor{ID: uuid.New(), Name: "GLOBAL INDUSTRIAL SUPPLY DISTRIBUTION SERVICES HOLDINGS", VendorCode: "GIS001", Active: true}
	vendors := &pVendors{byName: map[string]*entity.Vendor{}, active: []*entity.Vendor{existingVendor}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	p := newTestPipeline(vendors, invoices, batches, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	headers := []string{"Invoice Number", "Vendor Name", "Total Amount", "Invoice Date"}
	mapping := map[string]string{
		"Invoice Number": "invoice_number",
		"Vendor Name":    "vendor",
		"Total Amount":   "amount",
		"Invoice Date":   "invoice_date",
	}
	// Missing the trailing "S" is a single-character edit against a long
	// name, well above the learning threshold, but not an exact match.
	rows := [][]string{
		{"INV-002", "Global Industrial Supply Distribution Services Holding", "200.00", "2026-01-16"},
	}

	result, err := p.Run(context.Background(), batch, headers, mapping, rows, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulRecords)
	assert.Empty(t, vendors.created, "no new vendor should be created for a high-confidence alias")
	require.Len(t, vendors.aliases, 1)
	assert.Equal(t, existingVendor.ID, vendors.aliases[0].VendorID)
	assert.Equal(t, entity.VendorAliasSourceLearning, vendors.aliases[0].Source)
	require.Len(t, invoices.created, 1)
	assert.Equal(t, existingVendor.ID, invoices.created[0].VendorID)
}

func TestPipelineRunDuplicateInBatch(t *testing.T) {
	vendors := &pVendors{byName: map[string]*entity.Vendor{}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	p := newTestPipeline(vendors, invoices, batches, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	headers := []string{"invoice_number", "vendor", "amount", "invoice_date"}
	mapping := map[string]string{
		"invoice_number": "invoice_number",
		"vendor":         "vendor",
		"amount":         "amount",
		"invoice_date":   "invoice_date",
	}
	rows := [][]string{
		{"INV-900", "Widgets Inc", "50.00", "2026-02-01"},
		{"INV-900", "Widgets Inc", "50.00", "2026-02-01"},
	}

	result, err := p.Run(context.Background(), batch, headers, mapping, rows, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulRecords)
	assert.Equal(t, 1, result.DuplicateRecords)
	assert.Equal(t, entity.ImportBatchCompleted, result.FinalStatus)
	var sawDuplicate bool
	for _, e := range batches.errs {
		if e.ErrorCode == "DUPLICATE_IN_BATCH" {
			sawDuplicate = true
		}
	}
	assert.True(t, sawDuplicate)
}

func TestPipelineRunMissingRequiredFieldIsError(t *testing.T) {
	vendors := &pVendors{byName: map[string]*entity.Vendor{}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	p := newTestPipeline(vendors, invoices, batches, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	headers := []string{"invoice_number", "vendor", "amount", "invoice_date"}
	mapping := map[string]string{
		"invoice_number": "invoice_number",
		"vendor":         "vendor",
		"amount":         "amount",
		"invoice_date":   "invoice_date",
	}
	rows := [][]string{
		{"", "Widgets Inc", "50.00", "2026-02-01"},
	}

	result, err := p.Run(context.Background(), batch, headers, mapping, rows, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessfulRecords)
	assert.Equal(t, 1, result.ErrorRecords)
	assert.Equal(t, entity.ImportBatchFailed, result.FinalStatus)
}

func TestPipelineRunCancellation(t *testing.T) {
	vendors := &pVendors{byName: map[string]*entity.Vendor{}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	cache := newPCache()
	reg := progress.NewRegistry(cache, nil, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	require.NoError(t, reg.RequestCancellation(context.Background(), batch.ID.String()))

	p := newTestPipeline(vendors, invoices, batches, reg)

	headers := []string{"invoice_number", "vendor", "amount", "invoice_date"}
	mapping := map[string]string{
		"invoice_number": "invoice_number",
		"vendor":         "vendor",
		"amount":         "amount",
		"invoice_date":   "invoice_date",
	}
	rows := make([][]string, 60)
	for i := range rows {
		rows[i] = []string{uuid.New().String(), "Cancel Co", "10.00", "2026-02-01"}
	}

	result, err := p.Run(context.Background(), batch, headers, mapping, rows, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, entity.ImportBatchCancelled, result.FinalStatus)
	assert.Less(t, result.SuccessfulRecords, 60)
}

func TestPipelineRunRejectsIncompleteMapping(t *testing.T) {
	vendors := &pVendors{byName: map[string]*entity.Vendor{}}
	invoices := &pInvoices{exists: map[string]bool{}}
	batches := &pBatches{}
	p := newTestPipeline(vendors, invoices, batches, nil)

	batch := &entity.ImportBatch{ID: uuid.New()}
	headers := []string{"invoice_number", "amount"}
	mapping := map[string]string{"invoice_number": "invoice_number", "amount": "amount"}

	_, err := p.Run(context.Background(), batch, headers, mapping, nil, uuid.New())
	assert.Error(t, err)
}
