package entity

// DocumentStatus is the lifecycle status shared by PO, invoice and receipt
// headers.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusMatched    DocumentStatus = "matched"
	DocumentStatusUnmatched  DocumentStatus = "unmatched"
	DocumentStatusException  DocumentStatus = "exception"
	DocumentStatusArchived   DocumentStatus = "archived"
)

// MatchType classifies how a MatchResult was produced.
type MatchType string

const (
	MatchTypeExact   MatchType = "exact"
	MatchTypeFuzzy   MatchType = "fuzzy"
	MatchTypeManual  MatchType = "manual"
	MatchTypePartial MatchType = "partial"
)

// MatchStatus is the review state of a MatchResult.
type MatchStatus string

const (
	MatchStatusPending       MatchStatus = "pending"
	MatchStatusApproved      MatchStatus = "approved"
	MatchStatusRejected      MatchStatus = "rejected"
	MatchStatusManualReview  MatchStatus = "manual_review"
)

// MatchedBy records the originator of a match decision.
type MatchedBy string

const (
	MatchedBySystem MatchedBy = "system"
	MatchedByUser   MatchedBy = "user"
)

// EventType is the closed set of audit event kinds.
type EventType string

const (
	EventTypeMatchCreated      EventType = "match_created"
	EventTypeMatchUpdated      EventType = "match_updated"
	EventTypeStatusChanged     EventType = "status_changed"
	EventTypeConfidenceUpdated EventType = "confidence_updated"
	EventTypeManualReview      EventType = "manual_review"
	EventTypeApprovalGranted   EventType = "approval_granted"
	EventTypeApprovalDenied    EventType = "approval_denied"
	EventTypeToleranceApplied  EventType = "tolerance_applied"
	EventTypeExceptionCreated  EventType = "exception_created"
	EventTypeUserFeedback      EventType = "user_feedback"
)

// ToleranceType names the dimension a MatchingTolerance rule governs.
type ToleranceType string

const (
	ToleranceTypePrice    ToleranceType = "price"
	ToleranceTypeQuantity ToleranceType = "quantity"
	ToleranceTypeDate     ToleranceType = "date"
)

// CurrencyCode is the closed currency enumeration. Matching never converts
// between currencies. The matching engines compare amounts without checking
// that the invoice and purchase order carry the same currency code.
type CurrencyCode string

const (
	CurrencyUSD CurrencyCode = "USD"
	CurrencyEUR CurrencyCode = "EUR"
	CurrencyGBP CurrencyCode = "GBP"
	CurrencyCAD CurrencyCode = "CAD"
	CurrencyAUD CurrencyCode = "AUD"
)

// ReceiptLineCondition describes the physical condition goods arrived in.
type ReceiptLineCondition string

const (
	ReceiptConditionGood     ReceiptLineCondition = "good"
	ReceiptConditionDamaged  ReceiptLineCondition = "damaged"
	ReceiptConditionRejected ReceiptLineCondition = "rejected"
)

// VendorAliasSource records how an alias was proposed.
type VendorAliasSource string

const (
	VendorAliasSourceManual   VendorAliasSource = "manual"
	VendorAliasSourceOCR      VendorAliasSource = "ocr"
	VendorAliasSourceLearning VendorAliasSource = "learning"
)

// ImportBatchStatus is the lifecycle of a CSV ingestion job.
type ImportBatchStatus string

const (
	ImportBatchPending    ImportBatchStatus = "pending"
	ImportBatchUploading  ImportBatchStatus = "uploading"
	ImportBatchValidating ImportBatchStatus = "validating"
	ImportBatchProcessing ImportBatchStatus = "processing"
	ImportBatchCompleted  ImportBatchStatus = "completed"
	ImportBatchFailed     ImportBatchStatus = "failed"
	ImportBatchCancelled  ImportBatchStatus = "cancelled"
)

// ImportErrorType classifies a per-row ingestion diagnostic.
type ImportErrorType string

const (
	ImportErrorValidation   ImportErrorType = "validation"
	ImportErrorParsing      ImportErrorType = "parsing"
	ImportErrorBusinessRule ImportErrorType = "business_rule"
	ImportErrorDuplicate    ImportErrorType = "duplicate"
	ImportErrorSystem       ImportErrorType = "system"
)

// Severity distinguishes blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)
