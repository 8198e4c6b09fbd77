package entity

import (
	"time"

	"github.com/google/uuid"
)

// ImportBatch tracks one CSV ingestion job end to end.
type ImportBatch struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Filename            string
	OriginalFilename    string
	FileSize            int64
	FileHash            string
	MimeType            string
	StoragePath         string
	Status              ImportBatchStatus
	ProcessingStage     string
	ProgressPercentage  int
	TotalRecords        int
	ProcessedRecords    int
	SuccessfulRecords   int
	ErrorRecords        int
	DuplicateRecords    int
	CSVDelimiter        string
	CSVEncoding         string
	HasHeader           bool
	ColumnMapping       map[string]string
	ColumnTypeGuesses   map[string]string
	PotentialMapping    map[string]string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	PreviewData         []map[string]any
	ProcessingSummary   map[string]any
	ErrorSummary        map[string]any
	CreatedBy           uuid.UUID
}

// ImportError is a per-row ingestion diagnostic.
type ImportError struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	ImportBatchID    uuid.UUID
	RowNumber        int
	ColumnName       string
	ColumnIndex      int
	ErrorType        ImportErrorType
	ErrorCode        string
	ErrorMessage     string
	Severity         Severity
	RawValue         string
	ExpectedFormat   string
	SuggestedFix     string
	RawRowData       map[string]any
	Resolved         bool
	ResolutionNotes  string
	ResolvedAt       *time.Time
}
