package ingest

// Kind discriminates ingestion run outcomes.
type Kind string

const (
	KindDryRun        Kind = "dry_run"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindSuccess       Kind = "success"
	KindFailure       Kind = "failure"
)

// Report is the outcome of one ingestion call. Exactly one concrete report
// type exists per outcome; callers switch on Kind.
type Report interface {
	Kind() Kind
}

// DryRunReport is the cost estimate returned when no ingestion is performed.
type DryRunReport struct {
	Message             string `json:"message"`
	EstimatedTokenCount int64  `json:"estimatedTokenCount"`
	AvailableTokens     int64  `json:"availableTokens"`
	TotalFiles          int    `json:"totalFiles"`
	TotalLines          int    `json:"totalLines"`
}

func (DryRunReport) Kind() Kind { return KindDryRun }

// QuotaExceededReport is returned when the normalized cost exceeds the
// caller's available quota. It is an outcome, not an error: nothing was
// debited or persisted.
type QuotaExceededReport struct {
	Message         string `json:"message"`
	RequiredTokens  int64  `json:"requiredTokens"`
	AvailableTokens int64  `json:"availableTokens"`
	TotalLines      int    `json:"totalLines"`
}

func (QuotaExceededReport) Kind() Kind { return KindQuotaExceeded }

// SuccessReport is returned after vectors were upserted, the repo record
// persisted and the quota debited.
type SuccessReport struct {
	Message         string `json:"message"`
	TotalTokens     int64  `json:"totalTokens"`
	AvailableTokens int64  `json:"availableTokens"`
	TotalLines      int    `json:"totalLines"`
}

func (SuccessReport) Kind() Kind { return KindSuccess }

// FailureReport wraps any run-aborting error into a uniform JSON shape.
type FailureReport struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (FailureReport) Kind() Kind { return KindFailure }
