package sync

import "time"

// Outcome classifies how a merchant sync ended.
type Outcome string

const (
	// OutcomeSynced means new files were fetched and revenue rows written.
	OutcomeSynced Outcome = "synced"
	// OutcomeUpToDate means the watermark already covers everything the
	// authority has.
	OutcomeUpToDate Outcome = "up_to_date"
	// OutcomeNoData means the authority reported no files at all for the
	// cash register.
	OutcomeNoData Outcome = "no_data"
	// OutcomeFailed means the pipeline stopped before the watermark moved.
	OutcomeFailed Outcome = "failed"
)

// Result is the record of one merchant sync run.
type Result struct {
	MerchantID         int       `msgpack:"merchant_id" json:"merchant_id"`
	APNumber           string    `msgpack:"ap_number" json:"ap_number"`
	Year               int       `msgpack:"year" json:"year"`
	Outcome            Outcome   `msgpack:"outcome" json:"outcome"`
	RangeStart         int       `msgpack:"range_start" json:"range_start"`
	RangeEnd           int       `msgpack:"range_end" json:"range_end"`
	FilesFetched       int       `msgpack:"files_fetched" json:"files_fetched"`
	FilesExtracted     int       `msgpack:"files_extracted" json:"files_extracted"`
	ExtractionFailures int       `msgpack:"extraction_failures" json:"extraction_failures"`
	ArchiveFailures    int       `msgpack:"archive_failures" json:"archive_failures"`
	RowsWritten        int       `msgpack:"rows_written" json:"rows_written"`
	ReceiptCount       int       `msgpack:"receipt_count" json:"receipt_count"`
	GrossRevenue       int64     `msgpack:"gross_revenue" json:"gross_revenue"`
	SkippedOffYear     int       `msgpack:"skipped_off_year" json:"skipped_off_year"`
	StartedAt          time.Time `msgpack:"started_at" json:"started_at"`
	FinishedAt         time.Time `msgpack:"finished_at" json:"finished_at"`
	ErrorMessage       string    `msgpack:"error_message,omitempty" json:"error_message,omitempty"`
}

// Duration is the wall time the run took.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// BatchResult summarizes a sync across many merchants.
type BatchResult struct {
	Results []Result
}

// Counts returns how many runs ended in each outcome.
func (b BatchResult) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range b.Results {
		counts[r.Outcome]++
	}
	return counts
}

// Failed reports whether any run in the batch failed.
func (b BatchResult) Failed() bool {
	for _, r := range b.Results {
		if r.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
