package receipts

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileRef identifies one recovered log file by the fields encoded in its
// name: {apNumber}_{taxNumber}_{timestamp14}_{fileNumber}.xml.
type FileRef struct {
	APNumber   string
	TaxNumber  string
	Timestamp  time.Time
	FileNumber int
	Name       string
}

// Date is the calendar date the file covers, derived from its timestamp.
func (f FileRef) Date() string { return f.Timestamp.Format("2006-01-02") }

var fileNameRe = regexp.MustCompile(`^([A-Z0-9]+)_(\d+)_(\d{14})_(\d+)$`)

// ParseFileRef decodes a log file name. The extension and any directory
// prefix are ignored.
func ParseFileRef(name string) (FileRef, error) {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))

	m := fileNameRe.FindStringSubmatch(stem)
	if m == nil {
		return FileRef{}, fmt.Errorf("receipts: file name %q does not match ap_tax_timestamp_fileno", base)
	}

	ts, err := time.Parse("20060102150405", m[3])
	if err != nil {
		return FileRef{}, fmt.Errorf("receipts: file name %q: bad timestamp: %w", base, err)
	}
	fileNo, err := strconv.Atoi(m[4])
	if err != nil {
		return FileRef{}, fmt.Errorf("receipts: file name %q: bad file number: %w", base, err)
	}

	return FileRef{
		APNumber:   m[1],
		TaxNumber:  m[2],
		Timestamp:  ts,
		FileNumber: fileNo,
		Name:       base,
	}, nil
}

// DailyRevenue is the aggregate for one log file: the receipt count and
// gross revenue of its non-cancelled receipts. Files with no receipts in
// the target year still produce a record with zero values, so every
// fetched file number is visible downstream.
type DailyRevenue struct {
	APNumber     string
	Date         string
	FileNumber   int
	ReceiptCount int
	GrossRevenue int64
}

// AggregateResult is the outcome of aggregating one batch of documents.
type AggregateResult struct {
	Revenues       []DailyRevenue
	SkippedOffYear int
}

// Aggregator turns extracted log XML into per-file daily revenue records.
type Aggregator struct {
	year int
}

func NewAggregator(year int) *Aggregator { return &Aggregator{year: year} }

// AggregateFile builds the revenue record for a single file. Cancelled
// receipts (CNC == "1") are excluded from both the count and the sum. The
// record's date comes from the file name timestamp, not from the receipts,
// so zero-receipt files still carry a meaningful date.
func (a *Aggregator) AggregateFile(ref FileRef, xmlData []byte) (DailyRevenue, int) {
	parsed, skipped := ParseReceipts(xmlData, a.year)

	rev := DailyRevenue{
		APNumber:   ref.APNumber,
		Date:       ref.Date(),
		FileNumber: ref.FileNumber,
	}
	for _, r := range parsed {
		if r.Cancelled {
			continue
		}
		rev.ReceiptCount++
		rev.GrossRevenue += r.Amount
	}
	return rev, skipped
}

// Document pairs a file name with its extracted XML payload.
type Document struct {
	Name string
	XML  []byte
}

// Aggregate processes a batch of documents. Documents whose names do not
// match the expected pattern are skipped. Results come back ordered by
// file number ascending.
func (a *Aggregator) Aggregate(docs []Document) AggregateResult {
	var res AggregateResult
	for _, doc := range docs {
		ref, err := ParseFileRef(doc.Name)
		if err != nil {
			continue
		}
		rev, skipped := a.AggregateFile(ref, doc.XML)
		res.Revenues = append(res.Revenues, rev)
		res.SkippedOffYear += skipped
	}
	sort.Slice(res.Revenues, func(i, j int) bool {
		return res.Revenues[i].FileNumber < res.Revenues[j].FileNumber
	})
	return res
}
