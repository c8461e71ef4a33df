// Package sync drives the end-to-end pipeline for one merchant: query the
// authority for the available file window, fetch everything past the
// merchant's watermark, extract and aggregate the receipts, persist the
// revenue rows, and only then advance the watermark.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bszub/opgsync/internal/archive"
	"github.com/bszub/opgsync/internal/clients/filestore"
	"github.com/bszub/opgsync/internal/clients/recordstore"
	"github.com/bszub/opgsync/internal/nav"
	"github.com/bszub/opgsync/internal/receipts"
)

// AuthorityClient is the slice of the tax authority API the pipeline uses.
type AuthorityClient interface {
	QueryStatus(ctx context.Context, creds nav.Credentials, useExchangeKey bool) (*nav.SyncWindow, error)
	FetchFiles(ctx context.Context, creds nav.Credentials, start, end int) ([]nav.Attachment, error)
}

// RecordStore is the slice of the record store the pipeline uses.
type RecordStore interface {
	MerchantsDueForSync(ctx context.Context, daysThreshold int, now time.Time) ([]recordstore.Merchant, error)
	CreateRevenues(ctx context.Context, recs []recordstore.RevenueRecord) (int, error)
	UpdateWatermark(ctx context.Context, merchantID, lastFileNumber int, syncedAt time.Time) error
}

// Archiver stores extracted files off-site. Optional; a nil Archiver
// disables archiving.
type Archiver interface {
	ArchiveDocuments(ctx context.Context, apNumber string, year int, docs []filestore.Document) int
}

// HistoryRecorder persists run results. Optional.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, result Result) error
}

// Orchestrator ties the pipeline stages together.
type Orchestrator struct {
	authority AuthorityClient
	store     RecordStore
	extractor *archive.Extractor
	archiver  Archiver
	history   HistoryRecorder
	log       zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the pipeline. archiver and history may be nil.
func NewOrchestrator(
	authority AuthorityClient,
	store RecordStore,
	extractor *archive.Extractor,
	archiver Archiver,
	history HistoryRecorder,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		authority: authority,
		store:     store,
		extractor: extractor,
		archiver:  archiver,
		history:   history,
		log:       log.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
	}
}

// credentialsFor maps the merchant record onto the authority credential set.
func credentialsFor(m recordstore.Merchant) nav.Credentials {
	return nav.Credentials{
		Login:       m.Login,
		Password:    m.Password,
		SignKey:     m.SignKey,
		ExchangeKey: m.ExchangeKey,
		TaxNumber:   m.TaxNumber,
		APNumber:    m.APNumber,
	}
}

// fetchRange computes the file numbers to fetch. Resuming past the remote
// minimum honors the watermark; a watermark at or beyond the maximum means
// there is nothing to do.
func fetchRange(watermark int, window nav.SyncWindow) (start, end int, ok bool) {
	start = window.Min
	if watermark+1 > start {
		start = watermark + 1
	}
	end = window.Max
	return start, end, start <= end
}

// targetYear picks the aggregation year. An explicit override wins, then
// the merchant record, then the current year. Without the fallback a
// merchant record missing the field would aggregate everything to zero
// and still advance the watermark.
func (o *Orchestrator) targetYear(m recordstore.Merchant, year int) int {
	if year > 0 {
		return year
	}
	if m.SyncYear > 0 {
		return m.SyncYear
	}
	return o.now().UTC().Year()
}

// SyncMerchant runs the full pipeline for one merchant. year overrides the
// merchant's configured sync year; zero means no override. The returned
// Result is always populated, including on failure; the error carries the
// stage.
func (o *Orchestrator) SyncMerchant(ctx context.Context, m recordstore.Merchant, year int) (Result, error) {
	year = o.targetYear(m, year)
	log := o.log.With().Int("merchant_id", m.ID).Str("ap_number", m.APNumber).Int("year", year).Logger()

	result := Result{
		MerchantID: m.ID,
		APNumber:   m.APNumber,
		Year:       year,
		StartedAt:  o.now(),
	}
	fail := func(stage Stage, err error) (Result, error) {
		wrapped := stageErr(stage, m.ID, err)
		result.Outcome = OutcomeFailed
		result.ErrorMessage = wrapped.Error()
		result.FinishedAt = o.now()
		o.recordRun(ctx, result)
		return result, wrapped
	}

	creds := credentialsFor(m)
	if err := creds.Validate(); err != nil {
		return fail(StageConfig, err)
	}

	window, err := o.authority.QueryStatus(ctx, creds, false)
	if err != nil {
		return fail(StageStatus, err)
	}
	if window == nil {
		log.Info().Msg("authority reports no files for cash register")
		result.Outcome = OutcomeNoData
		result.FinishedAt = o.now()
		o.recordRun(ctx, result)
		return result, nil
	}

	start, end, ok := fetchRange(m.LastFileNumber, *window)
	result.RangeStart = start
	result.RangeEnd = end
	if !ok {
		log.Info().Int("watermark", m.LastFileNumber).Int("remote_max", window.Max).Msg("already up to date")
		result.Outcome = OutcomeUpToDate
		result.FinishedAt = o.now()
		o.recordRun(ctx, result)
		return result, nil
	}

	log.Info().Int("start", start).Int("end", end).Msg("fetching audit files")
	attachments, err := o.authority.FetchFiles(ctx, creds, start, end)
	if err != nil {
		return fail(StageFetch, err)
	}
	result.FilesFetched = len(attachments)

	var docs []archive.Document
	for _, att := range attachments {
		unpacked, err := archive.UnpackZip(att.Data)
		if err != nil {
			log.Warn().Err(err).Str("attachment", att.Filename).Msg("skipping unreadable attachment")
			result.ExtractionFailures++
			continue
		}
		docs = append(docs, unpacked...)
	}

	extracted, failures := o.extractor.ExtractAll(docs)
	result.FilesExtracted = len(extracted)
	result.ExtractionFailures += failures
	if len(extracted) == 0 && len(docs) > 0 {
		return fail(StageExtract, fmt.Errorf("no file in range %d-%d could be extracted", start, end))
	}

	if o.archiver != nil {
		archiveDocs := make([]filestore.Document, 0, len(extracted))
		for _, e := range extracted {
			archiveDocs = append(archiveDocs, filestore.Document{Name: e.Name, Data: []byte(e.XML)})
		}
		result.ArchiveFailures = o.archiver.ArchiveDocuments(ctx, m.APNumber, year, archiveDocs)
	}

	aggDocs := make([]receipts.Document, 0, len(extracted))
	for _, e := range extracted {
		aggDocs = append(aggDocs, receipts.Document{Name: e.Name, XML: []byte(e.XML)})
	}
	agg := receipts.NewAggregator(year).Aggregate(aggDocs)
	result.SkippedOffYear = agg.SkippedOffYear

	rows := make([]recordstore.RevenueRecord, 0, len(agg.Revenues))
	for _, rev := range agg.Revenues {
		result.ReceiptCount += rev.ReceiptCount
		result.GrossRevenue += rev.GrossRevenue
		rows = append(rows, recordstore.RevenueRecord{
			APNumber:     rev.APNumber,
			Date:         rev.Date,
			FileNumber:   rev.FileNumber,
			ReceiptCount: rev.ReceiptCount,
			GrossRevenue: rev.GrossRevenue,
		})
	}

	written, err := o.store.CreateRevenues(ctx, rows)
	result.RowsWritten = written
	if err != nil {
		// The watermark stays put: the next run refetches the whole range
		// and rewrites these rows.
		return fail(StagePersist, err)
	}

	if err := o.store.UpdateWatermark(ctx, m.ID, end, o.now()); err != nil {
		return fail(StageWatermark, err)
	}

	result.Outcome = OutcomeSynced
	result.FinishedAt = o.now()
	o.recordRun(ctx, result)

	log.Info().
		Int("files", result.FilesFetched).
		Int("rows", result.RowsWritten).
		Int64("gross_revenue", result.GrossRevenue).
		Int("new_watermark", end).
		Msg("merchant synced")

	return result, nil
}

// SyncAll syncs every merchant due for a sync. year applies the same
// override to every merchant; zero lets each merchant's record (or the
// current year) decide. Individual failures are collected, never fatal to
// the batch.
func (o *Orchestrator) SyncAll(ctx context.Context, daysThreshold, year int) (BatchResult, error) {
	merchants, err := o.store.MerchantsDueForSync(ctx, daysThreshold, o.now())
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list merchants due for sync: %w", err)
	}

	o.log.Info().Int("merchants", len(merchants)).Msg("starting batch sync")

	var batch BatchResult
	for _, m := range merchants {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		result, err := o.SyncMerchant(ctx, m, year)
		if err != nil {
			o.log.Error().Err(err).Int("merchant_id", m.ID).Msg("merchant sync failed")
		}
		batch.Results = append(batch.Results, result)
	}

	counts := batch.Counts()
	o.log.Info().
		Int("synced", counts[OutcomeSynced]).
		Int("up_to_date", counts[OutcomeUpToDate]).
		Int("failed", counts[OutcomeFailed]).
		Msg("batch sync finished")

	return batch, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, result Result) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordRun(ctx, result); err != nil {
		o.log.Warn().Err(err).Int("merchant_id", result.MerchantID).Msg("failed to record run history")
	}
}
