package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bszub/opgsync/internal/clients/recordstore"
	"github.com/bszub/opgsync/internal/config"
	"github.com/bszub/opgsync/internal/export"
	"github.com/bszub/opgsync/internal/invoice"
	"github.com/bszub/opgsync/internal/nav"
	syncer "github.com/bszub/opgsync/internal/sync"
)

// SyncService is the orchestrator surface the API exposes.
type SyncService interface {
	SyncMerchant(ctx context.Context, m recordstore.Merchant, year int) (syncer.Result, error)
	SyncAll(ctx context.Context, daysThreshold, year int) (syncer.BatchResult, error)
}

// MerchantStore is the record store surface the API reads from.
type MerchantStore interface {
	GetMerchant(ctx context.Context, id int) (*recordstore.Merchant, error)
	ListRevenues(ctx context.Context, apNumber string) ([]recordstore.RevenueRecord, error)
}

// RunHistory reads past sync runs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]syncer.Result, error)
	LastRunFor(ctx context.Context, merchantID int) (*syncer.Result, error)
}

// InvoiceService fetches Online Invoice digests.
type InvoiceService interface {
	FetchDigests(ctx context.Context, creds nav.Credentials, rng invoice.DateRange) ([]invoice.Digest, error)
}

// Handlers implements the API endpoints.
type Handlers struct {
	sync     SyncService
	store    MerchantStore
	history  RunHistory
	invoices InvoiceService
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandlers(sync SyncService, store MerchantStore, history RunHistory, invoices InvoiceService, cfg *config.Config, log zerolog.Logger) *Handlers {
	return &Handlers{
		sync:     sync,
		store:    store,
		history:  history,
		invoices: invoices,
		cfg:      cfg,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

// HandleSyncAll triggers a batch sync across all due merchants. The
// optional JSON body may carry days_threshold and year overrides.
// POST /api/sync/all
func (h *Handlers) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	threshold := h.cfg.SyncDaysThreshold
	year := 0
	var body struct {
		DaysThreshold *int `json:"days_threshold"`
		Year          *int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		if body.DaysThreshold != nil {
			threshold = *body.DaysThreshold
		}
		if body.Year != nil {
			year = *body.Year
		}
	}

	h.log.Info().Int("days_threshold", threshold).Int("year", year).Msg("Manual batch sync triggered")

	batch, err := h.sync.SyncAll(r.Context(), threshold, year)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	counts := batch.Counts()
	h.writeJSON(w, map[string]interface{}{
		"status":     "completed",
		"total":      len(batch.Results),
		"synced":     counts[syncer.OutcomeSynced],
		"up_to_date": counts[syncer.OutcomeUpToDate],
		"no_data":    counts[syncer.OutcomeNoData],
		"failed":     counts[syncer.OutcomeFailed],
		"results":    batch.Results,
	})
}

// HandleSyncMerchant triggers a sync for one merchant. The optional JSON
// body may carry a year override.
// POST /api/sync/{merchantID}
func (h *Handlers) HandleSyncMerchant(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.Atoi(chi.URLParam(r, "merchantID"))
	if err != nil {
		http.Error(w, "invalid merchant id", http.StatusBadRequest)
		return
	}

	m, err := h.store.GetMerchant(r.Context(), merchantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if m == nil {
		http.Error(w, "merchant not found", http.StatusNotFound)
		return
	}

	year := 0
	var body struct {
		Year *int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Year != nil {
		year = *body.Year
	}

	h.log.Info().Int("merchant_id", merchantID).Int("year", year).Msg("Manual merchant sync triggered")

	result, err := h.sync.SyncMerchant(r.Context(), *m, year)
	if err != nil {
		// The result still describes what happened up to the failure.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(result)
		return
	}

	h.writeJSON(w, result)
}

// HandleStatus returns the most recent sync runs.
// GET /api/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.history.RecentRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleMerchantLastRun returns the latest run for one merchant.
// GET /api/merchants/{merchantID}/runs
func (h *Handlers) HandleMerchantLastRun(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.Atoi(chi.URLParam(r, "merchantID"))
	if err != nil {
		http.Error(w, "invalid merchant id", http.StatusBadRequest)
		return
	}

	run, err := h.history.LastRunFor(r.Context(), merchantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no runs for merchant", http.StatusNotFound)
		return
	}

	h.writeJSON(w, run)
}

// HandleExportRevenues streams the revenue rows for a cash register as a
// spreadsheet.
// GET /api/export/revenues?ap={apNumber}
func (h *Handlers) HandleExportRevenues(w http.ResponseWriter, r *http.Request) {
	apNumber := r.URL.Query().Get("ap")
	if apNumber == "" {
		http.Error(w, "ap query parameter is required", http.StatusBadRequest)
		return
	}

	rows, err := h.store.ListRevenues(r.Context(), apNumber)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	f, err := export.RevenueWorkbook(rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("revenues_%s_%s.xlsx", apNumber, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteWorkbook(f, w); err != nil {
		h.log.Error().Err(err).Msg("failed to stream revenue workbook")
	}
}

// HandleExportInvoices builds a yearly invoice workbook for one merchant.
// GET /api/export/invoices?merchant={id}&year={year}
func (h *Handlers) HandleExportInvoices(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.Atoi(r.URL.Query().Get("merchant"))
	if err != nil {
		http.Error(w, "merchant query parameter is required", http.StatusBadRequest)
		return
	}
	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}

	m, err := h.store.GetMerchant(r.Context(), merchantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if m == nil {
		http.Error(w, "merchant not found", http.StatusNotFound)
		return
	}

	creds := nav.Credentials{
		Login:       m.Login,
		Password:    m.Password,
		SignKey:     m.SignKey,
		ExchangeKey: m.ExchangeKey,
		TaxNumber:   m.TaxNumber,
		APNumber:    m.APNumber,
	}

	// Fetch each month once; the workbook wants both the raw digest list
	// and the monthly summaries.
	cache := &cachingFetcher{inner: h.invoices}
	ys := invoice.YearlyBreakdown(r.Context(), cache, creds, year)

	f, err := export.InvoiceWorkbook(ys, cache.digests)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("invoices_%d_%d.xlsx", merchantID, year)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteWorkbook(f, w); err != nil {
		h.log.Error().Err(err).Msg("failed to stream invoice workbook")
	}
}

// cachingFetcher accumulates every digest it fetches so the export
// handler can list them without re-querying the service.
type cachingFetcher struct {
	inner   InvoiceService
	digests []invoice.Digest
}

func (c *cachingFetcher) FetchDigests(ctx context.Context, creds nav.Credentials, rng invoice.DateRange) ([]invoice.Digest, error) {
	ds, err := c.inner.FetchDigests(ctx, creds, rng)
	if err != nil {
		return nil, err
	}
	c.digests = append(c.digests, ds...)
	return ds, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}
