package recordstore

import "time"

// Merchant is one cash-register owner tracked in the record store. The
// watermark (LastFileNumber) is the highest audit file number whose revenue
// has been persisted; sync resumes from the next number.
type Merchant struct {
	ID             int    `json:"id"`
	Name           string `json:"Name"`
	TaxNumber      string `json:"TaxNumber"`
	APNumber       string `json:"APNumber"`
	Login          string `json:"Login"`
	Password       string `json:"Password"`
	SignKey        string `json:"SignKey"`
	ExchangeKey    string `json:"ExchangeKey,omitempty"`
	SyncYear       int    `json:"SyncYear"`
	LastFileNumber int    `json:"LastFileNumber"`
	LastSyncedAt   string `json:"LastSyncedAt,omitempty"`
	Active         bool   `json:"Active"`
}

// LastSynced parses LastSyncedAt; the zero time means never synced.
func (m Merchant) LastSynced() time.Time {
	t, err := time.Parse(time.RFC3339, m.LastSyncedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RevenueRecord is the persisted per-file daily revenue row.
type RevenueRecord struct {
	ID           int    `json:"id,omitempty"`
	APNumber     string `json:"APNumber"`
	Date         string `json:"Date"`
	FileNumber   int    `json:"FileNumber"`
	ReceiptCount int    `json:"ReceiptCount"`
	GrossRevenue int64  `json:"GrossRevenue"`
}

// recordsPage is the envelope the record store wraps list responses in.
type recordsPage[T any] struct {
	Records []T `json:"records"`
}
