package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const (
	merchantsPath = "/collections/merchants"
	revenuesPath  = "/collections/dailyrevenues"
)

// ListMerchants fetches every merchant, following offset pagination until a
// short page comes back.
func (c *Client) ListMerchants(ctx context.Context) ([]Merchant, error) {
	var all []Merchant
	offset := 0

	for {
		query := url.Values{}
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(pageSize))

		data, err := c.request(ctx, http.MethodGet, merchantsPath, query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list merchants: %w", err)
		}

		var page recordsPage[Merchant]
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse merchants page: %w", err)
		}

		all = append(all, page.Records...)
		if len(page.Records) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
}

// GetMerchant fetches a single merchant by record ID.
func (c *Client) GetMerchant(ctx context.Context, id int) (*Merchant, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("%s/%d", merchantsPath, id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant %d: %w", id, err)
	}

	var m Merchant
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse merchant %d: %w", id, err)
	}
	return &m, nil
}

// MerchantsDueForSync returns the active merchants whose last sync is
// older than daysThreshold days (or who never synced), oldest first.
func (c *Client) MerchantsDueForSync(ctx context.Context, daysThreshold int, now time.Time) ([]Merchant, error) {
	all, err := c.ListMerchants(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -daysThreshold)
	var due []Merchant
	for _, m := range all {
		if !m.Active {
			continue
		}
		if m.LastSynced().Before(cutoff) {
			due = append(due, m)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].LastSynced().Before(due[j].LastSynced())
	})
	return due, nil
}

// UpdateWatermark advances a merchant's watermark and sync timestamp. The
// caller must only do this after every revenue row in the synced range has
// been persisted.
func (c *Client) UpdateWatermark(ctx context.Context, merchantID, lastFileNumber int, syncedAt time.Time) error {
	body := map[string]interface{}{
		"LastFileNumber": lastFileNumber,
		"LastSyncedAt":   syncedAt.UTC().Format(time.RFC3339),
	}
	_, err := c.request(ctx, http.MethodPut, fmt.Sprintf("%s/%d", merchantsPath, merchantID), nil, body)
	if err != nil {
		return fmt.Errorf("failed to update watermark for merchant %d: %w", merchantID, err)
	}
	return nil
}

// CreateRevenue persists one daily revenue row.
func (c *Client) CreateRevenue(ctx context.Context, rec RevenueRecord) error {
	_, err := c.request(ctx, http.MethodPost, revenuesPath, nil, rec)
	if err != nil {
		return fmt.Errorf("failed to create revenue row for %s file %d: %w", rec.APNumber, rec.FileNumber, err)
	}
	return nil
}

// CreateRevenues persists a batch of rows in file number order, stopping
// at the first failure so the caller knows nothing past the returned count
// was written.
func (c *Client) CreateRevenues(ctx context.Context, recs []RevenueRecord) (int, error) {
	for i, rec := range recs {
		if err := c.CreateRevenue(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

// ListRevenues fetches the revenue rows for one cash register, following
// pagination like ListMerchants.
func (c *Client) ListRevenues(ctx context.Context, apNumber string) ([]RevenueRecord, error) {
	var all []RevenueRecord
	offset := 0

	for {
		query := url.Values{}
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(pageSize))
		if apNumber != "" {
			query.Set("filterKey", "APNumber")
			query.Set("filterValue", apNumber)
		}

		data, err := c.request(ctx, http.MethodGet, revenuesPath, query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list revenues: %w", err)
		}

		var page recordsPage[RevenueRecord]
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to parse revenues page: %w", err)
		}

		all = append(all, page.Records...)
		if len(page.Records) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
}
