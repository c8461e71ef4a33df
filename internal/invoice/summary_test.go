package invoice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bszub/opgsync/internal/nav"
)

func TestSummarize(t *testing.T) {
	digests := []Digest{
		{Operation: "CREATE", NetAmountHUF: 100000},
		{Operation: "CREATE", NetAmountHUF: 50000},
		{Operation: "MODIFY", NetAmountHUF: 20000, DeliveryDate: "2024-02-01"},
		{Operation: "STORNO", NetAmountHUF: -30000, DeliveryDate: "2024-03-01"},
	}

	s := Summarize(digests, 2024)
	assert.Equal(t, 150000.0, s.TotalAmount)
	assert.Equal(t, 20000.0, s.ModifiedAmount)
	assert.Equal(t, 30000.0, s.StornoAmount) // absolute value
	assert.Equal(t, 140000.0, s.NetAmount())
	assert.Equal(t, 2, s.ValidInvoices)
	assert.Equal(t, 4, s.TotalInvoices)
}

func TestSummarizeCrossYearExcludedFromAmounts(t *testing.T) {
	digests := []Digest{
		{Operation: "CREATE", NetAmountHUF: 100000},
		{Operation: "STORNO", NetAmountHUF: 40000, DeliveryDate: "2023-12-15"},
		{Operation: "MODIFY", NetAmountHUF: 10000, DeliveryDate: "2023-11-01"},
	}

	s := Summarize(digests, 2024)
	assert.Equal(t, 100000.0, s.NetAmount())
	assert.Zero(t, s.StornoAmount)
	assert.Zero(t, s.ModifiedAmount)
	assert.Equal(t, 1, s.CrossYearStornos)
	assert.Equal(t, 1, s.CrossYearModified)
	// Operation counters still include cross-year entries.
	assert.Equal(t, 1, s.StornoInvoices)
	assert.Equal(t, 1, s.ModifiedInvoices)
}

func TestMonthRange(t *testing.T) {
	rng := MonthRange(2024, time.February)
	assert.Equal(t, "2024-02-01", rng.From)
	assert.Equal(t, "2024-02-29", rng.To)

	rng = MonthRange(2024, time.December)
	assert.Equal(t, "2024-12-31", rng.To)
}

type fakeFetcher struct {
	byMonth map[time.Month][]Digest
	errOn   time.Month
}

func (f *fakeFetcher) FetchDigests(ctx context.Context, creds nav.Credentials, rng DateRange) ([]Digest, error) {
	from, err := time.Parse("2006-01-02", rng.From)
	if err != nil {
		return nil, err
	}
	if f.errOn != 0 && from.Month() == f.errOn {
		return nil, fmt.Errorf("service unavailable")
	}
	return f.byMonth[from.Month()], nil
}

func TestYearlyBreakdown(t *testing.T) {
	fetcher := &fakeFetcher{
		byMonth: map[time.Month][]Digest{
			time.January: {{Operation: "CREATE", NetAmountHUF: 1_500_000}},
			time.March:   {{Operation: "CREATE", NetAmountHUF: 750_000}},
		},
		errOn: time.June,
	}

	ys := YearlyBreakdown(context.Background(), fetcher, nav.Credentials{}, 2024)
	require.Len(t, ys.Months, 12)

	assert.Equal(t, 2_250_000.0, ys.TotalNet)
	assert.Equal(t, 2, ys.TotalInvoices)

	jan := ys.Months[0]
	assert.InDelta(t, 100.0, jan.KATAPercent, 0.01)

	jun := ys.Months[5]
	require.Error(t, jun.Err)
	assert.Zero(t, jun.Summary.TotalInvoices)

	assert.InDelta(t, 12.5, ys.TotalKATAPercent, 0.01)
}
