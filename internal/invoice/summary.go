package invoice

import (
	"context"
	"strconv"
	"time"

	"github.com/bszub/opgsync/internal/nav"
)

// KATA flat-tax thresholds, in HUF.
const (
	KATAYearlyLimit  = 18_000_000.0
	KATAMonthlyLimit = KATAYearlyLimit / 12
)

// Summary aggregates one batch of invoice digests. Net revenue is
// creates plus modifications minus stornos; storno and modify operations
// whose delivery date falls in an earlier year only count toward the
// operation counters, never the amounts.
type Summary struct {
	TotalAmount       float64
	StornoAmount      float64
	ModifiedAmount    float64
	ValidInvoices     int
	StornoInvoices    int
	ModifiedInvoices  int
	TotalInvoices     int
	CrossYearStornos  int
	CrossYearModified int
}

// NetAmount is the revenue figure the summary exists for.
func (s Summary) NetAmount() float64 {
	return s.TotalAmount + s.ModifiedAmount - s.StornoAmount
}

func crossYear(d Digest, year int) bool {
	if d.Operation != "STORNO" && d.Operation != "MODIFY" {
		return false
	}
	if len(d.DeliveryDate) < 4 {
		return false
	}
	deliveryYear, err := strconv.Atoi(d.DeliveryDate[:4])
	return err == nil && deliveryYear < year
}

// Summarize folds a digest list into a Summary for the given year.
func Summarize(digests []Digest, year int) Summary {
	var s Summary
	s.TotalInvoices = len(digests)

	for _, d := range digests {
		if crossYear(d, year) {
			switch d.Operation {
			case "STORNO":
				s.CrossYearStornos++
				s.StornoInvoices++
			case "MODIFY":
				s.CrossYearModified++
				s.ModifiedInvoices++
			}
			continue
		}

		switch d.Operation {
		case "STORNO":
			amt := d.NetAmountHUF
			if amt < 0 {
				amt = -amt
			}
			s.StornoAmount += amt
			s.StornoInvoices++
		case "MODIFY":
			s.ModifiedAmount += d.NetAmountHUF
			s.ModifiedInvoices++
		case "CREATE":
			s.TotalAmount += d.NetAmountHUF
			s.ValidInvoices++
		}
	}
	return s
}

// MonthSummary is the summary for one calendar month plus its KATA usage.
type MonthSummary struct {
	Month       time.Month
	Summary     Summary
	KATAPercent float64
	Err         error
}

// YearSummary is a full year of monthly summaries with totals.
type YearSummary struct {
	Year             int
	Months           []MonthSummary
	TotalNet         float64
	TotalInvoices    int
	TotalKATAPercent float64
}

// DigestFetcher is the client surface the yearly breakdown needs.
type DigestFetcher interface {
	FetchDigests(ctx context.Context, creds nav.Credentials, rng DateRange) ([]Digest, error)
}

// YearlyBreakdown queries every month of the year and aggregates each
// one. A failed month gets zeroes and carries its error; the other months
// still count.
func YearlyBreakdown(ctx context.Context, fetcher DigestFetcher, creds nav.Credentials, year int) YearSummary {
	ys := YearSummary{Year: year}

	for month := time.January; month <= time.December; month++ {
		ms := MonthSummary{Month: month}

		digests, err := fetcher.FetchDigests(ctx, creds, MonthRange(year, month))
		if err != nil {
			ms.Err = err
		} else {
			ms.Summary = Summarize(digests, year)
			ms.KATAPercent = ms.Summary.NetAmount() / KATAMonthlyLimit * 100
			ys.TotalNet += ms.Summary.NetAmount()
			ys.TotalInvoices += ms.Summary.TotalInvoices
		}

		ys.Months = append(ys.Months, ms)
	}

	ys.TotalKATAPercent = ys.TotalNet / KATAYearlyLimit * 100
	return ys
}
