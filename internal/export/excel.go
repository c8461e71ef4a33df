// Package export renders revenue and invoice data into spreadsheet
// workbooks for download.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bszub/opgsync/internal/clients/recordstore"
	"github.com/bszub/opgsync/internal/invoice"
)

const (
	revenueSheet = "Daily Revenues"
	invoiceSheet = "Invoices"
)

// RevenueWorkbook builds a workbook listing the daily revenue rows with a
// totals row at the bottom. The caller owns closing the returned file.
func RevenueWorkbook(rows []recordstore.RevenueRecord) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, revenueSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"AP Number", "Date", "File Number", "Receipt Count", "Gross Revenue (HUF)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(revenueSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := f.SetRowStyle(revenueSheet, 1, 1, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	var totalReceipts int
	var totalRevenue int64
	for i, rec := range rows {
		rowNo := i + 2
		values := []interface{}{rec.APNumber, rec.Date, rec.FileNumber, rec.ReceiptCount, rec.GrossRevenue}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNo)
			if err := f.SetCellValue(revenueSheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", rowNo, err)
			}
		}
		totalReceipts += rec.ReceiptCount
		totalRevenue += rec.GrossRevenue
	}

	totalRow := len(rows) + 2
	setCell(f, revenueSheet, 1, totalRow, "Total")
	setCell(f, revenueSheet, 4, totalRow, totalReceipts)
	setCell(f, revenueSheet, 5, totalRow, totalRevenue)
	if err := f.SetRowStyle(revenueSheet, totalRow, totalRow, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style totals: %w", err)
	}

	if err := f.SetColWidth(revenueSheet, "A", "A", 14); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(revenueSheet, "B", "E", 18); err != nil {
		return nil, err
	}

	return f, nil
}

// InvoiceWorkbook builds a workbook with one row per invoice digest plus a
// monthly summary sheet.
func InvoiceWorkbook(ys invoice.YearSummary, digests []invoice.Digest) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, invoiceSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Invoice Number", "Operation", "Issue Date", "Delivery Date", "Net Amount (HUF)"}
	for i, h := range headers {
		setCell(f, invoiceSheet, i+1, 1, h)
	}
	if err := f.SetRowStyle(invoiceSheet, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for i, d := range digests {
		rowNo := i + 2
		setCell(f, invoiceSheet, 1, rowNo, d.InvoiceNumber)
		setCell(f, invoiceSheet, 2, rowNo, d.Operation)
		setCell(f, invoiceSheet, 3, rowNo, d.IssueDate)
		setCell(f, invoiceSheet, 4, rowNo, d.DeliveryDate)
		setCell(f, invoiceSheet, 5, rowNo, d.NetAmountHUF)
	}
	if err := f.SetColWidth(invoiceSheet, "A", "E", 18); err != nil {
		return nil, err
	}

	summarySheet := fmt.Sprintf("Summary %d", ys.Year)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryHeaders := []string{"Month", "Invoices", "Net Amount (HUF)", "KATA %"}
	for i, h := range summaryHeaders {
		setCell(f, summarySheet, i+1, 1, h)
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for i, ms := range ys.Months {
		rowNo := i + 2
		setCell(f, summarySheet, 1, rowNo, ms.Month.String())
		setCell(f, summarySheet, 2, rowNo, ms.Summary.TotalInvoices)
		setCell(f, summarySheet, 3, rowNo, ms.Summary.NetAmount())
		setCell(f, summarySheet, 4, rowNo, ms.KATAPercent)
	}

	totalRow := len(ys.Months) + 2
	setCell(f, summarySheet, 1, totalRow, "Total")
	setCell(f, summarySheet, 2, totalRow, ys.TotalInvoices)
	setCell(f, summarySheet, 3, totalRow, ys.TotalNet)
	setCell(f, summarySheet, 4, totalRow, ys.TotalKATAPercent)
	if err := f.SetRowStyle(summarySheet, totalRow, totalRow, headerStyle); err != nil {
		return nil, err
	}

	return f, nil
}

// WriteWorkbook streams a workbook and closes it.
func WriteWorkbook(f *excelize.File, w io.Writer) error {
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return
	}
	_ = f.SetCellValue(sheet, cell, value)
}
