// Package invoice queries the NAV Online Invoice v3 reporting API for
// outbound invoice digests and aggregates them into monthly revenue
// figures.
package invoice

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/bszub/opgsync/internal/nav"
)

const (
	nsAPI = "http://schemas.nav.gov.hu/OSA/3.0/api"
	nsCom = "http://schemas.nav.gov.hu/NTCA/1.0/common"
)

// DateRange bounds an invoice issue date query, inclusive on both ends.
type DateRange struct {
	From string // YYYY-MM-DD
	To   string // YYYY-MM-DD
}

// MonthRange returns the issue date range covering one calendar month.
func MonthRange(year int, month time.Month) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateRange{
		From: first.Format("2006-01-02"),
		To:   last.Format("2006-01-02"),
	}
}

// RequestBuilder constructs signed QueryInvoiceDigestRequest documents.
// The authentication scheme is shared with the cash register API, so the
// hashing and signature helpers come from the nav package.
type RequestBuilder struct {
	software nav.Software
	now      func() time.Time
}

func NewRequestBuilder(software nav.Software) *RequestBuilder {
	return &RequestBuilder{software: software, now: time.Now}
}

// DigestRequest builds the request document for one page of outbound
// invoice digests issued within the range.
func (b *RequestBuilder) DigestRequest(creds nav.Credentials, rng DateRange, page int) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	if page < 1 {
		page = 1
	}

	requestID := nav.NewRequestID()
	instant := b.now()

	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&doc, "<QueryInvoiceDigestRequest xmlns=%q xmlns:common=%q>\n", nsAPI, nsCom)

	doc.WriteString("  <common:header>\n")
	fmt.Fprintf(&doc, "    <common:requestId>%s</common:requestId>\n", esc(requestID))
	fmt.Fprintf(&doc, "    <common:timestamp>%s</common:timestamp>\n", nav.FormatTimestamp(instant))
	doc.WriteString("    <common:requestVersion>3.0</common:requestVersion>\n")
	doc.WriteString("    <common:headerVersion>1.0</common:headerVersion>\n")
	doc.WriteString("  </common:header>\n")

	doc.WriteString("  <common:user>\n")
	fmt.Fprintf(&doc, "    <common:login>%s</common:login>\n", esc(creds.Login))
	fmt.Fprintf(&doc, "    <common:passwordHash cryptoType=\"SHA-512\">%s</common:passwordHash>\n", nav.PasswordHash(creds.Password))
	fmt.Fprintf(&doc, "    <common:taxNumber>%s</common:taxNumber>\n", esc(nav.NormalizeTaxNumber(creds.TaxNumber)))
	fmt.Fprintf(&doc, "    <common:requestSignature cryptoType=\"SHA3-512\">%s</common:requestSignature>\n",
		nav.RequestSignature(requestID, instant, creds.SignKey))
	doc.WriteString("  </common:user>\n")

	doc.WriteString("  <software>\n")
	fmt.Fprintf(&doc, "    <softwareId>%s</softwareId>\n", esc(b.software.ID))
	fmt.Fprintf(&doc, "    <softwareName>%s</softwareName>\n", esc(b.software.Name))
	fmt.Fprintf(&doc, "    <softwareOperation>%s</softwareOperation>\n", esc(b.software.Operation))
	fmt.Fprintf(&doc, "    <softwareMainVersion>%s</softwareMainVersion>\n", esc(b.software.MainVersion))
	fmt.Fprintf(&doc, "    <softwareDevName>%s</softwareDevName>\n", esc(b.software.DevName))
	fmt.Fprintf(&doc, "    <softwareDevContact>%s</softwareDevContact>\n", esc(b.software.DevContact))
	fmt.Fprintf(&doc, "    <softwareDevCountryCode>%s</softwareDevCountryCode>\n", esc(b.software.DevCountryCode))
	fmt.Fprintf(&doc, "    <softwareDevTaxNumber>%s</softwareDevTaxNumber>\n", esc(b.software.DevTaxNumber))
	doc.WriteString("  </software>\n")

	fmt.Fprintf(&doc, "  <page>%d</page>\n", page)
	doc.WriteString("  <invoiceDirection>OUTBOUND</invoiceDirection>\n")
	doc.WriteString("  <invoiceQueryParams>\n")
	doc.WriteString("    <mandatoryQueryParams>\n")
	doc.WriteString("      <invoiceIssueDate>\n")
	fmt.Fprintf(&doc, "        <dateFrom>%s</dateFrom>\n", esc(rng.From))
	fmt.Fprintf(&doc, "        <dateTo>%s</dateTo>\n", esc(rng.To))
	doc.WriteString("      </invoiceIssueDate>\n")
	doc.WriteString("    </mandatoryQueryParams>\n")
	doc.WriteString("  </invoiceQueryParams>\n")
	doc.WriteString("</QueryInvoiceDigestRequest>")

	return doc.String(), nil
}

func esc(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
