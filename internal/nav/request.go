package nav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Fixed protocol namespaces, from the OPF 1.0 schema.
const (
	nsAPI = "http://schemas.nav.gov.hu/OPF/1.0/api"
	nsCom = "http://schemas.nav.gov.hu/NTCA/1.0/common"
)

// Software identifies this client toward NAV. The block is mandatory on
// every request; the values are fixed per deployment, not per merchant.
type Software struct {
	ID             string
	Name           string
	Operation      string
	MainVersion    string
	DevName        string
	DevContact     string
	DevCountryCode string
	DevTaxNumber   string
}

// DefaultSoftware is the registered software identification for this client.
func DefaultSoftware() Software {
	return Software{
		ID:             "HU77317012-GOOPGCL",
		Name:           "Go OPG Client",
		Operation:      "LOCAL_SOFTWARE",
		MainVersion:    "1.0",
		DevName:        "OPG Sync Service",
		DevContact:     "info@example.com",
		DevCountryCode: "HU",
		DevTaxNumber:   "77317012",
	}
}

// requestHeader is the com:header block shared by both request kinds.
type requestHeader struct {
	RequestID string
	Timestamp string // millisecond precision, as embedded in the XML
}

// userBlock is the com:user authentication block.
type userBlock struct {
	Login        string
	PasswordHash string
	TaxNumber    string
	Signature    string
}

// RequestBuilder constructs signed OPG SOAP request documents. The zero
// value is not usable; create one with NewRequestBuilder.
type RequestBuilder struct {
	software Software
	now      func() time.Time
}

// NewRequestBuilder creates a builder using the given software
// identification block.
func NewRequestBuilder(software Software) *RequestBuilder {
	return &RequestBuilder{software: software, now: time.Now}
}

// StatusRequest builds a QueryCashRegisterStatusRequest document for the
// device named in creds. When useExchangeKey is set the request signature is
// computed with the exchange key instead of the signing key.
func (b *RequestBuilder) StatusRequest(creds Credentials, useExchangeKey bool) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}

	hdr, user := b.authBlocks(creds, useExchangeKey)

	var body strings.Builder
	body.WriteString("    <api:QueryCashRegisterStatusRequest>\n")
	writeHeader(&body, hdr)
	writeUser(&body, user)
	writeSoftware(&body, b.software)
	body.WriteString("      <api:cashRegisterStatusQuery>\n")
	body.WriteString("        <api:APNumberList>\n")
	fmt.Fprintf(&body, "          <api:APNumber>%s</api:APNumber>\n", escape(creds.APNumber))
	body.WriteString("        </api:APNumberList>\n")
	body.WriteString("      </api:cashRegisterStatusQuery>\n")
	body.WriteString("    </api:QueryCashRegisterStatusRequest>")

	return envelope(body.String()), nil
}

// FileRequest builds a QueryCashRegisterFileDataRequest for the file range
// [start, end]. A nil end omits the fileNumberEnd element entirely, which
// asks the service for everything from start onward.
func (b *RequestBuilder) FileRequest(creds Credentials, start int, end *int) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}

	hdr, user := b.authBlocks(creds, false)

	var body strings.Builder
	body.WriteString("    <api:QueryCashRegisterFileDataRequest>\n")
	writeHeader(&body, hdr)
	writeUser(&body, user)
	writeSoftware(&body, b.software)
	body.WriteString("      <api:cashRegisterFileDataQuery>\n")
	fmt.Fprintf(&body, "        <api:APNumber>%s</api:APNumber>\n", escape(creds.APNumber))
	fmt.Fprintf(&body, "        <api:fileNumberStart>%d</api:fileNumberStart>\n", start)
	if end != nil {
		fmt.Fprintf(&body, "        <api:fileNumberEnd>%d</api:fileNumberEnd>\n", *end)
	}
	body.WriteString("      </api:cashRegisterFileDataQuery>\n")
	body.WriteString("    </api:QueryCashRegisterFileDataRequest>")

	return envelope(body.String()), nil
}

// authBlocks derives the header and user blocks from one instant so the
// XML timestamp and the signature timestamp can never drift.
func (b *RequestBuilder) authBlocks(creds Credentials, useExchangeKey bool) (requestHeader, userBlock) {
	requestID := NewRequestID()
	instant := b.now()

	key := creds.SignKey
	if useExchangeKey && creds.ExchangeKey != "" {
		key = creds.ExchangeKey
	}

	hdr := requestHeader{
		RequestID: requestID,
		Timestamp: FormatTimestamp(instant),
	}
	user := userBlock{
		Login:        creds.Login,
		PasswordHash: PasswordHash(creds.Password),
		TaxNumber:    NormalizeTaxNumber(creds.TaxNumber),
		Signature:    RequestSignature(requestID, instant, key),
	}
	return hdr, user
}

func writeHeader(w *strings.Builder, h requestHeader) {
	w.WriteString("      <com:header>\n")
	fmt.Fprintf(w, "        <com:requestId>%s</com:requestId>\n", escape(h.RequestID))
	fmt.Fprintf(w, "        <com:timestamp>%s</com:timestamp>\n", h.Timestamp)
	w.WriteString("        <com:requestVersion>1.0</com:requestVersion>\n")
	w.WriteString("        <com:headerVersion>1.0</com:headerVersion>\n")
	w.WriteString("      </com:header>\n")
}

func writeUser(w *strings.Builder, u userBlock) {
	w.WriteString("      <com:user>\n")
	fmt.Fprintf(w, "        <com:login>%s</com:login>\n", escape(u.Login))
	fmt.Fprintf(w, "        <com:passwordHash cryptoType=\"SHA-512\">%s</com:passwordHash>\n", u.PasswordHash)
	fmt.Fprintf(w, "        <com:taxNumber>%s</com:taxNumber>\n", escape(u.TaxNumber))
	fmt.Fprintf(w, "        <com:requestSignature cryptoType=\"SHA3-512\">%s</com:requestSignature>\n", u.Signature)
	w.WriteString("      </com:user>\n")
}

func writeSoftware(w *strings.Builder, s Software) {
	w.WriteString("      <api:software>\n")
	fmt.Fprintf(w, "        <api:softwareId>%s</api:softwareId>\n", escape(s.ID))
	fmt.Fprintf(w, "        <api:softwareName>%s</api:softwareName>\n", escape(s.Name))
	fmt.Fprintf(w, "        <api:softwareOperation>%s</api:softwareOperation>\n", escape(s.Operation))
	fmt.Fprintf(w, "        <api:softwareMainVersion>%s</api:softwareMainVersion>\n", escape(s.MainVersion))
	fmt.Fprintf(w, "        <api:softwareDevName>%s</api:softwareDevName>\n", escape(s.DevName))
	fmt.Fprintf(w, "        <api:softwareDevContact>%s</api:softwareDevContact>\n", escape(s.DevContact))
	fmt.Fprintf(w, "        <api:softwareDevCountryCode>%s</api:softwareDevCountryCode>\n", escape(s.DevCountryCode))
	fmt.Fprintf(w, "        <api:softwareDevTaxNumber>%s</api:softwareDevTaxNumber>\n", escape(s.DevTaxNumber))
	w.WriteString("      </api:software>\n")
}

func envelope(inner string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:api="%s" xmlns:com="%s">
  <soap:Header/>
  <soap:Body>
%s
  </soap:Body>
</soap:Envelope>`, nsAPI, nsCom, inner)
}

// escape XML-escapes element text content.
func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
