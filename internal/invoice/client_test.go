package invoice

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bszub/opgsync/internal/nav"
)

func testCreds() nav.Credentials {
	return nav.Credentials{
		Login:     "user",
		Password:  "secret",
		SignKey:   "sign-key",
		TaxNumber: "12345678",
		APNumber:  "A12345678",
	}
}

func digestResponse(currentPage, availablePage int, digests string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<QueryInvoiceDigestResponse xmlns="http://schemas.nav.gov.hu/OSA/3.0/api">
  <result><funcCode>OK</funcCode></result>
  <invoiceDigestResult>
    <currentPage>%d</currentPage>
    <availablePage>%d</availablePage>
    %s
  </invoiceDigestResult>
</QueryInvoiceDigestResponse>`, currentPage, availablePage, digests)
}

func TestFetchDigestsPaginates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queryInvoiceDigest", r.URL.Path)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))

		switch atomic.AddInt32(&calls, 1) {
		case 1:
			fmt.Fprint(w, digestResponse(1, 2, `
    <invoiceDigest>
      <invoiceNumber>INV-1</invoiceNumber>
      <invoiceOperation>CREATE</invoiceOperation>
      <invoiceIssueDate>2024-01-10</invoiceIssueDate>
      <invoiceNetAmountHUF>100000</invoiceNetAmountHUF>
    </invoiceDigest>`))
		default:
			fmt.Fprint(w, digestResponse(2, 2, `
    <invoiceDigest>
      <invoiceNumber>INV-2</invoiceNumber>
      <invoiceOperation>STORNO</invoiceOperation>
      <invoiceDeliveryDate>2024-01-05</invoiceDeliveryDate>
      <invoiceNetAmountHUF>-100000</invoiceNetAmountHUF>
    </invoiceDigest>`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	digests, err := c.FetchDigests(context.Background(), testCreds(), DateRange{From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)

	require.Len(t, digests, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "INV-1", digests[0].InvoiceNumber)
	assert.Equal(t, 100000.0, digests[0].NetAmountHUF)
	assert.Equal(t, "STORNO", digests[1].Operation)
	assert.Equal(t, -100000.0, digests[1].NetAmountHUF)
}

func TestFetchDigestsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<QueryInvoiceDigestResponse>
  <result>
    <funcCode>ERROR</funcCode>
    <errorCode>INVALID_REQUEST_SIGNATURE</errorCode>
    <message>Helytelen kérés aláírás</message>
  </result>
</QueryInvoiceDigestResponse>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	_, err := c.FetchDigests(context.Background(), testCreds(), DateRange{From: "2024-01-01", To: "2024-01-31"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REQUEST_SIGNATURE")
}

func TestParseDigestResponsePrefixed(t *testing.T) {
	body := `<ns2:QueryInvoiceDigestResponse xmlns:ns2="http://schemas.nav.gov.hu/OSA/3.0/api">
  <ns2:result><ns2:funcCode>OK</ns2:funcCode></ns2:result>
  <ns2:invoiceDigestResult>
    <ns2:currentPage>1</ns2:currentPage>
    <ns2:availablePage>1</ns2:availablePage>
    <ns2:invoiceDigest>
      <ns2:invoiceNumber>A-1</ns2:invoiceNumber>
      <ns2:invoiceNetAmountHUF>42.5</ns2:invoiceNetAmountHUF>
    </ns2:invoiceDigest>
  </ns2:invoiceDigestResult>
</ns2:QueryInvoiceDigestResponse>`

	p, err := parseDigestResponse(body)
	require.NoError(t, err)
	require.Len(t, p.Digests, 1)
	assert.Equal(t, "A-1", p.Digests[0].InvoiceNumber)
	assert.Equal(t, 42.5, p.Digests[0].NetAmountHUF)
	// Operation defaults to CREATE when the listing omits it.
	assert.Equal(t, "CREATE", p.Digests[0].Operation)
}

func TestDigestRequestContainsAuth(t *testing.T) {
	b := NewRequestBuilder(nav.DefaultSoftware())
	doc, err := b.DigestRequest(testCreds(), DateRange{From: "2024-01-01", To: "2024-01-31"}, 3)
	require.NoError(t, err)

	assert.Contains(t, doc, "<common:requestSignature cryptoType=\"SHA3-512\">")
	assert.Contains(t, doc, "<common:passwordHash cryptoType=\"SHA-512\">")
	assert.Contains(t, doc, "<page>3</page>")
	assert.Contains(t, doc, "<invoiceDirection>OUTBOUND</invoiceDirection>")
	assert.Contains(t, doc, "<dateFrom>2024-01-01</dateFrom>")
}
