package nav

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredentials() Credentials {
	return Credentials{
		Login:     "techuser",
		Password:  "hunter2",
		SignKey:   "signkey",
		TaxNumber: "HU69785346-1-29",
		APNumber:  "A12300001",
	}
}

func fixedBuilder(t *testing.T) *RequestBuilder {
	t.Helper()
	b := NewRequestBuilder(DefaultSoftware())
	b.now = func() time.Time {
		return time.Date(2024, 3, 15, 11, 40, 44, 37_000_000, time.UTC)
	}
	return b
}

var (
	docRequestIDRe = regexp.MustCompile(`<com:requestId>([^<]+)</com:requestId>`)
	docTimestampRe = regexp.MustCompile(`<com:timestamp>([^<]+)</com:timestamp>`)
	docSignatureRe = regexp.MustCompile(`<com:requestSignature cryptoType="SHA3-512">([^<]+)</com:requestSignature>`)
)

func TestStatusRequest(t *testing.T) {
	b := fixedBuilder(t)

	doc, err := b.StatusRequest(testCredentials(), false)
	require.NoError(t, err)

	assert.Contains(t, doc, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, doc, "<api:QueryCashRegisterStatusRequest>")
	assert.Contains(t, doc, "<api:APNumber>A12300001</api:APNumber>")
	assert.Contains(t, doc, "<com:requestVersion>1.0</com:requestVersion>")
	assert.Contains(t, doc, "<com:login>techuser</com:login>")
	assert.Contains(t, doc, "<com:taxNumber>69785346</com:taxNumber>")
	assert.Contains(t, doc, `<com:passwordHash cryptoType="SHA-512">`+PasswordHash("hunter2"))
	assert.Contains(t, doc, "<com:timestamp>2024-03-15T11:40:44.037Z</com:timestamp>")
	assert.Contains(t, doc, "<api:softwareId>"+DefaultSoftware().ID)
}

func TestStatusRequestSignatureMatchesHeader(t *testing.T) {
	b := fixedBuilder(t)

	doc, err := b.StatusRequest(testCredentials(), false)
	require.NoError(t, err)

	reqID := docRequestIDRe.FindStringSubmatch(doc)
	require.NotNil(t, reqID)
	tsRaw := docTimestampRe.FindStringSubmatch(doc)
	require.NotNil(t, tsRaw)
	sig := docSignatureRe.FindStringSubmatch(doc)
	require.NotNil(t, sig)

	ts, err := time.Parse("2006-01-02T15:04:05.000Z", tsRaw[1])
	require.NoError(t, err)

	assert.Equal(t, RequestSignature(reqID[1], ts, "signkey"), sig[1])
}

func TestStatusRequestWithExchangeKey(t *testing.T) {
	b := fixedBuilder(t)

	creds := testCredentials()
	creds.ExchangeKey = "exchangekey"

	doc, err := b.StatusRequest(creds, true)
	require.NoError(t, err)

	reqID := docRequestIDRe.FindStringSubmatch(doc)
	require.NotNil(t, reqID)
	sig := docSignatureRe.FindStringSubmatch(doc)
	require.NotNil(t, sig)

	ts := time.Date(2024, 3, 15, 11, 40, 44, 0, time.UTC)
	assert.Equal(t, RequestSignature(reqID[1], ts, "exchangekey"), sig[1])
}

func TestStatusRequestValidatesCredentials(t *testing.T) {
	b := fixedBuilder(t)

	creds := testCredentials()
	creds.Password = ""
	creds.APNumber = ""

	_, err := b.StatusRequest(creds, false)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "password")
	assert.Contains(t, cfgErr.Missing, "apNumber")
}

func TestFileRequest(t *testing.T) {
	b := fixedBuilder(t)

	end := 42
	doc, err := b.FileRequest(testCredentials(), 17, &end)
	require.NoError(t, err)

	assert.Contains(t, doc, "<api:QueryCashRegisterFileDataRequest>")
	assert.Contains(t, doc, "<api:fileNumberStart>17</api:fileNumberStart>")
	assert.Contains(t, doc, "<api:fileNumberEnd>42</api:fileNumberEnd>")
}

func TestFileRequestOmitsNilEnd(t *testing.T) {
	b := fixedBuilder(t)

	doc, err := b.FileRequest(testCredentials(), 17, nil)
	require.NoError(t, err)

	assert.Contains(t, doc, "<api:fileNumberStart>17</api:fileNumberStart>")
	assert.NotContains(t, doc, "fileNumberEnd")
}

func TestRequestEscapesContent(t *testing.T) {
	b := fixedBuilder(t)

	creds := testCredentials()
	creds.Login = "a<b&c"

	doc, err := b.StatusRequest(creds, false)
	require.NoError(t, err)

	assert.Contains(t, doc, "<com:login>a&lt;b&amp;c</com:login>")
	assert.NotContains(t, doc, "<com:login>a<b&c</com:login>")
}

func TestRequestIDsAreFreshPerRequest(t *testing.T) {
	b := fixedBuilder(t)

	doc1, err := b.StatusRequest(testCredentials(), false)
	require.NoError(t, err)
	doc2, err := b.StatusRequest(testCredentials(), false)
	require.NoError(t, err)

	id1 := docRequestIDRe.FindStringSubmatch(doc1)
	id2 := docRequestIDRe.FindStringSubmatch(doc2)
	require.NotNil(t, id1)
	require.NotNil(t, id2)
	assert.NotEqual(t, id1[1], id2[1])
}
