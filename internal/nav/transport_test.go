package nav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartBoundary(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
		ok          bool
	}{
		{`multipart/related; boundary="MIME_boundary_123"; type="application/xop+xml"`, "MIME_boundary_123", true},
		{`multipart/related; boundary=simple`, "simple", true},
		{`Multipart/Related; BOUNDARY="Case"`, "Case", true},
		{`application/soap+xml; charset=utf-8`, "", false},
	}
	for _, tt := range tests {
		b, ok := multipartBoundary(tt.contentType)
		assert.Equal(t, tt.ok, ok, tt.contentType)
		assert.Equal(t, tt.expected, b, tt.contentType)
	}
}

func mtomBody(boundary, sep string) []byte {
	var b strings.Builder
	b.WriteString("--" + boundary + sep)
	b.WriteString("Content-Type: application/soap+xml; charset=utf-8" + sep)
	b.WriteString(sep)
	b.WriteString("<soap:Envelope>...</soap:Envelope>" + sep)
	b.WriteString("--" + boundary + sep)
	b.WriteString("Content-Type: application/octet-stream" + sep)
	b.WriteString(`Content-Disposition: attachment; name="A123_69785346_20240301120000_17.zip"` + sep)
	b.WriteString(sep)
	b.WriteString("PK\x03\x04zipbytes")
	b.WriteString(sep + "--" + boundary + "--" + sep)
	return []byte(b.String())
}

func TestSplitMTOMParts(t *testing.T) {
	t.Run("crlf separators", func(t *testing.T) {
		atts := splitMTOMParts(mtomBody("MIME_boundary", "\r\n"), "MIME_boundary")
		require.Len(t, atts, 1)
		assert.Equal(t, "A123_69785346_20240301120000_17.zip", atts[0].Filename)
		assert.Equal(t, []byte("PK\x03\x04zipbytes"), atts[0].Data)
	})

	t.Run("lf separators", func(t *testing.T) {
		atts := splitMTOMParts(mtomBody("MIME_boundary", "\n"), "MIME_boundary")
		require.Len(t, atts, 1)
		assert.Equal(t, "A123_69785346_20240301120000_17.zip", atts[0].Filename)
		assert.Equal(t, []byte("PK\x03\x04zipbytes"), atts[0].Data)
	})

	t.Run("payload trailing whitespace bytes survive", func(t *testing.T) {
		payload := "PK\x03\x04zip \t\r\n"
		var b strings.Builder
		b.WriteString("--MIME_boundary\r\n")
		b.WriteString("Content-Type: application/octet-stream\r\n")
		b.WriteString(`Content-Disposition: attachment; name="A123_69785346_20240301120000_17.zip"` + "\r\n")
		b.WriteString("\r\n")
		b.WriteString(payload)
		b.WriteString("\r\n--MIME_boundary--\r\n")

		atts := splitMTOMParts([]byte(b.String()), "MIME_boundary")
		require.Len(t, atts, 1)
		// Only the single framing CRLF before the boundary comes off; the
		// whitespace inside the binary data stays.
		assert.Equal(t, []byte(payload), atts[0].Data)
	})

	t.Run("unnamed part gets generated zip name", func(t *testing.T) {
		body := []byte("--b\r\nContent-Type: application/octet-stream\r\n\r\ndata\r\n--b--\r\n")
		atts := splitMTOMParts(body, "b")
		require.Len(t, atts, 1)
		assert.Equal(t, "attachment_0.zip", atts[0].Filename)
	})

	t.Run("non-zip name gets zip suffix", func(t *testing.T) {
		body := []byte("--b\r\nContent-Type: application/zip\r\nContent-Disposition: attachment; name=\"part1\"\r\n\r\ndata\r\n--b--\r\n")
		atts := splitMTOMParts(body, "b")
		require.Len(t, atts, 1)
		assert.Equal(t, "part1.zip", atts[0].Filename)
	})

	t.Run("xml-only body yields nothing", func(t *testing.T) {
		body := []byte("--b\r\nContent-Type: application/soap+xml\r\n\r\n<x/>\r\n--b--\r\n")
		assert.Empty(t, splitMTOMParts(body, "b"))
	})
}

func TestTransportPostStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, statusPath, r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/soap+xml")

		w.Header().Set("Content-Type", "application/soap+xml")
		_, _ = w.Write([]byte(okStatusResponse))
	}))
	defer srv.Close()

	tr := NewTransport(TransportConfig{BaseURL: srv.URL, Log: zerolog.Nop()})

	body, err := tr.PostStatus(context.Background(), "<doc/>")
	require.NoError(t, err)
	assert.Contains(t, string(body), "maxAvailableFileNumber")
}

func TestTransportPostFileQueryMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, filesPath, r.URL.Path)
		w.Header().Set("Content-Type", `multipart/related; boundary="MIME_boundary"; type="application/xop+xml"`)
		_, _ = w.Write(mtomBody("MIME_boundary", "\r\n"))
	}))
	defer srv.Close()

	tr := NewTransport(TransportConfig{BaseURL: srv.URL, Log: zerolog.Nop()})

	resp, err := tr.PostFileQuery(context.Background(), "<doc/>")
	require.NoError(t, err)
	assert.True(t, resp.Multipart)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, "A123_69785346_20240301120000_17.zip", resp.Attachments[0].Filename)
}

func TestTransportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewTransport(TransportConfig{BaseURL: srv.URL, Log: zerolog.Nop()})

	_, err := tr.PostStatus(context.Background(), "<doc/>")
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusServiceUnavailable, terr.Status)
	assert.Contains(t, terr.Body, "service unavailable")
}

func TestClientQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/soap+xml")
		_, _ = w.Write([]byte(okStatusResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())

	w, err := c.QueryStatus(context.Background(), testCredentials(), false)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 7, w.Min)
	assert.Equal(t, 42, w.Max)
}

func TestClientFetchFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `multipart/related; boundary="MIME_boundary"`)
		_, _ = w.Write(mtomBody("MIME_boundary", "\r\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())

	atts, err := c.FetchFiles(context.Background(), testCredentials(), 17, 17)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "A123_69785346_20240301120000_17.zip", atts[0].Filename)
}
