package nav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Production endpoint base. Overridable for tests via TransportConfig.
const DefaultBaseURL = "https://api-onlinepenztargep.nav.gov.hu"

const (
	statusPath = "/queryCashRegisterFile/v1/queryCashRegisterStatus"
	filesPath  = "/queryCashRegisterFile/v1/queryCashRegisterFile"

	requestTimeout = 120 * time.Second
	errBodyLimit   = 500
)

// TransportError reports a non-200 response or a network failure. It is
// retryable at the batch-scheduling level, never within one call.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nav transport: %v", e.Err)
	}
	return fmt.Sprintf("nav transport: HTTP %d: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Attachment is one binary MTOM part: the declared filename from the part
// header and the raw bytes. Attachments only live for the duration of one
// transport call's processing.
type Attachment struct {
	Filename string
	Data     []byte
}

// Response is the decoded result of one POST: either a plain XML body
// (status queries) or a list of binary attachments (file queries answered
// as multipart/related).
type Response struct {
	Body        []byte
	Attachments []Attachment
	Multipart   bool
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	BaseURL string // defaults to DefaultBaseURL
	Log     zerolog.Logger
}

// Transport posts signed XML documents to the OPG endpoints and decodes
// MTOM multipart responses. It performs no retries; retry policy belongs to
// the orchestrator.
type Transport struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewTransport creates a transport with the fixed protocol timeout.
func NewTransport(cfg TransportConfig) *Transport {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Transport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		log:     cfg.Log.With().Str("client", "nav-opg").Logger(),
	}
}

// PostStatus sends a status query document and returns the raw XML body.
func (t *Transport) PostStatus(ctx context.Context, xmlDoc string) ([]byte, error) {
	resp, err := t.post(ctx, t.baseURL+statusPath, xmlDoc)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PostFileQuery sends a file-range query document and returns the decoded
// response, including any MTOM attachments.
func (t *Transport) PostFileQuery(ctx context.Context, xmlDoc string) (*Response, error) {
	return t.post(ctx, t.baseURL+filesPath, xmlDoc)
}

func (t *Transport) post(ctx context.Context, url, xmlDoc string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(xmlDoc))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("Accept", "application/soap+xml, application/xml, text/xml, */*")

	t.log.Debug().Str("url", url).Int("request_bytes", len(xmlDoc)).Msg("Posting request")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Status: resp.StatusCode, Body: truncate(body, errBodyLimit)}
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(ctype), "multipart/related") {
		return &Response{Body: body}, nil
	}

	boundary, ok := multipartBoundary(ctype)
	if !ok {
		return nil, &TransportError{Status: resp.StatusCode, Body: "multipart response without boundary parameter"}
	}

	attachments := splitMTOMParts(body, boundary)
	t.log.Debug().Int("attachments", len(attachments)).Msg("Decoded multipart response")

	return &Response{Attachments: attachments, Multipart: true}, nil
}

var boundaryRe = regexp.MustCompile(`(?i)boundary="?([^";]+)"?`)

func multipartBoundary(contentType string) (string, bool) {
	m := boundaryRe.FindStringSubmatch(contentType)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var partNameRe = regexp.MustCompile(`(?i)name="?([^";]+)"?`)

// splitMTOMParts splits the raw body on the boundary marker and collects
// every part whose header declares a binary content type. Parts carry a
// header block and a body separated by a blank line; both CRLF and LF
// separators occur in the wild. Empty parts and the trailing "--"
// terminator are skipped.
func splitMTOMParts(body []byte, boundary string) []Attachment {
	var attachments []Attachment
	parts := bytes.Split(body, []byte("--"+boundary))

	idx := 0
	for _, part := range parts {
		part = trimPartFraming(part)
		if len(part) == 0 || bytes.Equal(part, []byte("--")) {
			continue
		}

		headerEnd := bytes.Index(part, []byte("\r\n\r\n"))
		sepLen := 4
		if headerEnd < 0 {
			headerEnd = bytes.Index(part, []byte("\n\n"))
			sepLen = 2
		}
		if headerEnd < 0 {
			continue
		}

		header := strings.ToLower(string(part[:headerEnd]))
		if !strings.Contains(header, "application/octet-stream") && !strings.Contains(header, "application/zip") {
			continue
		}

		name := ""
		if m := partNameRe.FindStringSubmatch(string(part[:headerEnd])); m != nil {
			name = m[1]
		}
		if name == "" {
			name = fmt.Sprintf("attachment_%d.zip", idx)
		}
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			name += ".zip"
		}

		attachments = append(attachments, Attachment{
			Filename: name,
			Data:     part[headerEnd+sepLen:],
		})
		idx++
	}

	return attachments
}

// trimPartFraming strips the single line break on either side of a part
// that belongs to the boundary lines, never payload bytes. A generic
// whitespace trim would eat trailing 0x20/0x09/0x0A/0x0D bytes that are
// part of the binary data itself.
func trimPartFraming(part []byte) []byte {
	part = bytes.TrimPrefix(part, []byte("\r\n"))
	part = bytes.TrimPrefix(part, []byte("\n"))
	if trimmed := bytes.TrimSuffix(part, []byte("\r\n")); len(trimmed) != len(part) {
		return trimmed
	}
	return bytes.TrimSuffix(part, []byte("\n"))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
