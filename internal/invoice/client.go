package invoice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bszub/opgsync/internal/nav"
)

// DefaultBaseURL is the production Online Invoice v3 service.
const DefaultBaseURL = "https://api.onlineszamla.nav.gov.hu/invoiceService/v3"

const (
	digestPath = "/queryInvoiceDigest"
	maxPages   = 100
)

// Digest is one invoice summary entry from the digest listing.
type Digest struct {
	InvoiceNumber string
	Operation     string // CREATE, MODIFY or STORNO
	IssueDate     string
	DeliveryDate  string
	NetAmountHUF  float64
}

// page is one parsed digest response page.
type page struct {
	CurrentPage   int
	AvailablePage int
	Digests       []Digest
}

// Client queries the Online Invoice digest API.
type Client struct {
	baseURL    string
	builder    *RequestBuilder
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		builder:    NewRequestBuilder(nav.DefaultSoftware()),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.With().Str("client", "online-invoice").Logger(),
	}
}

// FetchDigests returns every outbound digest issued in the range, following
// availablePage until the listing is exhausted.
func (c *Client) FetchDigests(ctx context.Context, creds nav.Credentials, rng DateRange) ([]Digest, error) {
	var all []Digest

	for pageNo := 1; pageNo <= maxPages; pageNo++ {
		p, err := c.fetchPage(ctx, creds, rng, pageNo)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Digests...)

		if pageNo >= p.AvailablePage {
			break
		}
	}

	c.log.Debug().
		Str("from", rng.From).
		Str("to", rng.To).
		Int("digests", len(all)).
		Msg("fetched invoice digests")

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, creds nav.Credentials, rng DateRange, pageNo int) (*page, error) {
	doc, err := c.builder.DigestRequest(creds, rng, pageNo)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+digestPath, strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to create digest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("digest request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read digest response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, fmt.Errorf("invoice service returned status %d: %s", resp.StatusCode, snippet)
	}

	return parseDigestResponse(string(body))
}

// Response field regexes, tolerant of any namespace prefix.
var (
	funcCodeRe      = regexp.MustCompile(`<(?:\w+:)?funcCode>([^<]*)</(?:\w+:)?funcCode>`)
	errorCodeRe     = regexp.MustCompile(`<(?:\w+:)?errorCode>([^<]*)</(?:\w+:)?errorCode>`)
	messageRe       = regexp.MustCompile(`<(?:\w+:)?message>([^<]*)</(?:\w+:)?message>`)
	currentPageRe   = regexp.MustCompile(`<(?:\w+:)?currentPage>(\d+)</(?:\w+:)?currentPage>`)
	availablePageRe = regexp.MustCompile(`<(?:\w+:)?availablePage>(\d+)</(?:\w+:)?availablePage>`)
	digestBlockRe   = regexp.MustCompile(`(?s)<(?:\w+:)?invoiceDigest>(.*?)</(?:\w+:)?invoiceDigest>`)

	invoiceNumberRe = regexp.MustCompile(`<(?:\w+:)?invoiceNumber>([^<]*)</(?:\w+:)?invoiceNumber>`)
	operationRe     = regexp.MustCompile(`<(?:\w+:)?invoiceOperation>([^<]*)</(?:\w+:)?invoiceOperation>`)
	issueDateRe     = regexp.MustCompile(`<(?:\w+:)?invoiceIssueDate>([^<]*)</(?:\w+:)?invoiceIssueDate>`)
	deliveryDateRe  = regexp.MustCompile(`<(?:\w+:)?invoiceDeliveryDate>([^<]*)</(?:\w+:)?invoiceDeliveryDate>`)
	netAmountRe     = regexp.MustCompile(`<(?:\w+:)?invoiceNetAmountHUF>([^<]*)</(?:\w+:)?invoiceNetAmountHUF>`)
)

func parseDigestResponse(body string) (*page, error) {
	fc := funcCodeRe.FindStringSubmatch(body)
	if fc == nil {
		return nil, fmt.Errorf("invoice response has no funcCode")
	}
	if code := strings.TrimSpace(fc[1]); code != "OK" {
		errCode, message := "", ""
		if m := errorCodeRe.FindStringSubmatch(body); m != nil {
			errCode = strings.TrimSpace(m[1])
		}
		if m := messageRe.FindStringSubmatch(body); m != nil {
			message = strings.TrimSpace(m[1])
		}
		return nil, fmt.Errorf("invoice service error: funcCode=%s errorCode=%s message=%s", code, errCode, message)
	}

	p := &page{CurrentPage: 1, AvailablePage: 1}
	if m := currentPageRe.FindStringSubmatch(body); m != nil {
		p.CurrentPage, _ = strconv.Atoi(m[1])
	}
	if m := availablePageRe.FindStringSubmatch(body); m != nil {
		p.AvailablePage, _ = strconv.Atoi(m[1])
	}

	for _, block := range digestBlockRe.FindAllStringSubmatch(body, -1) {
		d := Digest{Operation: "CREATE"}
		if m := invoiceNumberRe.FindStringSubmatch(block[1]); m != nil {
			d.InvoiceNumber = strings.TrimSpace(m[1])
		}
		if m := operationRe.FindStringSubmatch(block[1]); m != nil && strings.TrimSpace(m[1]) != "" {
			d.Operation = strings.TrimSpace(m[1])
		}
		if m := issueDateRe.FindStringSubmatch(block[1]); m != nil {
			d.IssueDate = strings.TrimSpace(m[1])
		}
		if m := deliveryDateRe.FindStringSubmatch(block[1]); m != nil {
			d.DeliveryDate = strings.TrimSpace(m[1])
		}
		if m := netAmountRe.FindStringSubmatch(block[1]); m != nil {
			d.NetAmountHUF, _ = strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		}
		p.Digests = append(p.Digests, d)
	}

	return p, nil
}
