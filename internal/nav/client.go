package nav

import (
	"context"

	"github.com/rs/zerolog"
)

// Client combines the request builder and the transport into the two
// operations the sync pipeline needs.
type Client struct {
	builder   *RequestBuilder
	transport *Transport
	log       zerolog.Logger
}

// NewClient creates a NAV OPG client. baseURL may be empty to use the
// production endpoint.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		builder:   NewRequestBuilder(DefaultSoftware()),
		transport: NewTransport(TransportConfig{BaseURL: baseURL, Log: log}),
		log:       log.With().Str("client", "nav-opg").Logger(),
	}
}

// QueryStatus asks for the retained file window of the device in creds.
// A nil window with nil error means the service retains no files.
func (c *Client) QueryStatus(ctx context.Context, creds Credentials, useExchangeKey bool) (*SyncWindow, error) {
	doc, err := c.builder.StatusRequest(creds, useExchangeKey)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.PostStatus(ctx, doc)
	if err != nil {
		return nil, err
	}

	window, err := ParseStatusResponse(body)
	if err != nil {
		return nil, err
	}
	if window != nil {
		c.log.Info().
			Str("ap", creds.APNumber).
			Int("min", window.Min).
			Int("max", window.Max).
			Msg("Status query succeeded")
	} else {
		c.log.Info().Str("ap", creds.APNumber).Msg("Status query succeeded, no files retained")
	}
	return window, nil
}

// FetchFiles downloads the log archives for [start, end] in a single
// bounded request and returns the ZIP attachments from the MTOM response.
func (c *Client) FetchFiles(ctx context.Context, creds Credentials, start, end int) ([]Attachment, error) {
	doc, err := c.builder.FileRequest(creds, start, &end)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.PostFileQuery(ctx, doc)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("ap", creds.APNumber).
		Int("start", start).
		Int("end", end).
		Int("attachments", len(resp.Attachments)).
		Msg("File query succeeded")

	return resp.Attachments, nil
}
