package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
)

// Document is one file to archive.
type Document struct {
	Name string
	Data []byte
}

// Archiver is the narrow upload surface the sync pipeline needs; *Client
// satisfies it, tests stub it.
type Archiver interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error
}

// ArchiveDocuments uploads a batch of recovered files under
// {apNumber}/{year}/{name}. Individual upload failures are logged and
// counted but never abort the batch; the originals can always be fetched
// again on the next run.
func (c *Client) ArchiveDocuments(ctx context.Context, apNumber string, year int, docs []Document) int {
	failed := 0
	for _, doc := range docs {
		key := path.Join(apNumber, fmt.Sprintf("%d", year), doc.Name)
		if err := c.Upload(ctx, key, bytes.NewReader(doc.Data), int64(len(doc.Data))); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to archive document")
			failed++
			continue
		}
	}
	if failed > 0 {
		c.log.Warn().Int("failed", failed).Int("total", len(docs)).Msg("some documents were not archived")
	}
	return failed
}
