// Package archive unpacks the ZIP attachments returned by the file query
// and recovers the plaintext XML log from each PKCS#7 signed container.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

// Document is one member recovered from a ZIP attachment. The filename
// encodes {ap_number}_{tax_number}_{14-digit timestamp}_{file_number} and
// must survive extraction so the aggregator can parse it.
type Document struct {
	Name string
	Data []byte
}

// ExtractedXML is a recovered log payload plus the strategy that produced
// it, for observability.
type ExtractedXML struct {
	Name     string // container base name with extension replaced by .xml
	XML      string
	Strategy string
}

// UnpackZip reads a ZIP archive from memory and returns the signed
// container members (.p7b).
func UnpackZip(data []byte) ([]Document, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(path.Ext(f.Name), ".p7b") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Name: path.Base(f.Name), Data: content})
	}
	return docs, nil
}

// Extractor recovers XML from signed containers using an ordered strategy
// chain; the first strategy that yields usable XML wins. Strategy failures
// never propagate as errors.
type Extractor struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewExtractor creates an extractor with the default strategy order:
// the openssl cms tool first, then the tolerant byte-pattern scan.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{
		strategies: []Strategy{OpenSSLStrategy{}, PatternStrategy{}},
		log:        log.With().Str("component", "extractor").Logger(),
	}
}

// NewExtractorWithStrategies creates an extractor with a custom chain.
func NewExtractorWithStrategies(log zerolog.Logger, strategies ...Strategy) *Extractor {
	e := NewExtractor(log)
	e.strategies = strategies
	return e
}

// Extract recovers the XML payload from one signed container. The second
// return value is false when every strategy failed; that is not an error
// for the run, the document is simply reported and skipped.
func (e *Extractor) Extract(doc Document) (ExtractedXML, bool) {
	for _, s := range e.strategies {
		xmlContent, ok := s.Extract(doc.Data)
		if !ok {
			continue
		}
		name := strings.TrimSuffix(doc.Name, path.Ext(doc.Name)) + ".xml"
		e.log.Debug().
			Str("container", doc.Name).
			Str("strategy", s.Name()).
			Int("bytes", len(xmlContent)).
			Msg("Recovered XML payload")
		return ExtractedXML{Name: name, XML: xmlContent, Strategy: s.Name()}, true
	}

	e.log.Warn().Str("container", doc.Name).Msg("All extraction strategies failed")
	return ExtractedXML{}, false
}

// ExtractAll runs Extract over every container, returning the recovered
// documents and the number of containers that failed both strategies.
func (e *Extractor) ExtractAll(docs []Document) ([]ExtractedXML, int) {
	var out []ExtractedXML
	failed := 0
	for _, doc := range docs {
		extracted, ok := e.Extract(doc)
		if !ok {
			failed++
			continue
		}
		out = append(out, extracted)
	}
	return out, failed
}
