// Package receipts parses recovered OPG log XML into receipt records and
// aggregates them per source file into daily revenue summaries.
package receipts

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

var errEmptyDocument = errors.New("receipts: empty document")

// Receipt is one parsed transaction. Amount is gross, in minor currency
// units (fillér-less HUF).
type Receipt struct {
	Date      string // YYYY-MM-DD, local calendar date of the transaction
	Amount    int64
	Cancelled bool
}

// node is a minimal namespace-agnostic XML tree. The log files sometimes
// declare a namespace and sometimes do not; all lookups go by local name so
// both forms parse identically.
type node struct {
	name     string
	text     string
	children []*node
}

func (n *node) find(local string) *node {
	for _, c := range n.children {
		if c.name == local {
			return c
		}
	}
	return nil
}

func (n *node) findAll(local string, out *[]*node) {
	for _, c := range n.children {
		if c.name == local {
			*out = append(*out, c)
		}
		c.findAll(local, out)
	}
}

func localName(n xml.Name) string { return n.Local }

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// The payloads occasionally carry a legacy encoding declaration even
	// though the bytes are UTF-8 by the time they reach us.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) { return input, nil }

	var stack []*node
	root := (*node)(nil)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: localName(t.Name)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errEmptyDocument
	}
	return root, nil
}

// ParseReceipts extracts the receipt entries (NYN elements) from one log
// document, keeping only receipts whose calendar year matches year. The
// year filter is hard: off-year receipts are dropped entirely, not
// zero-filled. Malformed XML yields an empty slice with a nil error so one
// bad document never aborts a run; skippedOffYear reports how many
// otherwise valid receipts the year filter removed.
func ParseReceipts(data []byte, year int) (receipts []Receipt, skippedOffYear int) {
	root, err := parseTree(data)
	if err != nil {
		return nil, 0
	}

	var entries []*node
	root.findAll("NYN", &entries)

	for _, entry := range entries {
		dts := entry.find("DTS")
		if dts == nil || strings.TrimSpace(dts.text) == "" {
			continue
		}

		ts, err := parseReceiptTime(strings.TrimSpace(dts.text))
		if err != nil {
			continue
		}
		if ts.Year() != year {
			skippedOffYear++
			continue
		}

		sum := entry.find("SUM")
		if sum == nil || strings.TrimSpace(sum.text) == "" {
			continue
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(sum.text), 10, 64)
		if err != nil {
			continue
		}

		cnc := entry.find("CNC")
		cancelled := cnc != nil && strings.TrimSpace(cnc.text) == "1"

		receipts = append(receipts, Receipt{
			Date:      ts.Format("2006-01-02"),
			Amount:    amount,
			Cancelled: cancelled,
		})
	}
	return receipts, skippedOffYear
}

// parseReceiptTime parses the DTS timestamp: local time with a UTC offset
// suffix, occasionally without seconds.
func parseReceiptTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04-07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s}
}
