package nav

import (
	"fmt"
	"regexp"
	"strconv"
)

// SyncWindow is the inclusive range of log file numbers the service still
// retains for one device.
type SyncWindow struct {
	APNumber string
	Min      int
	Max      int
}

// Count returns the number of files in the window.
func (w SyncWindow) Count() int { return w.Max - w.Min + 1 }

// The status response arrives with arbitrary ns prefixes, so the fields are
// picked out by local element name rather than by a namespace-bound parse.
var (
	funcCodeRe  = regexp.MustCompile(`<(?:\w+:)?funcCode>(.*?)</(?:\w+:)?funcCode>`)
	errorCodeRe = regexp.MustCompile(`<(?:\w+:)?errorCode>(.*?)</(?:\w+:)?errorCode>`)
	messageRe   = regexp.MustCompile(`<(?:\w+:)?message>(.*?)</(?:\w+:)?message>`)
	minFileRe   = regexp.MustCompile(`<(?:\w+:)?minAvailableFileNumber>(\d+)</(?:\w+:)?minAvailableFileNumber>`)
	maxFileRe   = regexp.MustCompile(`<(?:\w+:)?maxAvailableFileNumber>(\d+)</(?:\w+:)?maxAvailableFileNumber>`)
	apNumberRe  = regexp.MustCompile(`<(?:\w+:)?APNumber>(.*?)</(?:\w+:)?APNumber>`)
)

// ParseStatusResponse extracts the available file window from a status
// response body. Returns (nil, nil) when the result is OK but the device
// currently retains no files; returns an error when funcCode is missing or
// not OK.
func ParseStatusResponse(body []byte) (*SyncWindow, error) {
	s := string(body)

	fc := funcCodeRe.FindStringSubmatch(s)
	if fc == nil {
		return nil, fmt.Errorf("status response without funcCode")
	}
	if fc[1] != "OK" {
		code, msg := "", ""
		if m := errorCodeRe.FindStringSubmatch(s); m != nil {
			code = m[1]
		}
		if m := messageRe.FindStringSubmatch(s); m != nil {
			msg = m[1]
		}
		return nil, fmt.Errorf("status query rejected: funcCode=%s errorCode=%s message=%s", fc[1], code, msg)
	}

	minM := minFileRe.FindStringSubmatch(s)
	maxM := maxFileRe.FindStringSubmatch(s)
	if minM == nil || maxM == nil {
		// OK response but no retained files for this device.
		return nil, nil
	}

	minN, err := strconv.Atoi(minM[1])
	if err != nil {
		return nil, fmt.Errorf("invalid minAvailableFileNumber %q: %w", minM[1], err)
	}
	maxN, err := strconv.Atoi(maxM[1])
	if err != nil {
		return nil, fmt.Errorf("invalid maxAvailableFileNumber %q: %w", maxM[1], err)
	}
	if minN > maxN {
		return nil, fmt.Errorf("inverted file window %d-%d", minN, maxN)
	}

	w := &SyncWindow{Min: minN, Max: maxN}
	if m := apNumberRe.FindStringSubmatch(s); m != nil {
		w.APNumber = m[1]
	}
	return w, nil
}
