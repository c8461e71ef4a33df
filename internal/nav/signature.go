package nav

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// NewRequestID generates a request identifier matching the NAV pattern
// [+a-zA-Z0-9_]{1,30}: a UUID with dashes stripped, truncated to 30
// characters. A fresh ID is generated per request and never reused across
// retries.
func NewRequestID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(id) > 30 {
		id = id[:30]
	}
	return id
}

// FormatTimestamp renders an instant the way the XML header expects it:
// ISO 8601 UTC with millisecond precision and a literal Z suffix, e.g.
// "2022-02-01T11:40:44.037Z".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// signatureTimestamp renders the same instant the way the request signature
// expects it: truncated to whole seconds, all non-digit characters removed,
// exactly 14 digits (YYYYMMDDHHMMSS). This is deliberately NOT the header
// representation; both must derive from the same instant.
func signatureTimestamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// PasswordHash returns the SHA-512 hash of the plaintext password as
// uppercase hexadecimal, as carried in the passwordHash element.
func PasswordHash(password string) string {
	sum := sha512.Sum512([]byte(password))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// RequestSignature computes the SHA3-512 request signature over
// requestID + 14-digit timestamp + key, rendered as uppercase hex. The
// result is insensitive to the sub-second component of ts.
func RequestSignature(requestID string, ts time.Time, key string) string {
	data := requestID + signatureTimestamp(ts) + key
	sum := sha3.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
