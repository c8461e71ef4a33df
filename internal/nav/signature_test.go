package nav

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexUpperRe = regexp.MustCompile(`^[0-9A-F]+$`)

func TestRequestSignature(t *testing.T) {
	ts := time.Date(2024, 3, 15, 11, 40, 44, 0, time.UTC)

	sig := RequestSignature("TESTREQUEST123", ts, "signkey")
	assert.Len(t, sig, 128)
	assert.Regexp(t, hexUpperRe, sig)

	// Deterministic for the same inputs.
	assert.Equal(t, sig, RequestSignature("TESTREQUEST123", ts, "signkey"))

	// Different request ID or key changes the signature.
	assert.NotEqual(t, sig, RequestSignature("TESTREQUEST124", ts, "signkey"))
	assert.NotEqual(t, sig, RequestSignature("TESTREQUEST123", ts, "otherkey"))
}

func TestRequestSignatureIgnoresSubSeconds(t *testing.T) {
	base := time.Date(2024, 3, 15, 11, 40, 44, 0, time.UTC)
	withMillis := base.Add(37 * time.Millisecond)
	withMicros := base.Add(999999 * time.Microsecond)

	sig := RequestSignature("TESTREQUEST123", base, "signkey")
	assert.Equal(t, sig, RequestSignature("TESTREQUEST123", withMillis, "signkey"))
	assert.Equal(t, sig, RequestSignature("TESTREQUEST123", withMicros, "signkey"))
}

func TestRequestSignatureUsesUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	utc := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	local := time.Date(2024, 3, 15, 11, 0, 0, 0, loc)

	assert.Equal(t,
		RequestSignature("REQ", utc, "k"),
		RequestSignature("REQ", local, "k"))
}

func TestPasswordHash(t *testing.T) {
	h := PasswordHash("hunter2")
	assert.Len(t, h, 128)
	assert.Regexp(t, hexUpperRe, h)
	assert.Equal(t, h, PasswordHash("hunter2"))
	assert.NotEqual(t, h, PasswordHash("hunter3"))
}

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		require.LessOrEqual(t, len(id), 30)
		require.NotContains(t, id, "-")
		require.Regexp(t, `^[a-f0-9]+$`, id)
		require.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2022, 2, 1, 11, 40, 44, 37_000_000, time.UTC)
	assert.Equal(t, "2022-02-01T11:40:44.037Z", FormatTimestamp(ts))

	loc := time.FixedZone("CET", 3600)
	assert.Equal(t, "2022-02-01T10:40:44.037Z", FormatTimestamp(ts.In(loc).Add(-time.Hour)))
}

func TestNormalizeTaxNumber(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"69785346", "69785346"},
		{"HU69785346", "69785346"},
		{"HU69785346-1-29", "69785346"},
		{"69785346-2-13", "69785346"},
		{" hu69785346 ", "69785346"},
		{"697853461", "69785346"},
		{"1234567", ""},
		{"", ""},
		{"no digits here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeTaxNumber(tt.raw), "raw %q", tt.raw)
	}
}
