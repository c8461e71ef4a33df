// Package nav implements the NAV Online Pénztárgép (OPG) protocol: signed
// SOAP request construction, the HTTPS transport with MTOM attachment
// handling, and status response parsing.
package nav

import (
	"fmt"
	"regexp"
	"strings"
)

// Credentials holds the per-merchant technical user data required to sign
// requests. Values are passed by value into the pipeline; there is no
// process-wide credential state.
type Credentials struct {
	Login       string
	Password    string
	SignKey     string
	ExchangeKey string // optional, some deployments sign with this instead
	TaxNumber   string // 8-digit canonical form
	APNumber    string // cash register device identifier
}

// ConfigError reports missing or invalid credential fields. It is fatal for
// the affected merchant only.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("incomplete NAV credentials: missing %s", strings.Join(e.Missing, ", "))
}

// Validate checks that all required fields are present. ExchangeKey is
// optional.
func (c Credentials) Validate() error {
	var missing []string
	if c.Login == "" {
		missing = append(missing, "login")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.SignKey == "" {
		missing = append(missing, "signKey")
	}
	if c.TaxNumber == "" {
		missing = append(missing, "taxNumber")
	}
	if c.APNumber == "" {
		missing = append(missing, "apNumber")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

var (
	eightDigits = regexp.MustCompile(`(\d{8})`)
	nonDigits   = regexp.MustCompile(`\D+`)
)

// NormalizeTaxNumber reduces a raw Hungarian tax number to its 8-digit
// canonical form. Accepts values with an HU prefix, dashes or the VAT group
// suffix (e.g. "HU69785346-1-29"). Returns an empty string when no 8 digits
// can be recovered.
func NormalizeTaxNumber(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "HU")

	if m := eightDigits.FindString(s); m != "" {
		return m
	}

	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) >= 8 {
		return digits[:8]
	}
	return ""
}
