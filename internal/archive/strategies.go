package archive

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Strategy recovers plaintext XML from a signed container. Implementations
// must be side-effect free beyond invoking an external tool and must report
// failure as (_, false), never as a panic or error.
type Strategy interface {
	Name() string
	Extract(container []byte) (string, bool)
}

const opensslTimeout = 10 * time.Second

// OpenSSLStrategy shells out to `openssl cms` with verification disabled.
// The containers are signed, but the certificate chain is not available to
// this service; only content recovery matters, so -noverify is deliberate.
type OpenSSLStrategy struct{}

func (OpenSSLStrategy) Name() string { return "openssl" }

func (OpenSSLStrategy) Extract(container []byte) (string, bool) {
	tmp, err := os.CreateTemp("", "opg-container-*.p7b")
	if err != nil {
		return "", false
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(container); err != nil {
		tmp.Close()
		return "", false
	}
	tmp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opensslTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "openssl", "cms",
		"-in", tmp.Name(), "-inform", "DER", "-verify", "-noverify")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}

	out := stdout.Bytes()
	if !utf8.Valid(out) {
		return "", false
	}
	decoded := string(out)
	if !strings.Contains(decoded, "<?xml") {
		return "", false
	}
	return decoded, true
}

// The OPG log payload uses a ROWS root element.
const defaultRootTag = "ROWS"

var (
	rowsPayloadRe = regexp.MustCompile(`(?is)(<\?xml[^>]*\?>.*?<ROWS\b[^>]*>.*?</ROWS>)`)
	rootSniffRe   = regexp.MustCompile(`<\?xml[^>]*\?>\s*<([A-Za-z][A-Za-z0-9_]*)\b`)
)

// PatternStrategy decodes the raw container bytes as tolerant UTF-8 and
// scans for the XML payload between the declaration and the closing root
// tag. The signed envelope is a DER wrapper around a UTF-8 payload, so the
// payload survives a byte-level decode even though the container as a whole
// is not valid text.
type PatternStrategy struct{}

func (PatternStrategy) Name() string { return "pattern" }

func (PatternStrategy) Extract(container []byte) (string, bool) {
	content := strings.ToValidUTF8(string(container), "�")

	if m := rowsPayloadRe.FindStringSubmatch(content); m != nil {
		return m[1], true
	}

	// Default root tag not present; sniff the actual root element name
	// from the declaration and retry.
	sniff := rootSniffRe.FindStringSubmatch(content)
	if sniff == nil || sniff[1] == defaultRootTag {
		return "", false
	}
	root := regexp.QuoteMeta(sniff[1])
	re, err := regexp.Compile(`(?is)(<\?xml[^>]*\?>.*?<` + root + `\b[^>]*>.*?</` + root + `>)`)
	if err != nil {
		return "", false
	}
	if m := re.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	return "", false
}
