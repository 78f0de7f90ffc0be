// SPDX-License-Identifier: GPL-3.0-or-later

package smtpclient

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// DKIMOptions configures [Sign].
type DKIMOptions struct {
	Domain     string
	Selector   string
	PrivateKey *rsa.PrivateKey

	// HeaderNames lists, in order, the header fields the signature
	// covers. A header absent from msg is skipped.
	HeaderNames []string
}

// Sign prepends an RSA-SHA256 DKIM-Signature header to msg (§4.9):
// the body hash is base64(sha256(body + CRLF)); the signature covers
// the canonicalized header block named by opts.HeaderNames plus the
// DKIM-Signature header itself (with an empty b= tag).
func Sign(msg []byte, opts DKIMOptions) ([]byte, error) {
	headerBlock, body, err := splitMessage(msg)
	if err != nil {
		return nil, err
	}
	headers := parseHeaders(headerBlock)

	bh := bodyHash(body)

	var present []string
	for _, name := range opts.HeaderNames {
		if _, ok := headers[strings.ToLower(name)]; ok {
			present = append(present, name)
		}
	}

	sigHeader := fmt.Sprintf("v=1; a=rsa-sha256; d=%s; s=%s; h=%s; bh=%s; b=",
		opts.Domain, opts.Selector, strings.Join(present, ":"), bh)

	var signed strings.Builder
	for _, name := range present {
		fmt.Fprintf(&signed, "%s: %s\r\n", name, headers[strings.ToLower(name)])
	}
	fmt.Fprintf(&signed, "DKIM-Signature: %s", sigHeader)

	digest := sha256.Sum256([]byte(signed.String()))
	sig, err := rsa.SignPKCS1v15(rand.Reader, opts.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("smtpclient: dkim sign: %w", err)
	}

	line := fmt.Sprintf("DKIM-Signature: %sb=%s\r\n", sigHeader[:len(sigHeader)-len("b=")], base64.StdEncoding.EncodeToString(sig))
	out := append([]byte(line), msg...)
	return out, nil
}

// bodyHash computes base64(sha256(body + CRLF)).
func bodyHash(body []byte) string {
	h := sha256.Sum256(append(append([]byte{}, body...), '\r', '\n'))
	return base64.StdEncoding.EncodeToString(h[:])
}

// splitMessage divides msg into its header block and body at the first
// blank line.
func splitMessage(msg []byte) (headerBlock, body []byte, err error) {
	idx := strings.Index(string(msg), "\r\n\r\n")
	if idx < 0 {
		return nil, nil, fmt.Errorf("smtpclient: dkim: message has no header/body separator")
	}
	return msg[:idx], msg[idx+4:], nil
}

// parseHeaders maps lower-cased header name to its (unfolded) value,
// last occurrence wins.
func parseHeaders(block []byte) map[string]string {
	headers := make(map[string]string)
	lines := strings.Split(string(block), "\r\n")
	var name, value string
	flush := func() {
		if name != "" {
			headers[strings.ToLower(name)] = value
		}
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && name != "" {
			value += " " + strings.TrimSpace(line)
			continue
		}
		flush()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			name = ""
			continue
		}
		name = strings.TrimSpace(line[:idx])
		value = strings.TrimSpace(line[idx+1:])
	}
	flush()
	return headers
}
