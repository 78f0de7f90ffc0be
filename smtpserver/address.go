// SPDX-License-Identifier: GPL-3.0-or-later

package smtpserver

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a parsed envelope address: the mailbox's local part and
// host, as given on the wire (before any local-domain folder routing is
// applied — see [RouteLocalDelivery], grounded on
// `mail::parse_smtp_address` in the original "90s" framework's
// `src/90s/mail/parser.cpp`).
type Address struct {
	Local string
	Host  string
}

// String renders a back into "local@host", or "" for the null sender.
func (a Address) String() string {
	if a.Local == "" && a.Host == "" {
		return ""
	}
	return a.Local + "@" + a.Host
}

// ParseAddress parses the argument of a MAIL FROM or RCPT TO command:
// "<local@host>" optionally followed by " SIZE=n" (and, per real-world
// servers, other space-separated ESMTP parameters, which are accepted
// and ignored). The null sender "<>" parses to a zero Address with
// size 0 and no error, as MAIL FROM requires for bounce messages.
func ParseAddress(arg string) (Address, int64, error) {
	arg = strings.TrimSpace(arg)

	var size int64
	end := strings.IndexByte(arg, '>')
	start := strings.IndexByte(arg, '<')
	if start != 0 || end < 0 {
		return Address{}, 0, fmt.Errorf("smtpserver: malformed address %q", arg)
	}
	inner := arg[1:end]
	rest := strings.TrimSpace(arg[end+1:])
	for _, param := range strings.Fields(rest) {
		if v, ok := strings.CutPrefix(strings.ToUpper(param), "SIZE="); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Address{}, 0, fmt.Errorf("smtpserver: malformed SIZE parameter %q: %w", param, err)
			}
			size = n
		}
	}

	if inner == "" {
		return Address{}, size, nil
	}
	at := strings.LastIndexByte(inner, '@')
	if at <= 0 || at == len(inner)-1 {
		return Address{}, 0, fmt.Errorf("smtpserver: malformed address %q", arg)
	}
	return Address{Local: inner[:at], Host: inner[at+1:]}, size, nil
}

// RouteLocalDelivery applies the local-domain folder routing rule
// against addr, checking it against every domain in localDomains. Two
// forms name a folder within a local mailbox:
//
//   - a dotted host prefix ("bob@folder.example.com" where
//     "example.com" is a configured local domain) delivers to mailbox
//     "folder@example.com" inside folder "bob" — the ORIGINAL local
//     part becomes the folder name, and the dotted host prefix becomes
//     the mailbox's own local part;
//   - a literal ".mbox." infix in the local part against an exact
//     local-domain match ("vacation.mbox.bob@example.com") delivers to
//     mailbox "bob@example.com" inside folder "vacation".
//
// An address whose host matches a local domain but neither form
// applies routes to that mailbox's own inbox (empty folder). An
// address whose host matches no local domain is not local at all
// (local is false, mailbox is the full original address, unrouted).
func RouteLocalDelivery(addr Address, localDomains map[string]bool) (local bool, folder, mailbox string) {
	original := addr.Local + "@" + addr.Host
	mailbox = original
	for domain := range localDomains {
		dotSuffix := "." + domain
		if strings.HasSuffix(strings.ToLower(addr.Host), strings.ToLower(dotSuffix)) {
			local = true
			folder = addr.Local
			prefix := addr.Host[:len(addr.Host)-len(dotSuffix)]
			mailbox = prefix + "@" + domain
			break
		}
		if strings.EqualFold(addr.Host, domain) {
			local = true
			if idx := strings.Index(original, ".mbox."); idx > 0 {
				folder = original[:idx]
				mailbox = original[idx+len(".mbox."):]
			}
			break
		}
	}
	return local, folder, mailbox
}
