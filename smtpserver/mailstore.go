// SPDX-License-Identifier: GPL-3.0-or-later

package smtpserver

import "context"

// Recipient is one RCPT TO target, resolved against the local-domain
// folder routing rule (§4.7) when its host matches a configured local
// domain.
type Recipient struct {
	Address Address
	Local   bool
	Folder  string
	Mailbox string
}

// Envelope is the session state handed to [Mailstore.StoreMail] once
// DATA has been accepted.
type Envelope struct {
	Hello         string
	From          Address
	To            []Recipient
	TLS           bool
	Authenticated bool
}

// Mailstore is the storage collaborator the spec treats as an external
// dependency (§1: "disk-backed mail storage ... out of scope"); the
// server only specifies the shape of the calls it makes.
type Mailstore interface {
	// LookupUser reports whether mailbox exists in the local store.
	LookupUser(ctx context.Context, mailbox string) (found bool)

	// QuotaExceeded reports whether mailbox's quota would be exceeded by
	// a message of the given size in bytes.
	QuotaExceeded(ctx context.Context, mailbox string, size int64) bool

	// StoreMail persists env and its raw DATA bytes, returning a
	// queue/message id for the "250 OK: Queued as <id>" reply.
	StoreMail(ctx context.Context, env *Envelope, data []byte) (id string, err error)
}
