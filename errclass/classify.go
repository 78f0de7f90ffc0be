//
// SPDX-License-Identifier: GPL-3.0-or-later
//

// Package errclass classifies network errors into short, OS-independent
// tags (e.g. "ECONNRESET", "ETIMEDOUT") for structured logging.
//
// [Classify] is github.com/bassosimone/errclass's own New function,
// referenced under this module's package name so afd, workerctx,
// httpclient, smtpserver, and smtpclient can all wrap it in
// afd.ErrClassifierFunc without importing the upstream module directly.
package errclass

import upstream "github.com/bassosimone/errclass"

// Classify returns a short tag describing err (e.g. "ETIMEDOUT",
// "ECONNRESET"), or upstream's generic tag for unrecognized errors, or ""
// if err is nil.
func Classify(err error) string {
	return upstream.New(err)
}
