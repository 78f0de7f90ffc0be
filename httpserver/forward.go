// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import (
	"context"
	"encoding/hex"

	"github.com/90s-run/reactor/render"
	"github.com/90s-run/reactor/workerctx"
)

// ForwardPath is where [NewForwardPage] is mounted per the actor
// forwarding wire format.
const ForwardPath = "/90s/internal/forward"

// NewForwardPage returns the server-side half of the cross-host actor
// forwarding wire: it parses the Signature/From/To/Type headers and body
// produced by httpclient's forward dialer and hands them to worker's
// [*workerctx.Context.ReceiveForward].
//
// Register it with: registry.Register("POST", ForwardPath, NewForwardPage(worker), nil)
func NewForwardPage(worker *workerctx.Context) Page {
	return PageFunc(func(ctx context.Context, env *Environment) (*render.Context, error) {
		sigHex := env.Header["signature"]
		sigBytes, err := hex.DecodeString(sigHex)
		if err != nil || len(sigBytes) != 32 {
			return nil, &StatusError{Status: 400}
		}
		var sig [32]byte
		copy(sig[:], sigBytes)

		from, err := workerctx.ParsePID(env.Header["from"])
		if err != nil {
			return nil, &StatusError{Status: 400}
		}
		to, err := workerctx.ParsePID(env.Header["to"])
		if err != nil {
			return nil, &StatusError{Status: 400}
		}
		msgType := env.Header["type"]

		if err := worker.ReceiveForward(sig, from, to, msgType, env.Body); err != nil {
			return nil, &StatusError{Status: 401}
		}
		return render.New().Write("OK"), nil
	})
}
