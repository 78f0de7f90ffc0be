// SPDX-License-Identifier: GPL-3.0-or-later

package httpclient

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/90s-run/reactor/workerctx"
)

// forwardPath is where the peer's httpserver mounts its inbound handler;
// kept in lockstep with httpserver.ForwardPath.
const forwardPath = "/90s/internal/forward"

// NewForwardDialer adapts client into a [workerctx.ForwardDialer]: it
// POSTs the bespoke forwarding request described in the top-level spec's
// actor forwarding wire section to the destination pid's host+port,
// under the pooled connection name "http:" + host + ":" + port that
// [Client.Do] already establishes.
func NewForwardDialer(client *Client) workerctx.ForwardDialer {
	return func(ctx context.Context, to workerctx.PID, sig [32]byte, from workerctx.PID, msgType string, body []byte) error {
		url := fmt.Sprintf("http://%s:%d%s", to.Host, to.Port, forwardPath)
		req := &Request{
			Method: "POST",
			URL:    url,
			Header: map[string]string{
				"signature":  hex.EncodeToString(sig[:]),
				"from":       from.String(),
				"to":         to.String(),
				"type":       msgType,
				"connection": "keep-alive",
			},
			Body: body,
		}
		resp, err := client.Do(ctx, req)
		if err != nil {
			return err
		}
		if resp.Err {
			return fmt.Errorf("httpclient: forward to %s failed: %s", to, resp.ErrorMessage)
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("httpclient: forward to %s rejected with status %d", to, resp.StatusCode)
		}
		return nil
	}
}
