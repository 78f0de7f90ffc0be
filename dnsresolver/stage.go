// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import "context"

// connStage is satisfied by each transport's *ConnFunc wrapper
// (DNSOverUDPConnFunc, DNSOverTCPConnFunc, DNSOverTLSConnFunc,
// DNSOverHTTPSConnFunc, HTTPConnFunc): it turns a freshly-dialed
// connection of type In into a usable DNS transport of type Out.
//
// The var _ connStage[...] = &...{} lines below each constructor are a
// compile-time check that the wrapper's Call method has the right
// shape; nothing in this package composes these stages into a pipeline,
// so there is no Compose/Apply machinery here. The [Resolver] variants
// do not construct or call these wrappers.
type connStage[In, Out any] interface {
	Call(ctx context.Context, in In) (Out, error)
}
