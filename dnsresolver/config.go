//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop config.go.
//

package dnsresolver

import (
	"net"
	"time"

	"github.com/90s-run/reactor/afd"
)

// Config holds the configuration shared by every exchange variant.
type Config struct {
	// Dialer is not read by any code in this package: the resolv variant
	// exchanges through a dns.Client, and the transport wrappers are
	// handed connections that were already dialed.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier afd.ErrClassifier

	// TimeNow returns the current time.
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: afd.DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}
