// SPDX-License-Identifier: GPL-3.0-or-later

package httpclient

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
)

// target is a parsed "http(s)://[user:pass@]host[:port]/path" request URL.
type target struct {
	TLS      bool
	Host     string
	Port     int
	Path     string
	AuthHdr  string // "Basic …", empty if no userinfo was present
	PoolName string
}

// parseTarget parses rawURL per §4.5: scheme selects the default port,
// a userinfo segment becomes a base64-encoded Basic authorization header.
func parseTarget(rawURL string) (*target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("httpclient: unsupported scheme " + u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("httpclient: missing host")
	}

	t := &target{TLS: u.Scheme == "https", Host: u.Hostname()}
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, errors.New("httpclient: invalid port " + portStr)
		}
		t.Port = port
	} else if t.TLS {
		t.Port = 443
	} else {
		t.Port = 80
	}

	t.Path = u.EscapedPath()
	if t.Path == "" {
		t.Path = "/"
	}
	if u.RawQuery != "" {
		t.Path += "?" + u.RawQuery
	}

	if u.User != nil {
		password, _ := u.User.Password()
		creds := u.User.Username() + ":" + password
		t.AuthHdr = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}

	t.PoolName = "http:" + t.Host + ":" + strconv.Itoa(t.Port)
	return t, nil
}
