// Package splitter breaks a URI string into its RFC 3986 components without
// applying any scheme-specific rules.
package splitter

import (
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"
)

// Parts holds the raw components of a split URI.
type Parts struct {
	Scheme string
	// Hostname has brackets and port stripped. It is only meaningful when
	// HasHost is true.
	Hostname string
	HasHost  bool
	// Port is 0 when the URI has no port, or an explicit port of 0.
	Port int
	// Path is kept in its escaped form; empty when the URI has none.
	Path string
	// Params is the legacy ";params" segment. net/url leaves it in Path,
	// so it is always empty here.
	Params   string
	Query    string
	Fragment string
	Username string
	Password string
}

// Split splits raw with net/url. It fails when raw cannot be tokenized at
// all, when the host isn't valid UTF-8, or when the port isn't a valid
// 16-bit number. Percent-encoded hosts are refused by net/url.
func Split(raw string) (Parts, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parts{}, err
	}

	hostname := u.Hostname()
	if !utf8.ValidString(hostname) {
		return Parts{}, fmt.Errorf("invalid host %q: not valid UTF-8", hostname)
	}
	p := Parts{
		Scheme:   u.Scheme,
		Hostname: hostname,
		HasHost:  hostname != "",
		Path:     u.EscapedPath(),
		Query:    u.RawQuery,
		Fragment: u.EscapedFragment(),
	}

	if port := u.Port(); port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return Parts{}, fmt.Errorf("invalid port %q", port)
		}
		p.Port = int(n)
	}

	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}

	return p, nil
}
