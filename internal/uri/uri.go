package uri

import (
	"strings"

	"github.com/luciancaetano/wsuri"
	"github.com/luciancaetano/wsuri/internal/splitter"
)

// Splitter splits a URI string into raw components. It must not apply
// scheme-specific rules; those are the parser's job.
type Splitter interface {
	Split(raw string) (splitter.Parts, error)
}

// SplitterFunc adapts a function to the Splitter interface.
type SplitterFunc func(raw string) (splitter.Parts, error)

// Split calls f(raw).
func (f SplitterFunc) Split(raw string) (splitter.Parts, error) {
	return f(raw)
}

// Parser validates split URIs. The zero value is not usable; use New or
// the package-level functions.
type Parser struct {
	splitter Splitter
}

// New returns a Parser delegating tokenization to s.
func New(s Splitter) *Parser {
	return &Parser{splitter: s}
}

var defaultParser = New(SplitterFunc(splitter.Split))

// ParseURI parses and validates a WebSocket URI with the net/url splitter.
func ParseURI(raw string) (wsuri.WebSocketURI, error) {
	return defaultParser.ParseURI(raw)
}

// ParseProxyURI parses and validates an HTTP(S) proxy URI with the net/url splitter.
func ParseProxyURI(raw string) (wsuri.ProxyURI, error) {
	return defaultParser.ParseProxyURI(raw)
}

// ParseURI parses and validates a WebSocket URI.
func (p *Parser) ParseURI(raw string) (wsuri.WebSocketURI, error) {
	parts, err := p.split(raw, webSocketChecks)
	if err != nil {
		return wsuri.WebSocketURI{}, err
	}

	secure := parts.Scheme == wsuri.SchemeWSS

	resourceName := parts.Path
	if resourceName == "" {
		resourceName = "/"
	}
	if parts.Query != "" {
		resourceName += "?" + parts.Query
	}

	return wsuri.WebSocketURI{
		Secure:       secure,
		Host:         strings.ToLower(parts.Hostname),
		Port:         portOrDefault(parts.Port, secure),
		ResourceName: resourceName,
		UserInfo:     userInfo(parts),
	}, nil
}

// ParseProxyURI parses and validates an HTTP(S) proxy URI.
func (p *Parser) ParseProxyURI(raw string) (wsuri.ProxyURI, error) {
	parts, err := p.split(raw, proxyChecks)
	if err != nil {
		return wsuri.ProxyURI{}, err
	}

	secure := parts.Scheme == wsuri.SchemeHTTPS

	return wsuri.ProxyURI{
		Secure:   secure,
		Host:     strings.ToLower(parts.Hostname),
		Port:     portOrDefault(parts.Port, secure),
		UserInfo: userInfo(parts),
	}, nil
}

// split tokenizes raw and runs every check against it. Splitter failures
// are reported as InvalidURIError like any other rejection.
func (p *Parser) split(raw string, checks []check) (splitter.Parts, error) {
	parts, err := p.splitter.Split(raw)
	if err != nil {
		return splitter.Parts{}, &wsuri.InvalidURIError{
			URI:     raw,
			Reasons: []string{wsuri.ReasonMalformed},
			Err:     err,
		}
	}

	if reasons := failed(checks, parts); len(reasons) > 0 {
		return splitter.Parts{}, &wsuri.InvalidURIError{URI: raw, Reasons: reasons}
	}
	return parts, nil
}

func portOrDefault(port int, secure bool) int {
	if port != 0 {
		return port
	}
	if secure {
		return wsuri.DefaultSecurePort
	}
	return wsuri.DefaultPort
}

func userInfo(parts splitter.Parts) *wsuri.UserInfo {
	if parts.Username == "" && parts.Password == "" {
		return nil
	}
	return &wsuri.UserInfo{Username: parts.Username, Password: parts.Password}
}
