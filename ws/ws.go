package ws

import (
	"github.com/luciancaetano/wsuri"
	"github.com/luciancaetano/wsuri/internal/uri"
	"github.com/luciancaetano/wsuri/internal/websocket"
)

type RateLimitConfig = websocket.RateLimitConfig
type OnDisconnectFn = websocket.OnDisconnectFn
type DialConfig = *websocket.DialConfig

// ParseURI parses and validates a ws:// or wss:// URI.
//
// Returns an *wsuri.InvalidURIError for anything else, including strings
// that cannot be split into URI components at all.
//
// Example:
//
//	u, err := ws.ParseURI("wss://example.com:8443/chat?id=1")
//	// u == wsuri.WebSocketURI{Secure: true, Host: "example.com", Port: 8443, ResourceName: "/chat?id=1"}
func ParseURI(raw string) (wsuri.WebSocketURI, error) {
	return uri.ParseURI(raw)
}

// ParseProxyURI parses and validates an http:// or https:// proxy URI.
// Any path, query or fragment is rejected, including a lone "/".
//
// Example:
//
//	p, err := ws.ParseProxyURI("https://proxy.example.com")
//	// p == wsuri.ProxyURI{Secure: true, Host: "proxy.example.com", Port: 443}
func ParseProxyURI(raw string) (wsuri.ProxyURI, error) {
	return uri.ParseProxyURI(raw)
}

// NewDialer creates a Dialer from cfg. It fails with an error wrapping
// *wsuri.InvalidURIError when cfg names an invalid proxy URI.
//
// Example:
//
//	dialer, err := ws.NewDialer(ws.NewConfig("", ws.NoRateLimit(), func(conn wsuri.Conn, voluntary bool) {
//	    log.Printf("connection %s closed (voluntary=%v)", conn.ID(), voluntary)
//	}))
func NewDialer(cfg DialConfig) (wsuri.Dialer, error) {
	d, err := websocket.New(cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewConfig returns a DialConfig with the default handshake timeout and logger.
// proxyURI may be empty to dial directly.
func NewConfig(proxyURI string, rateLimitConfig *RateLimitConfig, onDisconnect OnDisconnectFn) DialConfig {
	return &websocket.DialConfig{
		ProxyURI:        proxyURI,
		RateLimitConfig: rateLimitConfig,
		OnDisconnect:    onDisconnect,
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
