package websocket

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/wsuri"
	"github.com/luciancaetano/wsuri/internal/uri"
)

const defaultHandshakeTimeout = 10 * time.Second

// OnDisconnectFn is a callback invoked once when a dialed connection ends.
// voluntary is true when the close was initiated locally through Close or
// CloseWithCode, and false when the peer closed or the connection failed.
type OnDisconnectFn = func(conn wsuri.Conn, voluntary bool)

// DialConfig configures a Dialer. The zero value dials directly, without
// rate limiting, using slog.Default().
type DialConfig struct {
	// ProxyURI is an optional http:// or https:// proxy URI. Connections are
	// tunneled through it with CONNECT.
	ProxyURI string
	// RateLimitConfig limits how often Dial may open connections. Nil means NoRateLimit.
	RateLimitConfig *RateLimitConfig
	// HandshakeTimeout defaults to 10 seconds.
	HandshakeTimeout time.Duration
	// TLSConfig is used for wss connections.
	TLSConfig *tls.Config
	// ProxyTLSConfig is used to reach an https:// proxy. Its ServerName
	// defaults to the proxy host.
	ProxyTLSConfig *tls.Config
	// Header is sent with every handshake request.
	Header       http.Header
	Logger       *slog.Logger
	OnDisconnect OnDisconnectFn
}

// RateLimitConfig defines rate limiting of outgoing dials
type RateLimitConfig struct {
	// DialsPerSecond defines how many connections may be opened per second
	DialsPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 10 dials per second with burst of 20
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		DialsPerSecond: 10,
		Burst:          20,
		Enabled:        true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Dialer implements the wsuri.Dialer interface on top of gorilla/websocket.
type Dialer struct {
	dialer       websocket.Dialer
	proxy        *wsuri.ProxyURI
	limiter      *rate.Limiter
	header       http.Header
	logger       *slog.Logger
	onDisconnect OnDisconnectFn
}

// New creates a Dialer from cfg. The proxy URI, if any, is validated here
// so that a misconfigured proxy fails before the first dial.
func New(cfg *DialConfig) (*Dialer, error) {
	if cfg == nil {
		cfg = &DialConfig{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	d := &Dialer{
		dialer: websocket.Dialer{
			HandshakeTimeout: timeout,
			TLSClientConfig:  cfg.TLSConfig,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		header:       cfg.Header.Clone(),
		logger:       logger.With("component", "wsuri.dialer"),
		onDisconnect: cfg.OnDisconnect,
	}

	if rl := cfg.RateLimitConfig; rl != nil && rl.Enabled {
		d.limiter = rate.NewLimiter(rl.DialsPerSecond, rl.Burst)
	}

	if cfg.ProxyURI != "" {
		proxy, err := uri.ParseProxyURI(cfg.ProxyURI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", wsuri.ErrInvalidProxy, err)
		}
		d.proxy = &proxy

		// gorilla only speaks CONNECT over plain http, so a secure proxy is
		// handed over as http and the TLS layer comes from the net dialer.
		// Every net dial goes to the proxy once Proxy is set.
		proxyURL := proxy.URL()
		if proxy.Secure {
			proxyURL.Scheme = wsuri.SchemeHTTP
			d.dialer.NetDialContext = secureProxyDial(proxy, cfg.ProxyTLSConfig)
		}
		d.dialer.Proxy = http.ProxyURL(proxyURL)
	}

	return d, nil
}

// Proxy returns the parsed proxy URI, or nil when dialing directly.
func (d *Dialer) Proxy() *wsuri.ProxyURI {
	return d.proxy
}

// Dial parses rawURI and opens a connection to it
func (d *Dialer) Dial(ctx context.Context, rawURI string) (wsuri.Conn, error) {
	u, err := uri.ParseURI(rawURI)
	if err != nil {
		// The input may embed credentials; only the reasons are logged.
		var invalid *wsuri.InvalidURIError
		if errors.As(err, &invalid) {
			d.logger.Warn("rejected websocket URI", "reasons", invalid.Reasons)
		}
		return nil, err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", wsuri.ErrRateLimitWait, err)
		}
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wsuri.ErrConnectionIDError, err)
	}

	logger := d.logger.With("conn_id", id.String(), "host", u.Host, "port", u.Port)
	logger.Debug("dialing", "secure", u.Secure, "resource", u.ResourceName, "proxied", d.proxy != nil)

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), d.handshakeHeader(u))
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logger.Warn("handshake failed", "status", status, "error", err)
		return nil, fmt.Errorf("%s: %w", wsuri.ErrHandshakeFailed, err)
	}

	c := NewConn(id.String(), conn, u, logger, d.onDisconnect)
	logger.Info("connected", "remote_addr", c.RemoteAddr())
	return c, nil
}

// handshakeHeader returns the configured header plus Basic authorization
// when u carries user information.
func (d *Dialer) handshakeHeader(u wsuri.WebSocketURI) http.Header {
	header := d.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if u.UserInfo != nil {
		header.Set("Authorization", "Basic "+basicAuth(u.UserInfo.Username, u.UserInfo.Password))
	}
	return header
}

// secureProxyDial returns a dial function opening TLS connections to the proxy.
func secureProxyDial(proxy wsuri.ProxyURI, cfg *tls.Config) func(ctx context.Context, network, addr string) (net.Conn, error) {
	tlsConfig := cfg.Clone()
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = proxy.Host
	}
	dialer := &tls.Dialer{Config: tlsConfig}
	return dialer.DialContext
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
