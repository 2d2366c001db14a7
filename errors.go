package wsuri

import (
	"errors"
	"strings"
)

// URI schemes.
const (
	SchemeWS    = "ws"
	SchemeWSS   = "wss"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Default ports used when a URI omits one.
const (
	DefaultPort       = 80
	DefaultSecurePort = 443
)

// Message types accepted by Conn.Send, as defined in RFC 6455.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Reasons recorded on an InvalidURIError.
const (
	ReasonMalformed         = "malformed URI"
	ReasonUnsupportedScheme = "unsupported scheme"
	ReasonMissingHost       = "missing host"
	ReasonPath              = "path not allowed"
	ReasonParams            = "params not allowed"
	ReasonQuery             = "query not allowed"
	ReasonFragment          = "fragment not allowed"
)

// Standard error messages
const (
	ErrConnectionClosed  = "connection is closed"
	ErrContextCancelled  = "connection context cancelled"
	ErrHandshakeFailed   = "websocket handshake failed"
	ErrRateLimitWait     = "dial rate limit wait failed"
	ErrUnsupportedType   = "unsupported message type"
	ErrInvalidProxy      = "invalid proxy URI"
	ErrConnectionIDError = "failed to generate connection id"
)

// ErrInvalidURI matches every *InvalidURIError with errors.Is.
var ErrInvalidURI = errors.New("invalid URI")

// InvalidURIError is returned when a string isn't a valid URI of the kind
// the parser expects. It is the only error the parsers return.
type InvalidURIError struct {
	// URI is the original input, unmodified.
	URI string
	// Reasons lists every check that failed, in evaluation order.
	Reasons []string
	// Err is the underlying splitting error, if the input could not be split at all.
	Err error
}

func (e *InvalidURIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.URI + " isn't a valid URI"
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidURIError) Unwrap() error {
	return e.Err
}

func (e *InvalidURIError) Is(target error) bool {
	return target == ErrInvalidURI
}
