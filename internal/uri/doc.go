// Package uri validates WebSocket and proxy URIs and builds their canonical
// values.
//
// Tokenizing is delegated to a Splitter; this package only decides whether
// the split components form an acceptable URI. Each rule is a named check
// and every failing check is listed on the returned *wsuri.InvalidURIError,
// which always references the original input.
package uri
