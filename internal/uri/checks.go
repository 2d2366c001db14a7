package uri

import (
	"github.com/luciancaetano/wsuri"
	"github.com/luciancaetano/wsuri/internal/splitter"
)

// check is a named predicate over split components.
type check struct {
	reason string
	ok     func(p splitter.Parts) bool
}

var webSocketChecks = []check{
	{wsuri.ReasonUnsupportedScheme, schemeIn(wsuri.SchemeWS, wsuri.SchemeWSS)},
	{wsuri.ReasonMissingHost, hasHost},
	// Params aren't allowed in ws or wss URIs. The net/url splitter never
	// extracts them, but a Splitter that does must report them empty.
	{wsuri.ReasonParams, func(p splitter.Parts) bool { return p.Params == "" }},
	{wsuri.ReasonFragment, func(p splitter.Parts) bool { return p.Fragment == "" }},
}

var proxyChecks = []check{
	{wsuri.ReasonUnsupportedScheme, schemeIn(wsuri.SchemeHTTP, wsuri.SchemeHTTPS)},
	{wsuri.ReasonMissingHost, hasHost},
	{wsuri.ReasonPath, func(p splitter.Parts) bool { return p.Path == "" }},
	{wsuri.ReasonParams, func(p splitter.Parts) bool { return p.Params == "" }},
	{wsuri.ReasonQuery, func(p splitter.Parts) bool { return p.Query == "" }},
	{wsuri.ReasonFragment, func(p splitter.Parts) bool { return p.Fragment == "" }},
}

func schemeIn(schemes ...string) func(p splitter.Parts) bool {
	return func(p splitter.Parts) bool {
		for _, s := range schemes {
			if p.Scheme == s {
				return true
			}
		}
		return false
	}
}

func hasHost(p splitter.Parts) bool {
	return p.HasHost
}

// failed evaluates every check and returns the reasons of those that failed.
func failed(checks []check, p splitter.Parts) []string {
	var reasons []string
	for _, c := range checks {
		if !c.ok(p) {
			reasons = append(reasons, c.reason)
		}
	}
	return reasons
}
