package policy

import (
	"net/url"
	"strings"
)

// OriginDecision explains whether a browser origin may open the live feed.
type OriginDecision struct {
	Allowed bool
	Reason  string
}

// DecideOrigin allows same-origin browser requests and clients that send no
// Origin header. allowAny disables the check.
func DecideOrigin(origin, host string, allowAny bool) OriginDecision {
	if allowAny {
		return OriginDecision{Allowed: true, Reason: "any origin allowed"}
	}
	origin = strings.TrimSpace(origin)
	if origin == "" {
		// Non-browser clients often omit Origin.
		return OriginDecision{Allowed: true, Reason: "no origin"}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return OriginDecision{Reason: "unparseable origin"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return OriginDecision{Reason: "unsupported origin scheme"}
	}
	if !strings.EqualFold(u.Host, host) {
		return OriginDecision{Reason: "cross-origin request"}
	}
	return OriginDecision{Allowed: true, Reason: "same origin"}
}
