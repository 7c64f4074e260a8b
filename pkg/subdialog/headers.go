package subdialog

import (
	"strconv"
	"strings"
)

// splitHeaderParams splits a raw header value of the form
// "token;p1=v1;p2=v2" into its leading token and a map of parameters. Both
// the token and parameter values are trimmed of surrounding whitespace.
// This mirrors the reference implementation's getHeaderParam/
// stripHeaderParams pair, which this module's generic SIP headers (Event,
// Subscription-State) are not typed enough in sipgo to get for free the way
// To/From's tag parameter is.
func splitHeaderParams(raw string) (token string, params map[string]string) {
	parts := strings.Split(raw, ";")
	token = strings.TrimSpace(parts[0])
	params = make(map[string]string, len(parts)-1)

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if eq := strings.IndexByte(p, '='); eq >= 0 {
			key := strings.TrimSpace(p[:eq])
			val := strings.TrimSpace(p[eq+1:])
			params[key] = val
		} else {
			params[p] = ""
		}
	}
	return token, params
}

// eventHeader is the parsed Event header of a SUBSCRIBE/NOTIFY/REFER
// request: the event package name and its id parameter, if any.
type eventHeader struct {
	Event string
	ID    string
}

// parseEventHeader parses the raw value of an Event header.
func parseEventHeader(raw string) eventHeader {
	token, params := splitHeaderParams(raw)
	return eventHeader{Event: token, ID: params["id"]}
}

// parseExpires parses the raw value of an Expires header (after stripping
// any parameters, which Expires does not carry in practice but the
// reference implementation strips defensively). ok is false if raw is empty
// or not a valid non-negative integer.
func parseExpires(raw string) (seconds int, ok bool) {
	token, _ := splitHeaderParams(raw)
	if token == "" {
		return 0, false
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// subscriptionState is the parsed Subscription-State header of a NOTIFY
// request: the state token (active/pending/terminated/...) and its expires
// parameter, if present and parseable.
type subscriptionState struct {
	State   string
	Expires int
}

// parseSubscriptionState parses the raw value of a Subscription-State
// header.
func parseSubscriptionState(raw string) subscriptionState {
	token, params := splitHeaderParams(raw)
	expires, _ := strconv.Atoi(params["expires"])
	return subscriptionState{State: token, Expires: expires}
}
