package subdialog

import "github.com/emiago/sipgo/sip"

// extractRouteURI parses the "<sip:...>" URI out of a raw Record-Route
// header value, ignoring any header parameters outside the angle brackets.
func extractRouteURI(value string) (sip.Uri, bool) {
	start, end := -1, -1
	for i, ch := range value {
		switch ch {
		case '<':
			start = i + 1
		case '>':
			if start != -1 {
				end = i
			}
		}
		if start != -1 && end != -1 {
			break
		}
	}
	if start == -1 || end == -1 || end <= start {
		return sip.Uri{}, false
	}

	var uri sip.Uri
	if err := sip.ParseUri(value[start:end], &uri); err != nil {
		return sip.Uri{}, false
	}
	return uri, true
}

// recordRouteSet builds the UAC route set from a reply's Record-Route
// headers, reversing header order per RFC 3261 12.1.2 so route[0] is the
// nearest-to-us proxy.
func recordRouteSet(reply *sip.Response) []sip.RouteHeader {
	headers := reply.GetHeaders("Record-Route")
	if len(headers) == 0 {
		return nil
	}

	routes := make([]sip.RouteHeader, 0, len(headers))
	for i := len(headers) - 1; i >= 0; i-- {
		if uri, ok := extractRouteURI(headers[i].Value()); ok {
			routes = append(routes, sip.RouteHeader{Address: uri})
		}
	}
	return routes
}
