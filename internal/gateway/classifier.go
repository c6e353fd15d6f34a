package gateway

import "strings"

// RouteClass is the classification of an inbound path. Exactly one class
// applies per request.
type RouteClass int

const (
	// RouteHealth answers uptime probes; bypasses CORS and auth entirely.
	RouteHealth RouteClass = iota
	// RoutePublic needs no credential.
	RoutePublic
	// RouteProtected requires a valid access token before forwarding.
	RouteProtected
)

func (c RouteClass) String() string {
	switch c {
	case RouteHealth:
		return "health"
	case RoutePublic:
		return "public"
	default:
		return "protected"
	}
}

// Classify maps a request path onto its route class using the static lists
// configured at startup. The health path always wins. A protected entry P
// matches on equality or on the "P/" prefix; a trailing "*" makes P a bare
// prefix match. First match wins.
func Classify(path, healthPath string, protectedRoutes []string) RouteClass {
	if entryMatches(healthPath, path) {
		return RouteHealth
	}

	for _, entry := range protectedRoutes {
		if entryMatches(entry, path) {
			return RouteProtected
		}
	}

	return RoutePublic
}

func entryMatches(entry, path string) bool {
	if entry == "" {
		return false
	}
	if wildcard, ok := strings.CutSuffix(entry, "*"); ok {
		return strings.HasPrefix(path, wildcard)
	}
	return path == entry || strings.HasPrefix(path, entry+"/")
}

// UnderAPI reports whether the path belongs to one of the backend API
// namespaces. Paths outside them pass through the gatekeeper untouched.
func UnderAPI(path string, apiEndpoints []string) bool {
	for _, prefix := range apiEndpoints {
		if entryMatches(prefix, path) {
			return true
		}
	}
	return false
}
