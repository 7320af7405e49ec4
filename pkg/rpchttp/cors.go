package rpchttp

type corsMode int

const (
	corsDisabled corsMode = iota
	corsAll
	corsOnly
)

// CorsPolicy decides the Access-Control-Allow-Origin value of a response.
// The zero value is disabled.
type CorsPolicy struct {
	mode    corsMode
	origins []string
}

// CorsDisabled never emits CORS headers.
func CorsDisabled() CorsPolicy {
	return CorsPolicy{mode: corsDisabled}
}

// CorsAllowAll answers "*" to any request carrying an Origin header.
func CorsAllowAll() CorsPolicy {
	return CorsPolicy{mode: corsAll}
}

// CorsAllowOnly echoes the request Origin when it exactly matches one of
// origins.
func CorsAllowOnly(origins ...string) CorsPolicy {
	return CorsPolicy{mode: corsOnly, origins: append([]string(nil), origins...)}
}

// String returns the mode name used in configuration and logs.
func (p CorsPolicy) String() string {
	switch p.mode {
	case corsAll:
		return "all"
	case corsOnly:
		return "only"
	default:
		return "disabled"
	}
}

// Origins returns the configured origins of an allow-only policy.
func (p CorsPolicy) Origins() []string {
	return append([]string(nil), p.origins...)
}

// AllowedOrigin returns the Access-Control-Allow-Origin value for a
// request whose Origin header is origin (present is false when there was
// none). It reports false when no header is to be sent. The comparison is
// exact: an arbitrary origin is never reflected.
func (p CorsPolicy) AllowedOrigin(origin string, present bool) (string, bool) {
	if !present {
		return "", false
	}
	switch p.mode {
	case corsAll:
		return "*", true
	case corsOnly:
		for _, o := range p.origins {
			if o == origin {
				return origin, true
			}
		}
	}
	return "", false
}

// corsHeaders returns the header fields sent with an allowed origin.
func corsHeaders(origin string) []headerField {
	return []headerField{
		{"Access-Control-Allow-Origin", origin},
		{"Access-Control-Allow-Methods", "OPTIONS, POST"},
		{"Access-Control-Allow-Headers", "Origin, Content-Type, Accept"},
	}
}
