package common

// Header names shared by the HTTP layer and its tests.
const (
	RequestIDHeader    = "X-Request-Id"
	ForwardedForHeader = "X-Forwarded-For"
	UserAgentHeader    = "User-Agent"

	// Defaults used when no header names are configured; these match the
	// headers set by Cloudflare in front of the service.
	DefaultIPHeader      = "CF-Connecting-IP"
	DefaultCountryHeader = "CF-IPCountry"
)
