// Package geoip is the optional geographic enrichment hook. The engine only
// depends on the Resolver interface; deployments without a lookup service run
// with the no-op resolver and every event carries the unknown marker.
package geoip

// UnknownCountry is recorded when no lookup is configured or a lookup fails.
const UnknownCountry = "unknown"

// Resolver maps a source IP to an ISO country code. Implementations must be
// fast and non-blocking; event recording never waits on a slow lookup.
type Resolver interface {
	Country(ip string) string
}

// NoopResolver is the default resolver used when enrichment is disabled.
type NoopResolver struct{}

// Country implements Resolver.
func (NoopResolver) Country(string) string { return UnknownCountry }

// StaticResolver serves lookups from a fixed table, falling back to the
// unknown marker. Useful for tests and air-gapped deployments.
type StaticResolver map[string]string

// Country implements Resolver.
func (r StaticResolver) Country(ip string) string {
	if cc, ok := r[ip]; ok {
		return cc
	}
	return UnknownCountry
}
