package agentproxy

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when URL parsing fails.
	ErrInvalidURL = errors.New("invalid URL format")
	// ErrInvalidScheme is returned for schemes other than http and https.
	ErrInvalidScheme = errors.New("only http and https allowed")
	// ErrEmptyHost is returned when URL has no host.
	ErrEmptyHost = errors.New("URL must have a host")
	// ErrPrivateAddress is returned when the URL points at a loopback,
	// private or link-local address.
	ErrPrivateAddress = errors.New("private addresses not allowed")
)

// blockedCIDRs contains private/internal IP ranges.
var blockedCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // Link-local
	"0.0.0.0/8",      // This network
	"100.64.0.0/10",  // Carrier-grade NAT
	"::/128",         // IPv6 unspecified
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
}

var blockedNetworks []*net.IPNet

func init() {
	for _, cidr := range blockedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			blockedNetworks = append(blockedNetworks, network)
		}
	}
}

// TargetPolicy validates agent URLs at registration time.
type TargetPolicy struct {
	// AllowPrivate permits loopback and private targets, for local development.
	AllowPrivate bool
	// Resolver is used to resolve hostnames. Nil skips resolution.
	Resolver *net.Resolver
}

// Validate checks an agent URL. Hosts that fail to resolve are accepted;
// the call fails at relay time and falls back.
func (p TargetPolicy) Validate(ctx context.Context, targetURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return ErrInvalidURL
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrEmptyHost
	}

	if p.AllowPrivate {
		return nil
	}

	if isLocalhostHostname(host) {
		return ErrPrivateAddress
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}

	if p.Resolver == nil {
		return nil
	}
	addrs, err := p.Resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return ErrPrivateAddress
		}
	}
	return nil
}

// isLocalhostHostname checks if hostname is localhost variant.
func isLocalhostHostname(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local")
}

// isBlockedIP checks if IP is in any blocked CIDR range.
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Host extracts the host from a URL for safe logging.
// Full agent URLs may carry credentials in path or query.
func Host(targetURL string) string {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return "(invalid)"
	}
	return parsed.Host
}
