// Package urlvalidation checks outbound callback URLs for SSRF exposure
// before the Control Gateway's callback sink dials them.
package urlvalidation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Option configures URL validation behavior.
type Option func(*validationConfig)

type validationConfig struct {
	allowPrivate bool
}

// AllowPrivateIPs disables the private IP check. Use only in tests.
func AllowPrivateIPs() Option {
	return func(c *validationConfig) {
		c.allowPrivate = true
	}
}

// ValidateCallbackURL checks that a URL is safe for use as a Member's
// on_join/on_leave callback endpoint (spec §4.6). It rejects private and
// loopback IPs to prevent SSRF against the operator's own network.
func ValidateCallbackURL(rawURL string, opts ...Option) error {
	var cfg validationConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "http" && scheme != "grpc" {
		return fmt.Errorf("URL scheme %q not allowed; use http, https, or grpc", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
	}

	if !cfg.allowPrivate {
		for _, ipStr := range ips {
			ip := net.ParseIP(ipStr)
			if ip == nil {
				continue
			}
			if isPrivateIP(ip) {
				return fmt.Errorf("URL resolves to private/reserved IP %s", ipStr)
			}
		}
	}

	return nil
}

// isPrivateIP returns true if the IP is in a private, loopback, link-local,
// or other reserved range that should not receive outbound callbacks.
func isPrivateIP(ip net.IP) bool {
	privateRanges := []*net.IPNet{
		parseCIDR("10.0.0.0/8"),
		parseCIDR("172.16.0.0/12"),
		parseCIDR("192.168.0.0/16"),
		parseCIDR("127.0.0.0/8"),
		parseCIDR("169.254.0.0/16"),
		parseCIDR("::1/128"),
		parseCIDR("fc00::/7"),
		parseCIDR("fe80::/10"),
		parseCIDR("100.64.0.0/10"),
		parseCIDR("0.0.0.0/8"),
		parseCIDR("192.0.0.0/24"),
		parseCIDR("192.0.2.0/24"),
		parseCIDR("198.51.100.0/24"),
		parseCIDR("203.0.113.0/24"),
		parseCIDR("198.18.0.0/15"),
		parseCIDR("224.0.0.0/4"),
		parseCIDR("240.0.0.0/4"),
		parseCIDR("255.255.255.255/32"),
	}

	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDR(s string) *net.IPNet {
	_, network, err := net.ParseCIDR(s)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR %q: %v", s, err))
	}
	return network
}
